// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package modbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Sample is the result of polling one register definition.
type Sample struct {
	Tag   string
	Value RegisterValue
	Err   error
	At    time.Time
}

// OnSamplesFunc receives the batch produced by one polling cycle.
type OnSamplesFunc func([]Sample)

// pollEntry tracks the cadence state of one loaded definition.
type pollEntry struct {
	def     RegisterDefinition
	cadence time.Duration
	nextDue time.Time
}

// Poller reads a loaded register table through a Client. Every
// definition is polled at its own Interval; definitions without one
// fall back to the poller's default cadence. The client's internal
// mutex keeps poller traffic and direct calls from interleaving
// mid-exchange.
type Poller struct {
	client    *Client
	interval  time.Duration
	mu        sync.Mutex
	entries   []*pollEntry
	onSamples atomic.Value
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewPoller creates a Poller over an existing client. interval is the
// default cadence for definitions that do not carry their own.
func NewPoller(client *Client, interval time.Duration) *Poller {
	return &Poller{
		client:   client,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Load validates the register table and installs it. Duplicate tags
// are rejected.
func (p *Poller) Load(defs []RegisterDefinition) error {
	tagMap := make(map[string]bool)
	entries := make([]*pollEntry, 0, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return err
		}
		if tagMap[d.Tag] {
			return fmt.Errorf("duplicate tag: %s", d.Tag)
		}
		tagMap[d.Tag] = true

		cadence := d.Interval
		if cadence <= 0 {
			cadence = p.interval
		}
		entries = append(entries, &pollEntry{def: d, cadence: cadence})
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = entries
	return nil
}

// SetOnSamples sets the callback for polled batches.
func (p *Poller) SetOnSamples(fn OnSamplesFunc) {
	p.onSamples.Store(fn)
}

// Start launches the polling loop. Every definition is due
// immediately on the first tick.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.poll()
}

// Stop terminates the polling loop and waits for it to exit.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) poll() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.tick())
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			due := p.dueDefinitions(time.Now())
			if len(due) == 0 {
				continue
			}
			samples := p.readAll(due)
			if cb := p.onSamples.Load(); cb != nil {
				cb.(OnSamplesFunc)(samples)
			}
		}
	}
}

// tick is the scheduler resolution: the fastest of the table cadences
// and the poller's default interval.
func (p *Poller) tick() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	tick := p.interval
	for _, e := range p.entries {
		if e.cadence < tick {
			tick = e.cadence
		}
	}
	if tick <= 0 {
		tick = time.Second
	}
	return tick
}

// dueDefinitions returns the definitions whose cadence has elapsed at
// now and schedules their next turn.
func (p *Poller) dueDefinitions(now time.Time) []RegisterDefinition {
	p.mu.Lock()
	defer p.mu.Unlock()
	var due []RegisterDefinition
	for _, e := range p.entries {
		if e.nextDue.After(now) {
			continue
		}
		due = append(due, e.def)
		e.nextDue = now.Add(e.cadence)
	}
	return due
}

// PollOnce reads every loaded definition once, regardless of cadence,
// and returns the batch. Failures are carried per sample; one bad
// point does not abort the cycle.
func (p *Poller) PollOnce() []Sample {
	p.mu.Lock()
	defs := make([]RegisterDefinition, 0, len(p.entries))
	for _, e := range p.entries {
		defs = append(defs, e.def)
	}
	p.mu.Unlock()

	return p.readAll(defs)
}

func (p *Poller) readAll(defs []RegisterDefinition) []Sample {
	samples := make([]Sample, 0, len(defs))
	for _, d := range defs {
		samples = append(samples, p.read(d))
	}
	return samples
}

func (p *Poller) read(d RegisterDefinition) Sample {
	sample := Sample{Tag: d.Tag, At: time.Now()}
	switch d.Type {
	case "coil":
		v, err := p.client.ReadCoil(d.Address)
		sample.Err = err
		if err == nil {
			sample.Value = RegisterValue{AsType: v, Float64: boolFloat(v)}
		}
	case "discrete":
		v, err := p.client.ReadDiscreteInput(d.Address)
		sample.Err = err
		if err == nil {
			sample.Value = RegisterValue{AsType: v, Float64: boolFloat(v)}
		}
	default:
		buf, err := p.client.Read(d.Address, d.Words())
		if err != nil {
			sample.Err = err
			break
		}
		sample.Value, sample.Err = d.Decode(p.client.Transform(), buf)
	}
	return sample
}

func boolFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
