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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// RegisterDefinition describes one named point in a register table.
// Address is an address expression as understood by ParseAddress, so a
// definition can pin its own station (s=) and function code (x=).
type RegisterDefinition struct {
	Tag      string        // Unique identifier for the point
	Alias    string        // Human-readable name
	Address  string        // Address expression, e.g. "s=2;x=4;100"
	Type     string        // coil, discrete, int16, uint16, int32, uint32, float32, int64, uint64, float64, string
	Quantity uint16        // Register count for string type, ignored otherwise
	Scale    float64       // Multiplier applied to the numeric view (0 means 1)
	Interval time.Duration // Polling cadence, zero uses the poller default
}

// registerTypeWords maps a scalar type to its register footprint.
var registerTypeWords = map[string]uint16{
	"int16": 1, "uint16": 1,
	"int32": 2, "uint32": 2, "float32": 2,
	"int64": 4, "uint64": 4, "float64": 4,
}

// Words returns the number of registers one read of this definition
// covers. Bit types report zero; they travel on the coil path.
func (d RegisterDefinition) Words() uint16 {
	if w, ok := registerTypeWords[d.Type]; ok {
		return w
	}
	if d.Type == "string" {
		return d.Quantity
	}
	return 0
}

// Validate checks a definition for internal consistency.
func (d RegisterDefinition) Validate() error {
	if d.Tag == "" {
		return fmt.Errorf("register definition has no tag")
	}
	if d.Address == "" {
		return fmt.Errorf("register %s has no address", d.Tag)
	}
	switch d.Type {
	case "coil", "discrete":
		return nil
	case "string":
		if d.Quantity == 0 {
			return fmt.Errorf("register %s: string type needs a quantity", d.Tag)
		}
		return nil
	default:
		if _, ok := registerTypeWords[d.Type]; !ok {
			return fmt.Errorf("register %s: unsupported type %q", d.Tag, d.Type)
		}
		return nil
	}
}

// RegisterValue holds the decoded result of one definition.
type RegisterValue struct {
	Raw     []byte  // Wire bytes as received
	Float64 float64 // Numeric view with the scale applied, 0 for strings
	AsType  any     // Value in the definition's native type
}

// Decode runs raw register bytes through the byte transform and the
// definition's type and scale. Bit types are decoded elsewhere.
func (d RegisterDefinition) Decode(bt ByteTransform, buf []byte) (RegisterValue, error) {
	res := RegisterValue{Raw: buf}
	need := int(d.Words()) * 2
	if len(buf) < need {
		return res, fmt.Errorf("register %s: have %d bytes, need %d", d.Tag, len(buf), need)
	}
	scale := d.Scale
	if scale == 0 {
		scale = 1
	}
	switch d.Type {
	case "int16":
		v := bt.DecodeInt16(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "uint16":
		v := bt.DecodeUint16(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "int32":
		v := bt.DecodeInt32(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "uint32":
		v := bt.DecodeUint32(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "float32":
		v := bt.DecodeFloat32(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "int64":
		v := bt.DecodeInt64(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "uint64":
		v := bt.DecodeUint64(buf)
		res.AsType = v
		res.Float64 = float64(v) * scale
	case "float64":
		v := bt.DecodeFloat64(buf)
		res.AsType = v
		res.Float64 = v * scale
	case "string":
		s, err := bt.DecodeString(buf, EncodingASCII)
		if err != nil {
			return res, err
		}
		res.AsType = s
	default:
		return res, fmt.Errorf("register %s: unsupported type %q", d.Tag, d.Type)
	}
	return res, nil
}

// ParseRegisterCSV reads a register table from CSV. The first row is a
// header; required columns are tag, address and type. alias, quantity,
// scale and interval_ms are optional.
func ParseRegisterCSV(reader io.Reader) ([]RegisterDefinition, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV file")
	}

	headerMap := make(map[string]int)
	for i, h := range records[0] {
		headerMap[strings.TrimSpace(h)] = i
	}
	for _, field := range []string{"tag", "address", "type"} {
		if _, exists := headerMap[field]; !exists {
			return nil, fmt.Errorf("missing required field in CSV header: %s", field)
		}
	}

	var defs []RegisterDefinition
	for i, record := range records[1:] {
		def, err := parseRegisterRecord(record, headerMap)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", i+2, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validation error for row %d (tag %s): %w", i+2, def.Tag, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// FuzzyEqual compares two float64 values with a tolerance.
func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func parseRegisterRecord(record []string, headerMap map[string]int) (RegisterDefinition, error) {
	getField := func(name string) string {
		if idx, exists := headerMap[name]; exists && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	def := RegisterDefinition{
		Tag:     getField("tag"),
		Alias:   getField("alias"),
		Address: getField("address"),
		Type:    getField("type"),
	}
	if q := getField("quantity"); q != "" {
		v, err := strconv.ParseUint(q, 10, 16)
		if err != nil {
			return def, fmt.Errorf("bad quantity %q: %w", q, err)
		}
		def.Quantity = uint16(v)
	}
	if s := getField("scale"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def, fmt.Errorf("bad scale %q: %w", s, err)
		}
		def.Scale = v
	}
	if f := getField("interval_ms"); f != "" {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return def, fmt.Errorf("bad interval_ms %q: %w", f, err)
		}
		def.Interval = time.Duration(v) * time.Millisecond
	}
	return def, nil
}
