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
	"encoding/binary"
	"sync"
)

// ClientConfig holds the policy surface of a Client.
type ClientConfig struct {
	Station             uint8         // Implicit slave station (default 1)
	ZeroBasedAddressing bool          // When false, parsed offsets are decremented by one
	WordSwap            bool          // Swap bytes inside each 16-bit word
	MultiWordSwap       bool          // Reorder words inside 32/64-bit scalars
	StringWordSwap      bool          // Swap bytes inside each word for strings
	Logger              *SimpleLogger // Debug sink, nil disables logging
}

// DefaultClientConfig returns the factory defaults: station 1,
// zero-based addressing and word swap enabled.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Station:             1,
		ZeroBasedAddressing: true,
		WordSwap:            true,
	}
}

// Client is a Modbus RTU master. One Client owns one transport; a
// single mutex serializes exchanges so callers may share it across
// goroutines. The swap flags, station and address base must only be
// reconfigured while no exchange is in flight.
type Client struct {
	mu        sync.Mutex
	transport Transport
	logger    *SimpleLogger

	station   uint8
	zeroBased bool
	transform ByteTransform
}

// NewClient creates a Client over the given transport. A zero Station
// in config falls back to 1; station 0 is reserved for broadcast and
// selected per address expression.
func NewClient(transport Transport, config ClientConfig) *Client {
	if config.Station == 0 {
		config.Station = 1
	}
	return &Client{
		transport: transport,
		logger:    config.Logger,
		station:   config.Station,
		zeroBased: config.ZeroBasedAddressing,
		transform: ByteTransform{
			WordSwap:       config.WordSwap,
			MultiWordSwap:  config.MultiWordSwap,
			StringWordSwap: config.StringWordSwap,
		},
	}
}

// String identifies the client implementation.
func (c *Client) String() string {
	return "ModbusRtuNet"
}

// SetStation changes the implicit slave station.
func (c *Client) SetStation(station uint8) {
	c.station = station
}

// SetAddressBase selects zero-based (true) or one-based (false)
// interpretation of parsed offsets.
func (c *Client) SetAddressBase(zeroBased bool) {
	c.zeroBased = zeroBased
}

// SetTransform replaces the byte-transform policy.
func (c *Client) SetTransform(bt ByteTransform) {
	c.transform = bt
}

// Transform returns the current byte-transform policy.
func (c *Client) Transform() ByteTransform {
	return c.transform
}

// SetLogger sets the debug sink.
func (c *Client) SetLogger(logger *SimpleLogger) {
	c.logger = logger
}

// parse resolves an address expression against the client's defaults.
func (c *Client) parse(expr string, implicitFunction uint8) (Address, error) {
	return ParseAddress(expr, c.station, implicitFunction, c.zeroBased)
}

// exchange wraps a request body into an RTU frame, runs one round trip
// and validates the reply envelope. The returned body is station +
// function code + payload, CRC stripped.
func (c *Client) exchange(station uint8, body []byte, expectedFC uint8) ([]byte, error) {
	frame := packFrame(station, body)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Request(station, expectedFC, frame)

	if station == 0 {
		// Broadcast: no reply will come.
		if b, ok := c.transport.(Broadcaster); ok {
			if err := b.Send(frame); err != nil {
				return nil, wrapTransportError(err)
			}
			return nil, nil
		}
		return nil, newModbusError(ErrKindTransport, "transport cannot broadcast")
	}

	resp, err := c.transport.Exchange(frame)
	if err != nil {
		c.logger.Fault(station, err)
		return nil, wrapTransportError(err)
	}
	c.logger.Response(station, resp)

	respBody, merr := unwrapFrame(resp, expectedFC)
	if merr != nil {
		c.logger.Fault(station, merr)
		return nil, merr
	}
	if respBody[0] != station {
		return nil, newModbusError(ErrKindTransport, "response station mismatch: expected %d, got %d", station, respBody[0])
	}
	if respBody[1] != expectedFC {
		return nil, newModbusError(ErrKindUnsupportedFunction, "response function code mismatch: expected %d, got %d", expectedFC, respBody[1])
	}
	return respBody, nil
}

// readBits performs one FC 01/02 read and unpacks the reply.
func (c *Client) readBits(expr string, implicitFC uint8, quantity uint16) ([]bool, error) {
	addr, err := c.parse(expr, implicitFC)
	if err != nil {
		return nil, err
	}
	if addr.Function != FuncCodeReadCoils && addr.Function != FuncCodeReadDiscreteInputs {
		return nil, newModbusError(ErrKindUnsupportedFunction, "function code %d cannot read bits", addr.Function)
	}
	if addr.Station == 0 {
		return nil, newModbusError(ErrKindAddressParse, "station 0 is broadcast and write-only")
	}
	body, err := buildReadPDU(addr.Function, addr.Offset, quantity)
	if err != nil {
		return nil, err
	}
	resp, err := c.exchange(addr.Station, body, addr.Function)
	if err != nil {
		return nil, err
	}
	payload, err := stripReadHeader(resp)
	if err != nil {
		return nil, err
	}
	return UnpackBools(payload, int(quantity)), nil
}

// ReadCoil reads a single coil (FC 01).
func (c *Client) ReadCoil(expr string) (bool, error) {
	bits, err := c.ReadCoils(expr, 1)
	if err != nil {
		return false, err
	}
	return bits[0], nil
}

// ReadCoils reads quantity coils (FC 01) and returns exactly quantity
// booleans, unpacked LSB-first.
func (c *Client) ReadCoils(expr string, quantity uint16) ([]bool, error) {
	return c.readBits(expr, FuncCodeReadCoils, quantity)
}

// ReadDiscreteInput reads a single discrete input (FC 02).
func (c *Client) ReadDiscreteInput(expr string) (bool, error) {
	bits, err := c.ReadDiscreteInputs(expr, 1)
	if err != nil {
		return false, err
	}
	return bits[0], nil
}

// ReadDiscreteInputs reads quantity discrete inputs (FC 02).
func (c *Client) ReadDiscreteInputs(expr string, quantity uint16) ([]bool, error) {
	return c.readBits(expr, FuncCodeReadDiscreteInputs, quantity)
}

// Read reads quantity 16-bit registers starting at the parsed address
// and returns the raw wire payload, two bytes per register. Requests
// longer than ChunkRegisters registers are split into sequential
// exchanges advancing the offset; a failure on any chunk aborts the
// whole read.
func (c *Client) Read(expr string, quantity uint16) ([]byte, error) {
	addr, err := c.parse(expr, FuncCodeReadHoldingRegisters)
	if err != nil {
		return nil, err
	}
	if addr.Function != FuncCodeReadHoldingRegisters && addr.Function != FuncCodeReadInputRegisters {
		return nil, newModbusError(ErrKindUnsupportedFunction, "function code %d cannot read registers", addr.Function)
	}
	if addr.Station == 0 {
		return nil, newModbusError(ErrKindAddressParse, "station 0 is broadcast and write-only")
	}
	if quantity == 0 {
		return nil, newModbusError(ErrKindInvalidQuantity, "quantity must be at least 1")
	}
	if uint32(addr.Offset)+uint32(quantity) > 0x10000 {
		return nil, newModbusError(ErrKindInvalidQuantity, "address %d + quantity %d exceeds the register space", addr.Offset, quantity)
	}

	out := make([]byte, 0, 2*int(quantity))
	var done uint16
	for done < quantity {
		n := quantity - done
		if n > ChunkRegisters {
			n = ChunkRegisters
		}
		body, err := buildReadPDU(addr.Function, addr.Offset+done, n)
		if err != nil {
			return nil, err
		}
		resp, err := c.exchange(addr.Station, body, addr.Function)
		if err != nil {
			return nil, err
		}
		payload, err := stripReadHeader(resp)
		if err != nil {
			return nil, err
		}
		if len(payload) != int(n)*2 {
			return nil, newModbusError(ErrKindShortFrame, "expected %d register bytes, got %d", int(n)*2, len(payload))
		}
		out = append(out, payload...)
		done += n
	}
	return out, nil
}

// WriteCoil writes a single coil (FC 05).
func (c *Client) WriteCoil(expr string, value bool) error {
	addr, err := c.parseForWrite(expr, FuncCodeWriteSingleCoil)
	if err != nil {
		return err
	}
	body := buildWriteSingleCoilPDU(addr.Offset, value)
	resp, err := c.exchange(addr.Station, body, FuncCodeWriteSingleCoil)
	if err != nil {
		return err
	}
	return checkWriteEcho(resp, addr.Offset, coilValue(value))
}

// WriteCoils writes multiple coils (FC 15) with LSB-first packing.
func (c *Client) WriteCoils(expr string, values []bool) error {
	addr, err := c.parseForWrite(expr, FuncCodeWriteMultipleCoils)
	if err != nil {
		return err
	}
	body, err := buildWriteMultipleCoilsPDU(addr.Offset, values)
	if err != nil {
		return err
	}
	resp, err := c.exchange(addr.Station, body, FuncCodeWriteMultipleCoils)
	if err != nil {
		return err
	}
	return checkWriteEcho(resp, addr.Offset, uint16(len(values)))
}

// WriteRegister writes one holding register (FC 06) with the two data
// bytes placed on the wire exactly as supplied.
func (c *Client) WriteRegister(expr string, dataHigh, dataLow byte) error {
	addr, err := c.parseForWrite(expr, FuncCodeWriteSingleRegister)
	if err != nil {
		return err
	}
	body := buildWriteSingleRegisterPDU(addr.Offset, dataHigh, dataLow)
	resp, err := c.exchange(addr.Station, body, FuncCodeWriteSingleRegister)
	if err != nil {
		return err
	}
	return checkWriteEcho(resp, addr.Offset, uint16(dataHigh)<<8|uint16(dataLow))
}

// WriteRegisterValue writes one holding register (FC 06) from a 16-bit
// value. Note: this path emits the value low byte first, so the wire
// carries data_hi = byte(v), data_lo = byte(v>>8). Devices that expect
// the standard big-endian register image should use WriteRegister, or
// the typed WriteUint16 with WordSwap disabled (with the default
// WordSwap it also sends the low byte first).
func (c *Client) WriteRegisterValue(expr string, value uint16) error {
	return c.WriteRegister(expr, byte(value), byte(value>>8))
}

// Write writes data to consecutive holding registers (FC 16). The
// bytes travel as given: callers are responsible for byte ordering,
// typically via the typed write methods which run the byte transform
// first. The payload must be a positive even number of bytes.
func (c *Client) Write(expr string, data []byte) error {
	addr, err := c.parseForWrite(expr, FuncCodeWriteMultipleRegisters)
	if err != nil {
		return err
	}
	body, err := buildWriteMultipleRegistersPDU(addr.Offset, data)
	if err != nil {
		return err
	}
	resp, err := c.exchange(addr.Station, body, FuncCodeWriteMultipleRegisters)
	if err != nil {
		return err
	}
	return checkWriteEcho(resp, addr.Offset, uint16(len(data)/2))
}

// ExchangeRaw sends a pre-built RTU frame and returns the validated
// reply with its CRC stripped. The caller owns the frame contents; the
// reply still goes through length and CRC validation against the
// request's function code.
func (c *Client) ExchangeRaw(frame []byte) ([]byte, error) {
	if len(frame) < 4 {
		return nil, newModbusError(ErrKindShortFrame, "request frame too short")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, err := c.transport.Exchange(frame)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	body, merr := unwrapFrame(resp, frame[1])
	if merr != nil {
		return nil, merr
	}
	return body, nil
}

// parseForWrite resolves an address for a write operation. The
// operation's function code is authoritative: an x= override that
// disagrees with it is rejected.
func (c *Client) parseForWrite(expr string, fc uint8) (Address, error) {
	addr, err := c.parse(expr, fc)
	if err != nil {
		return Address{}, err
	}
	if addr.Function != fc {
		return Address{}, newModbusError(ErrKindUnsupportedFunction, "function code %d cannot serve this write, need %d", addr.Function, fc)
	}
	return addr, nil
}

// stripReadHeader drops station, function code and byte count from a
// read reply and validates the byte count against the payload.
func stripReadHeader(body []byte) ([]byte, error) {
	if len(body) < 3 {
		return nil, newModbusError(ErrKindShortFrame, "read response truncated")
	}
	byteCount := int(body[2])
	if len(body) != 3+byteCount {
		return nil, newModbusError(ErrKindShortFrame, "byte count %d disagrees with payload length %d", byteCount, len(body)-3)
	}
	return body[3:], nil
}

// checkWriteEcho validates the echoed address and value/quantity field
// of a write reply. Broadcast writes produce no reply and pass as nil.
func checkWriteEcho(body []byte, offset, value uint16) error {
	if body == nil {
		return nil
	}
	if len(body) != 6 {
		return newModbusError(ErrKindShortFrame, "write response has %d bytes, expected 6", len(body))
	}
	echoOffset := binary.BigEndian.Uint16(body[2:4])
	echoValue := binary.BigEndian.Uint16(body[4:6])
	if echoOffset != offset {
		return newModbusError(ErrKindTransport, "write echo address mismatch: expected %d, got %d", offset, echoOffset)
	}
	if echoValue != value {
		return newModbusError(ErrKindTransport, "write echo value mismatch: expected %d, got %d", value, echoValue)
	}
	return nil
}

func coilValue(on bool) uint16 {
	if on {
		return 0xFF00
	}
	return 0
}
