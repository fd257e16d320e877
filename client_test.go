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
	"errors"
	"fmt"
	"testing"
)

// mockTransport replays scripted responses and records every request.
type mockTransport struct {
	requests  [][]byte
	responses [][]byte
	errs      []error
	sent      [][]byte // frames emitted via Send (broadcast)
}

func (m *mockTransport) Exchange(request []byte) ([]byte, error) {
	i := len(m.requests)
	m.requests = append(m.requests, append([]byte(nil), request...))
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return nil, fmt.Errorf("no scripted response for request %d", i)
}

func (m *mockTransport) Send(request []byte) error {
	m.sent = append(m.sent, append([]byte(nil), request...))
	return nil
}

func newTestClient(mock *mockTransport) *Client {
	return NewClient(mock, DefaultClientConfig())
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var merr *ModbusError
	if !errors.As(err, &merr) {
		t.Fatalf("error %v is not a ModbusError", err)
	}
	return merr.Kind
}

func TestClient_String(t *testing.T) {
	c := newTestClient(&mockTransport{})
	if c.String() != "ModbusRtuNet" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestClient_ReadInt16_WordSwap(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x03, 0x02, 0x12, 0x34, 0xB5, 0x33},
	}}
	c := newTestClient(mock)

	v, err := c.ReadInt16("100")
	if err != nil {
		t.Fatalf("ReadInt16 failed: %v", err)
	}
	// The default word swap turns wire bytes 12 34 into 34 12.
	if v != 0x3412 {
		t.Errorf("ReadInt16 = %04X, want 3412", v)
	}
	assertBytesEqual(t, []byte{0x01, 0x03, 0x00, 0x64, 0x00, 0x01, 0xC5, 0xD5}, mock.requests[0])
}

func TestClient_ReadInt16_NoWordSwap(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x03, 0x02, 0x12, 0x34, 0xB5, 0x33},
	}}
	config := DefaultClientConfig()
	config.WordSwap = false
	c := NewClient(mock, config)

	v, err := c.ReadInt16("100")
	if err != nil {
		t.Fatalf("ReadInt16 failed: %v", err)
	}
	if v != 0x1234 {
		t.Errorf("ReadInt16 = %04X, want 1234", v)
	}
}

func TestClient_ReadUint16_InputRegisterOverride(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x04, 0x02, 0x12, 0x34, 0xB4, 0x47},
	}}
	c := newTestClient(mock)

	v, err := c.ReadUint16("x=4;100")
	if err != nil {
		t.Fatalf("ReadUint16 failed: %v", err)
	}
	if v != 0x3412 {
		t.Errorf("ReadUint16 = %04X, want 3412", v)
	}
	assertBytesEqual(t, []byte{0x01, 0x04, 0x00, 0x64, 0x00, 0x01, 0x70, 0x15}, mock.requests[0])
}

func TestClient_Read_RejectsWrongFunction(t *testing.T) {
	c := newTestClient(&mockTransport{})
	_, err := c.Read("x=5;100", 1)
	if kindOf(t, err) != ErrKindUnsupportedFunction {
		t.Errorf("error = %v, want unsupported-function", err)
	}
}

func TestClient_Exception(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x83, 0x02, 0xC0, 0xF1},
	}}
	c := newTestClient(mock)

	_, err := c.ReadInt16("65535")
	if err == nil {
		t.Fatalf("expected an exception error")
	}
	var merr *ModbusError
	if !errors.As(err, &merr) {
		t.Fatalf("error is not a ModbusError: %v", err)
	}
	if merr.Kind != ErrKindException || merr.ExceptionCode != 0x02 || merr.Message != "Illegal data address" {
		t.Errorf("unexpected exception error %+v", merr)
	}
}

func TestClient_CRCCorruptResponse(t *testing.T) {
	good := AppendCRC([]byte{0x01, 0x01, 0x01, 0x05})
	corrupted := make([]byte, len(good))
	copy(corrupted, good)
	corrupted[3] ^= 0x40

	mock := &mockTransport{responses: [][]byte{corrupted}}
	c := newTestClient(mock)

	_, err := c.ReadCoil("0")
	if kindOf(t, err) != ErrKindCRCMismatch {
		t.Errorf("error = %v, want crc-mismatch", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	mock := &mockTransport{errs: []error{fmt.Errorf("port closed")}}
	c := newTestClient(mock)

	_, err := c.ReadCoil("0")
	if kindOf(t, err) != ErrKindTransport {
		t.Errorf("error = %v, want transport", err)
	}
}

func TestClient_ReadCoils(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x01, 0x01, 0x05, 0x91, 0x8B},
	}}
	c := newTestClient(mock)

	coils, err := c.ReadCoils("0", 3)
	if err != nil {
		t.Fatalf("ReadCoils failed: %v", err)
	}
	assertBoolEqual(t, []bool{true, false, true}, coils)
	assertBytesEqual(t, []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x03, 0x7C, 0x0B}, mock.requests[0])
}

func TestClient_ReadDiscreteInputs(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x02, 0x01, 0x0D, 0x60, 0x4D},
	}}
	c := newTestClient(mock)

	inputs, err := c.ReadDiscreteInputs("0", 4)
	if err != nil {
		t.Fatalf("ReadDiscreteInputs failed: %v", err)
	}
	assertBoolEqual(t, []bool{true, false, true, true}, inputs)
	assertBytesEqual(t, []byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x04, 0x79, 0xC9}, mock.requests[0])
}

func TestClient_WriteCoil(t *testing.T) {
	echo := []byte{0x02, 0x05, 0x00, 0x0A, 0xFF, 0x00, 0xAC, 0x0B}
	mock := &mockTransport{responses: [][]byte{echo}}
	c := newTestClient(mock)

	if err := c.WriteCoil("s=2;10", true); err != nil {
		t.Fatalf("WriteCoil failed: %v", err)
	}
	assertBytesEqual(t, echo, mock.requests[0])
}

func TestClient_WriteCoil_Off(t *testing.T) {
	echo := []byte{0x02, 0x05, 0x00, 0x0A, 0x00, 0x00, 0xED, 0xFB}
	mock := &mockTransport{responses: [][]byte{echo}}
	c := newTestClient(mock)

	if err := c.WriteCoil("s=2;10", false); err != nil {
		t.Fatalf("WriteCoil failed: %v", err)
	}
	assertBytesEqual(t, echo, mock.requests[0])
}

func TestClient_WriteCoils(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x0F, 0x00, 0x00, 0x00, 0x0A, 0xD5, 0xCC},
	}}
	c := newTestClient(mock)

	values := []bool{
		true, false, true, true, false, false, false, false,
		true, true,
	}
	if err := c.WriteCoils("0", values); err != nil {
		t.Fatalf("WriteCoils failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x0F, 0x00, 0x00, 0x00, 0x0A, 0x02, 0x0D, 0x03, 0xA1, 0xA9}, mock.requests[0])
}

func TestClient_WriteRegister_BytePair(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x03, 0x06, 0x00, 0xC8, 0x12, 0x34, 0x04, 0xA1},
	}}
	c := newTestClient(mock)

	if err := c.WriteRegister("s=3;200", 0x12, 0x34); err != nil {
		t.Fatalf("WriteRegister failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x03, 0x06, 0x00, 0xC8, 0x12, 0x34, 0x04, 0xA1}, mock.requests[0])
}

func TestClient_WriteRegisterValue_LowByteFirst(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x06, 0x00, 0x64, 0x34, 0x12, 0x5E, 0xD8},
	}}
	c := newTestClient(mock)

	// This path emits the value low byte first: 0x1234 travels as 34 12.
	if err := c.WriteRegisterValue("100", 0x1234); err != nil {
		t.Fatalf("WriteRegisterValue failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x06, 0x00, 0x64, 0x34, 0x12, 0x5E, 0xD8}, mock.requests[0])
}

func TestClient_Write_RawBytes(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x10, 0x00, 0x64, 0x00, 0x02, 0x00, 0x17},
	}}
	c := newTestClient(mock)

	if err := c.Write("100", []byte{0xAB, 0xCD, 0x12, 0x34}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x10, 0x00, 0x64, 0x00, 0x02, 0x04, 0xAB, 0xCD, 0x12, 0x34, 0x48, 0xD8}, mock.requests[0])
}

func TestClient_Write_OddPayload(t *testing.T) {
	c := newTestClient(&mockTransport{})
	err := c.Write("100", []byte{0x01})
	if kindOf(t, err) != ErrKindInvalidQuantity {
		t.Errorf("error = %v, want invalid-quantity", err)
	}
}

func TestClient_TypedWriteRoundTrip(t *testing.T) {
	// A typed write runs the transform; reading the same bytes back
	// with the same transform recovers the value.
	config := DefaultClientConfig()
	config.MultiWordSwap = true
	mock := &mockTransport{}
	c := NewClient(mock, config)

	mock.responses = [][]byte{{0x01, 0x10, 0x00, 0x0A, 0x00, 0x02, 0x61, 0xCA}}

	if err := c.WriteFloat32("10", -50.5); err != nil {
		t.Fatalf("WriteFloat32 failed: %v", err)
	}

	// The payload in the recorded request decodes back to the value.
	req := mock.requests[0]
	got := c.Transform().DecodeFloat32(req[7 : 7+4])
	if got != -50.5 {
		t.Errorf("decoded written payload = %f, want -50.5", got)
	}
}

func TestClient_ChunkedRead(t *testing.T) {
	// 250 registers split into 120 + 120 + 10.
	resp := func(quantity int, fill byte) []byte {
		body := []byte{0x01, 0x03, byte(quantity * 2)}
		for i := 0; i < quantity*2; i++ {
			body = append(body, fill)
		}
		return AppendCRC(body)
	}
	mock := &mockTransport{responses: [][]byte{
		resp(120, 0xAA),
		resp(120, 0xBB),
		resp(10, 0xCC),
	}}
	c := newTestClient(mock)

	data, err := c.Read("0", 250)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(data) != 500 {
		t.Fatalf("payload length = %d, want 500", len(data))
	}
	if data[0] != 0xAA || data[239] != 0xAA || data[240] != 0xBB || data[479] != 0xBB || data[480] != 0xCC || data[499] != 0xCC {
		t.Errorf("chunk payloads concatenated out of order")
	}

	if len(mock.requests) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(mock.requests))
	}
	assertBytesEqual(t, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x78, 0x45, 0xE8}, mock.requests[0])
	assertBytesEqual(t, []byte{0x01, 0x03, 0x00, 0x78, 0x00, 0x78, 0xC5, 0xF1}, mock.requests[1])
	assertBytesEqual(t, []byte{0x01, 0x03, 0x00, 0xF0, 0x00, 0x0A, 0xC5, 0xFE}, mock.requests[2])
}

func TestClient_ChunkedRead_MidChunkFailure(t *testing.T) {
	resp := func(quantity int) []byte {
		body := []byte{0x01, 0x03, byte(quantity * 2)}
		body = append(body, make([]byte, quantity*2)...)
		return AppendCRC(body)
	}
	mock := &mockTransport{responses: [][]byte{
		resp(120),
		{0x01, 0x83, 0x02, 0xC0, 0xF1}, // chunk 2 rejected
	}}
	c := newTestClient(mock)

	data, err := c.Read("0", 250)
	if err == nil {
		t.Fatalf("expected mid-chunk failure")
	}
	if kindOf(t, err) != ErrKindException {
		t.Errorf("error = %v, want modbus-exception", err)
	}
	if data != nil {
		t.Errorf("partial data must be discarded, got %d bytes", len(data))
	}
	if len(mock.requests) != 2 {
		t.Errorf("read should stop at the failing chunk, saw %d exchanges", len(mock.requests))
	}
}

func TestClient_ReadString(t *testing.T) {
	body := []byte{0x01, 0x03, 0x06, 'P', 'U', 'M', 'P', 0x00, 0x00}
	config := DefaultClientConfig()
	config.WordSwap = false
	mock := &mockTransport{responses: [][]byte{AppendCRC(body)}}
	c := NewClient(mock, config)

	s, err := c.ReadString("0", 3)
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	if s != "PUMP" {
		t.Errorf("ReadString = %q, want PUMP", s)
	}
}

func TestClient_OneBasedAddressing(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x03, 0x02, 0x12, 0x34, 0xB5, 0x33},
	}}
	config := DefaultClientConfig()
	config.ZeroBasedAddressing = false
	c := NewClient(mock, config)

	// Caller's register 101 is wire offset 100.
	if _, err := c.ReadInt16("101"); err != nil {
		t.Fatalf("ReadInt16 failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x03, 0x00, 0x64, 0x00, 0x01, 0xC5, 0xD5}, mock.requests[0])
}

func TestClient_BroadcastWrite(t *testing.T) {
	mock := &mockTransport{}
	c := newTestClient(mock)

	if err := c.WriteCoil("s=0;10", true); err != nil {
		t.Fatalf("broadcast WriteCoil failed: %v", err)
	}
	if len(mock.sent) != 1 || len(mock.requests) != 0 {
		t.Fatalf("broadcast must use Send, saw %d sent / %d exchanged", len(mock.sent), len(mock.requests))
	}
	assertBytesEqual(t, AppendCRC([]byte{0x00, 0x05, 0x00, 0x0A, 0xFF, 0x00}), mock.sent[0])
}

func TestClient_BroadcastReadRejected(t *testing.T) {
	c := newTestClient(&mockTransport{})
	_, err := c.ReadCoil("s=0;10")
	if kindOf(t, err) != ErrKindAddressParse {
		t.Errorf("error = %v, want address-parse", err)
	}
}

func TestClient_StationMismatch(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		AppendCRC([]byte{0x02, 0x03, 0x02, 0x12, 0x34}), // station 2 answered a station-1 request
	}}
	c := newTestClient(mock)

	_, err := c.ReadInt16("100")
	if kindOf(t, err) != ErrKindTransport {
		t.Errorf("error = %v, want transport", err)
	}
}

func TestClient_WriteEchoMismatch(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		AppendCRC([]byte{0x01, 0x06, 0x00, 0x65, 0x12, 0x34}), // wrong echoed address
	}}
	c := newTestClient(mock)

	err := c.WriteRegister("100", 0x12, 0x34)
	if err == nil {
		t.Fatalf("expected echo mismatch error")
	}
}

func TestClient_ExchangeRaw(t *testing.T) {
	mock := &mockTransport{responses: [][]byte{
		{0x01, 0x03, 0x02, 0x12, 0x34, 0xB5, 0x33},
	}}
	c := newTestClient(mock)

	body, err := c.ExchangeRaw([]byte{0x01, 0x03, 0x00, 0x64, 0x00, 0x01, 0xC5, 0xD5})
	if err != nil {
		t.Fatalf("ExchangeRaw failed: %v", err)
	}
	assertBytesEqual(t, []byte{0x01, 0x03, 0x02, 0x12, 0x34}, body)
}

func TestClient_TypedArrayRead(t *testing.T) {
	config := DefaultClientConfig()
	config.WordSwap = false
	body := []byte{0x01, 0x03, 0x08, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04}
	mock := &mockTransport{responses: [][]byte{AppendCRC(body)}}
	c := NewClient(mock, config)

	values, err := c.ReadUint16s("0", 4)
	if err != nil {
		t.Fatalf("ReadUint16s failed: %v", err)
	}
	assertUint16Equal(t, []uint16{1, 2, 3, 4}, values)
}
