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

import "fmt"

// ErrorKind classifies a ModbusError.
type ErrorKind string

const (
	ErrKindAddressParse        ErrorKind = "address-parse"
	ErrKindTransport           ErrorKind = "transport"
	ErrKindShortFrame          ErrorKind = "short-frame"
	ErrKindCRCMismatch         ErrorKind = "crc-mismatch"
	ErrKindException           ErrorKind = "modbus-exception"
	ErrKindUnsupportedFunction ErrorKind = "unsupported-function"
	ErrKindInvalidQuantity     ErrorKind = "invalid-quantity"
)

// ModbusError is the error type for every protocol-level failure.
// For ErrKindException, FunctionCode holds the request function code,
// ExceptionCode the code byte from the reply and Frame the raw reply
// so callers keep the full diagnostic payload.
type ModbusError struct {
	Kind          ErrorKind
	FunctionCode  uint8
	ExceptionCode uint8
	Message       string
	Frame         []byte
}

// Error implements the error interface.
func (e *ModbusError) Error() string {
	if e.Kind == ErrKindException {
		return fmt.Sprintf("modbus: %s: code 0x%02X - %s", e.Kind, e.ExceptionCode, e.Message)
	}
	return fmt.Sprintf("modbus: %s: %s", e.Kind, e.Message)
}

func newModbusError(kind ErrorKind, format string, args ...any) *ModbusError {
	return &ModbusError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapTransportError converts a transport failure into a ModbusError
// without losing the original diagnostic text.
func wrapTransportError(err error) *ModbusError {
	return &ModbusError{Kind: ErrKindTransport, Message: err.Error()}
}
