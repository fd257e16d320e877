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

// The RTU frame format is: Station (1 byte) + Function Code (1 byte) +
// Data (variable length) + CRC (2 bytes, low byte first).

// packFrame wraps a request body (function code + payload) with the
// station byte and the trailing CRC.
func packFrame(station uint8, body []byte) []byte {
	frame := make([]byte, 0, 1+len(body)+2)
	frame = append(frame, station)
	frame = append(frame, body...)
	return AppendCRC(frame)
}

// unwrapFrame validates a response frame and returns it with the CRC
// stripped, so the result is station + function code + payload.
//
// Validation order: minimum length, CRC, exception flag. An exception
// reply produces a ModbusError carrying the code byte, its standard
// description and the raw frame.
func unwrapFrame(frame []byte, expectedFC uint8) ([]byte, *ModbusError) {
	if len(frame) < 5 {
		return nil, &ModbusError{
			Kind:    ErrKindShortFrame,
			Message: "response frame too short",
			Frame:   frame,
		}
	}
	if !VerifyCRC(frame) {
		return nil, &ModbusError{
			Kind:    ErrKindCRCMismatch,
			Message: "response CRC check failed",
			Frame:   frame,
		}
	}
	if frame[1] == expectedFC|0x80 {
		code := frame[2]
		return nil, &ModbusError{
			Kind:          ErrKindException,
			FunctionCode:  expectedFC,
			ExceptionCode: code,
			Message:       getExceptionMessage(code),
			Frame:         frame,
		}
	}
	return frame[:len(frame)-2], nil
}
