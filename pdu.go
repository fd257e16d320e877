package modbus

import "encoding/binary"

// Modbus function codes implemented by this client.
const (
	FuncCodeReadCoils              = 1
	FuncCodeReadDiscreteInputs     = 2
	FuncCodeReadHoldingRegisters   = 3
	FuncCodeReadInputRegisters     = 4
	FuncCodeWriteSingleCoil        = 5
	FuncCodeWriteSingleRegister    = 6
	FuncCodeWriteMultipleCoils     = 15
	FuncCodeWriteMultipleRegisters = 16
)

// Quantity limits from the Modbus application protocol.
const (
	MaxReadBits       = 2000
	MaxReadRegisters  = 125
	MaxWriteRegisters = 123

	// ChunkRegisters caps a single on-wire register read; longer reads
	// are split into sequential requests.
	ChunkRegisters = 120
)

// getExceptionMessage returns a human-readable message for a Modbus
// exception code.
func getExceptionMessage(exceptionCode uint8) string {
	switch exceptionCode {
	case 0x01:
		return "Illegal function"
	case 0x02:
		return "Illegal data address"
	case 0x03:
		return "Illegal data value"
	case 0x04:
		return "Server device failure"
	case 0x05:
		return "Acknowledge"
	case 0x06:
		return "Server device busy"
	case 0x08:
		return "Memory parity error"
	case 0x0A:
		return "Gateway path unavailable"
	case 0x0B:
		return "Gateway target failed to respond"
	default:
		return "Unknown exception code"
	}
}

// buildReadPDU constructs the request body (function code included) for
// the four read function codes: address + quantity.
func buildReadPDU(functionCode uint8, offset, quantity uint16) ([]byte, error) {
	var maxQuantity uint16
	switch functionCode {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		maxQuantity = MaxReadBits
	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		maxQuantity = MaxReadRegisters
	default:
		return nil, newModbusError(ErrKindUnsupportedFunction, "function code %d is not a read operation", functionCode)
	}
	if err := checkQuantity(offset, quantity, maxQuantity); err != nil {
		return nil, err
	}
	pdu := make([]byte, 5)
	pdu[0] = functionCode
	binary.BigEndian.PutUint16(pdu[1:3], offset)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	return pdu, nil
}

// buildWriteSingleCoilPDU constructs the FC 05 body. The on-wire value
// is 0xFF00 for ON and 0x0000 for OFF.
func buildWriteSingleCoilPDU(offset uint16, value bool) []byte {
	pdu := make([]byte, 5)
	pdu[0] = FuncCodeWriteSingleCoil
	binary.BigEndian.PutUint16(pdu[1:3], offset)
	if value {
		binary.BigEndian.PutUint16(pdu[3:5], 0xFF00)
	}
	return pdu
}

// buildWriteSingleRegisterPDU constructs the FC 06 body with the two
// data bytes placed exactly as supplied.
func buildWriteSingleRegisterPDU(offset uint16, dataHigh, dataLow byte) []byte {
	pdu := make([]byte, 5)
	pdu[0] = FuncCodeWriteSingleRegister
	binary.BigEndian.PutUint16(pdu[1:3], offset)
	pdu[3] = dataHigh
	pdu[4] = dataLow
	return pdu
}

// buildWriteMultipleCoilsPDU constructs the FC 15 body with LSB-first
// bit packing.
func buildWriteMultipleCoilsPDU(offset uint16, values []bool) ([]byte, error) {
	quantity := uint16(len(values))
	if err := checkQuantity(offset, quantity, MaxReadBits); err != nil {
		return nil, err
	}
	packed := PackBools(values)
	pdu := make([]byte, 6, 6+len(packed))
	pdu[0] = FuncCodeWriteMultipleCoils
	binary.BigEndian.PutUint16(pdu[1:3], offset)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	pdu[5] = byte(len(packed))
	return append(pdu, packed...), nil
}

// buildWriteMultipleRegistersPDU constructs the FC 16 body. data must
// already be byte-ordered for the wire and of even length.
func buildWriteMultipleRegistersPDU(offset uint16, data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%2 != 0 {
		return nil, newModbusError(ErrKindInvalidQuantity, "register payload must be a positive even number of bytes, got %d", len(data))
	}
	quantity := uint16(len(data) / 2)
	if err := checkQuantity(offset, quantity, MaxWriteRegisters); err != nil {
		return nil, err
	}
	pdu := make([]byte, 6, 6+len(data))
	pdu[0] = FuncCodeWriteMultipleRegisters
	binary.BigEndian.PutUint16(pdu[1:3], offset)
	binary.BigEndian.PutUint16(pdu[3:5], quantity)
	pdu[5] = byte(len(data))
	return append(pdu, data...), nil
}

// checkQuantity enforces the per-request quantity range and the 16-bit
// address space bound.
func checkQuantity(offset, quantity, max uint16) *ModbusError {
	if quantity < 1 || quantity > max {
		return newModbusError(ErrKindInvalidQuantity, "quantity %d out of range 1..%d", quantity, max)
	}
	if uint32(offset)+uint32(quantity) > 0x10000 {
		return newModbusError(ErrKindInvalidQuantity, "address %d + quantity %d exceeds the register space", offset, quantity)
	}
	return nil
}
