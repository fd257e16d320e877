package modbus

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/hootrhino/goserial"
)

// Transport is the synchronous request/response contract the client
// speaks. Exchange blocks until the slave's reply has been collected or
// the transport's timeout expires; transport failures are surfaced
// unchanged.
type Transport interface {
	Exchange(request []byte) ([]byte, error)
}

// Broadcaster is implemented by transports that can emit a frame
// without waiting for a reply. Broadcast writes (station 0) use it when
// available.
type Broadcaster interface {
	Send(request []byte) error
}

// ReceiveVerifier is an optional pre-check hook a transport may run on
// received buffers before handing them up.
type ReceiveVerifier interface {
	VerifyReceived(buf []byte) bool
}

// SerialTransportConfig holds the tuning knobs of a SerialTransport.
type SerialTransportConfig struct {
	Timeout      time.Duration // Overall response timeout
	BaudRate     int           // Used to derive the 3.5-character guard delay
	MaxFrameSize int           // Upper bound on a received frame
}

// DefaultSerialTransportConfig returns the defaults used when a field
// is left zero.
func DefaultSerialTransportConfig() SerialTransportConfig {
	return SerialTransportConfig{
		Timeout:      1 * time.Second,
		BaudRate:     9600,
		MaxFrameSize: 256,
	}
}

// SerialTransport drives a half-duplex serial link. It guards every
// transmission with the RTU inter-frame delay, then collects the reply
// until the expected length is reached or the port stops producing
// bytes.
type SerialTransport struct {
	port         io.ReadWriteCloser
	timeout      time.Duration
	baudRate     int
	maxFrameSize int
	mu           sync.Mutex
}

// NewSerialTransport wraps an already-open port. Zero config fields
// fall back to DefaultSerialTransportConfig.
func NewSerialTransport(port io.ReadWriteCloser, config SerialTransportConfig) *SerialTransport {
	def := DefaultSerialTransportConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.BaudRate <= 0 {
		config.BaudRate = def.BaudRate
	}
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = def.MaxFrameSize
	}
	return &SerialTransport{
		port:         port,
		timeout:      config.Timeout,
		baudRate:     config.BaudRate,
		maxFrameSize: config.MaxFrameSize,
	}
}

// OpenSerialTransport opens the serial device and wraps it in a
// SerialTransport.
func OpenSerialTransport(device string, baudRate, dataBits, stopBits int, parity string, config SerialTransportConfig) (*SerialTransport, error) {
	port, err := serial.Open(&serial.Config{
		Address:  device,
		BaudRate: baudRate,
		DataBits: dataBits,
		StopBits: stopBits,
		Parity:   parity,
		Timeout:  config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("modbus: failed to open serial port %s: %w", device, err)
	}
	config.BaudRate = baudRate
	return NewSerialTransport(port, config), nil
}

// Exchange writes the request frame and collects the reply.
func (t *SerialTransport) Exchange(request []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.write(request); err != nil {
		return nil, err
	}

	expected := expectedResponseLength(request)
	if expected > t.maxFrameSize {
		expected = t.maxFrameSize
	}

	deadline := time.Now().Add(t.timeout)
	resp := make([]byte, 0, expected)
	tmp := make([]byte, t.maxFrameSize)
	for len(resp) < expected {
		if time.Now().After(deadline) {
			if len(resp) > 0 {
				break
			}
			return nil, fmt.Errorf("modbus: no response within %v", t.timeout)
		}
		n, err := t.port.Read(tmp)
		if n > 0 {
			resp = append(resp, tmp[:n]...)
		}
		// An exception reply is complete at 5 bytes regardless of what
		// the request promised.
		if len(resp) >= 5 && resp[1] >= 0x80 {
			break
		}
		if err != nil {
			if len(resp) > 0 {
				break
			}
			return nil, fmt.Errorf("modbus: serial read failed: %w", err)
		}
		if len(resp) >= t.maxFrameSize {
			break
		}
	}
	return resp, nil
}

// Send writes the request frame without waiting for a reply. Used for
// broadcast writes, which by definition are never answered.
func (t *SerialTransport) Send(request []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(request)
}

func (t *SerialTransport) write(request []byte) error {
	if t.port == nil {
		return fmt.Errorf("modbus: serial transport is closed")
	}
	if len(request) == 0 {
		return fmt.Errorf("modbus: cannot write empty frame")
	}

	// Respect the inter-frame silence before transmitting.
	time.Sleep(t.frameDelay())

	written := 0
	for written < len(request) {
		n, err := t.port.Write(request[written:])
		if err != nil {
			return fmt.Errorf("modbus: serial write failed after %d bytes: %w", written, err)
		}
		written += n
	}
	return nil
}

// VerifyReceived implements ReceiveVerifier with the shared CRC check.
func (t *SerialTransport) VerifyReceived(buf []byte) bool {
	return VerifyCRC(buf)
}

// Close closes the underlying serial port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// frameDelay returns the 3.5 character times of silence the RTU line
// discipline requires between frames. Above 19200 baud the standard
// fixes the delay at 1750 microseconds.
func (t *SerialTransport) frameDelay() time.Duration {
	if t.baudRate <= 0 || t.baudRate > 19200 {
		return 1750 * time.Microsecond
	}
	return time.Duration(35000000/t.baudRate) * time.Microsecond
}

// expectedResponseLength estimates the full reply size (station +
// function code + payload + CRC) implied by a request frame.
func expectedResponseLength(request []byte) int {
	if len(request) < 6 {
		return 5
	}
	switch request[1] {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs:
		count := int(binary.BigEndian.Uint16(request[4:6]))
		n := count / 8
		if count%8 != 0 {
			n++
		}
		return 5 + n
	case FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters:
		count := int(binary.BigEndian.Uint16(request[4:6]))
		return 5 + count*2
	case FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
		return 8
	default:
		return 5
	}
}
