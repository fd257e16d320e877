package modbus

import (
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// ByteTransform maps between the big-endian 16-bit word stream a slave
// keeps its data in and machine scalars. The three flags are orthogonal:
//
//	WordSwap       swaps the two bytes inside every 16-bit word
//	MultiWordSwap  swaps the word order inside 32-bit scalars and
//	               reverses it inside 64-bit scalars
//	StringWordSwap swaps the two bytes of every word pair when
//	               transcoding strings
//
// A ByteTransform is an immutable value; encode and decode are pure and
// exact inverses of each other for every flag combination.
type ByteTransform struct {
	WordSwap       bool
	MultiWordSwap  bool
	StringWordSwap bool
}

// apply runs the word-level reordering shared by encode and decode.
// Both steps are involutions, so the same function serves both
// directions.
func (bt ByteTransform) apply(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)
	if bt.MultiWordSwap {
		switch len(out) {
		case 4:
			out[0], out[1], out[2], out[3] = out[2], out[3], out[0], out[1]
		case 8:
			out[0], out[1], out[6], out[7] = out[6], out[7], out[0], out[1]
			out[2], out[3], out[4], out[5] = out[4], out[5], out[2], out[3]
		}
	}
	if bt.WordSwap {
		for i := 0; i+1 < len(out); i += 2 {
			out[i], out[i+1] = out[i+1], out[i]
		}
	}
	return out
}

// DecodeUint16 decodes one register starting at buf[0].
func (bt ByteTransform) DecodeUint16(buf []byte) uint16 {
	b := bt.apply(buf[:2])
	return uint16(b[0])<<8 | uint16(b[1])
}

// DecodeInt16 decodes one register as a signed value.
func (bt ByteTransform) DecodeInt16(buf []byte) int16 {
	return int16(bt.DecodeUint16(buf))
}

// DecodeUint32 decodes two registers starting at buf[0].
func (bt ByteTransform) DecodeUint32(buf []byte) uint32 {
	b := bt.apply(buf[:4])
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// DecodeInt32 decodes two registers as a signed value.
func (bt ByteTransform) DecodeInt32(buf []byte) int32 {
	return int32(bt.DecodeUint32(buf))
}

// DecodeFloat32 decodes two registers as an IEEE-754 single.
func (bt ByteTransform) DecodeFloat32(buf []byte) float32 {
	return math.Float32frombits(bt.DecodeUint32(buf))
}

// DecodeUint64 decodes four registers starting at buf[0].
func (bt ByteTransform) DecodeUint64(buf []byte) uint64 {
	b := bt.apply(buf[:8])
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// DecodeInt64 decodes four registers as a signed value.
func (bt ByteTransform) DecodeInt64(buf []byte) int64 {
	return int64(bt.DecodeUint64(buf))
}

// DecodeFloat64 decodes four registers as an IEEE-754 double.
func (bt ByteTransform) DecodeFloat64(buf []byte) float64 {
	return math.Float64frombits(bt.DecodeUint64(buf))
}

// EncodeUint16 produces the two wire bytes for one register.
func (bt ByteTransform) EncodeUint16(v uint16) []byte {
	return bt.apply([]byte{byte(v >> 8), byte(v)})
}

// EncodeInt16 produces the two wire bytes for one signed register.
func (bt ByteTransform) EncodeInt16(v int16) []byte {
	return bt.EncodeUint16(uint16(v))
}

// EncodeUint32 produces the four wire bytes for a 32-bit value.
func (bt ByteTransform) EncodeUint32(v uint32) []byte {
	return bt.apply([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// EncodeInt32 produces the four wire bytes for a signed 32-bit value.
func (bt ByteTransform) EncodeInt32(v int32) []byte {
	return bt.EncodeUint32(uint32(v))
}

// EncodeFloat32 produces the four wire bytes for an IEEE-754 single.
func (bt ByteTransform) EncodeFloat32(v float32) []byte {
	return bt.EncodeUint32(math.Float32bits(v))
}

// EncodeUint64 produces the eight wire bytes for a 64-bit value.
func (bt ByteTransform) EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return bt.apply(b)
}

// EncodeInt64 produces the eight wire bytes for a signed 64-bit value.
func (bt ByteTransform) EncodeInt64(v int64) []byte {
	return bt.EncodeUint64(uint64(v))
}

// EncodeFloat64 produces the eight wire bytes for an IEEE-754 double.
func (bt ByteTransform) EncodeFloat64(v float64) []byte {
	return bt.EncodeUint64(math.Float64bits(v))
}

// DecodeUint16s maps count registers out of buf.
func (bt ByteTransform) DecodeUint16s(buf []byte, count int) []uint16 {
	out := make([]uint16, count)
	for i := range out {
		out[i] = bt.DecodeUint16(buf[2*i:])
	}
	return out
}

// DecodeInt16s maps count signed registers out of buf.
func (bt ByteTransform) DecodeInt16s(buf []byte, count int) []int16 {
	out := make([]int16, count)
	for i := range out {
		out[i] = bt.DecodeInt16(buf[2*i:])
	}
	return out
}

// DecodeUint32s maps count 32-bit values out of buf.
func (bt ByteTransform) DecodeUint32s(buf []byte, count int) []uint32 {
	out := make([]uint32, count)
	for i := range out {
		out[i] = bt.DecodeUint32(buf[4*i:])
	}
	return out
}

// DecodeInt32s maps count signed 32-bit values out of buf.
func (bt ByteTransform) DecodeInt32s(buf []byte, count int) []int32 {
	out := make([]int32, count)
	for i := range out {
		out[i] = bt.DecodeInt32(buf[4*i:])
	}
	return out
}

// DecodeFloat32s maps count singles out of buf.
func (bt ByteTransform) DecodeFloat32s(buf []byte, count int) []float32 {
	out := make([]float32, count)
	for i := range out {
		out[i] = bt.DecodeFloat32(buf[4*i:])
	}
	return out
}

// DecodeUint64s maps count 64-bit values out of buf.
func (bt ByteTransform) DecodeUint64s(buf []byte, count int) []uint64 {
	out := make([]uint64, count)
	for i := range out {
		out[i] = bt.DecodeUint64(buf[8*i:])
	}
	return out
}

// DecodeInt64s maps count signed 64-bit values out of buf.
func (bt ByteTransform) DecodeInt64s(buf []byte, count int) []int64 {
	out := make([]int64, count)
	for i := range out {
		out[i] = bt.DecodeInt64(buf[8*i:])
	}
	return out
}

// DecodeFloat64s maps count doubles out of buf.
func (bt ByteTransform) DecodeFloat64s(buf []byte, count int) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = bt.DecodeFloat64(buf[8*i:])
	}
	return out
}

// EncodeUint16s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeUint16s(values []uint16) []byte {
	out := make([]byte, 0, 2*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeUint16(v)...)
	}
	return out
}

// EncodeInt16s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeInt16s(values []int16) []byte {
	out := make([]byte, 0, 2*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeInt16(v)...)
	}
	return out
}

// EncodeUint32s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeUint32s(values []uint32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeUint32(v)...)
	}
	return out
}

// EncodeInt32s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeInt32s(values []int32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeInt32(v)...)
	}
	return out
}

// EncodeFloat32s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeFloat32s(values []float32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeFloat32(v)...)
	}
	return out
}

// EncodeUint64s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeUint64s(values []uint64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeUint64(v)...)
	}
	return out
}

// EncodeInt64s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeInt64s(values []int64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeInt64(v)...)
	}
	return out
}

// EncodeFloat64s concatenates the wire bytes of every element.
func (bt ByteTransform) EncodeFloat64s(values []float64) []byte {
	out := make([]byte, 0, 8*len(values))
	for _, v := range values {
		out = append(out, bt.EncodeFloat64(v)...)
	}
	return out
}

// StringEncoding selects the byte encoding used by the string codecs.
type StringEncoding int

const (
	// EncodingASCII stores one byte per character.
	EncodingASCII StringEncoding = iota
	// EncodingUnicode stores UTF-16 little-endian, two bytes per code unit.
	EncodingUnicode
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeString produces the wire bytes for s. The result is padded with
// zero bytes to an even length; when length is positive the result is
// zero-filled or truncated to that many bytes, plus one zero byte when
// length is odd. StringWordSwap swaps every byte pair afterwards.
func (bt ByteTransform) EncodeString(s string, length int, enc StringEncoding) ([]byte, error) {
	var raw []byte
	switch enc {
	case EncodingASCII:
		raw = []byte(s)
	case EncodingUnicode:
		b, err := utf16le.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("modbus: unicode encode failed: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("modbus: unknown string encoding %d", enc)
	}
	if length > 0 {
		if len(raw) > length {
			raw = raw[:length]
		} else {
			raw = append(raw, make([]byte, length-len(raw))...)
		}
	}
	if len(raw)%2 != 0 {
		raw = append(raw, 0)
	}
	if bt.StringWordSwap {
		for i := 0; i+1 < len(raw); i += 2 {
			raw[i], raw[i+1] = raw[i+1], raw[i]
		}
	}
	return raw, nil
}

// DecodeString turns wire bytes back into a string, undoing
// StringWordSwap first and dropping trailing zero padding.
func (bt ByteTransform) DecodeString(buf []byte, enc StringEncoding) (string, error) {
	b := make([]byte, len(buf))
	copy(b, buf)
	if bt.StringWordSwap {
		for i := 0; i+1 < len(b); i += 2 {
			b[i], b[i+1] = b[i+1], b[i]
		}
	}
	switch enc {
	case EncodingASCII:
		for len(b) > 0 && b[len(b)-1] == 0 {
			b = b[:len(b)-1]
		}
		return string(b), nil
	case EncodingUnicode:
		for len(b) >= 2 && b[len(b)-2] == 0 && b[len(b)-1] == 0 {
			b = b[:len(b)-2]
		}
		out, err := utf16le.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("modbus: unicode decode failed: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("modbus: unknown string encoding %d", enc)
	}
}

// PackBools packs values LSB-first, eight per byte, padding the final
// byte with zero bits.
func PackBools(values []bool) []byte {
	out := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

// UnpackBools produces exactly count booleans, LSB-first, dropping the
// padding bits of the final byte.
func UnpackBools(buf []byte, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		byteIndex := i / 8
		bitIndex := i % 8
		if byteIndex < len(buf) && (buf[byteIndex]&(1<<bitIndex)) != 0 {
			out[i] = true
		}
	}
	return out
}
