package modbus

// Typed reads and writes. Every scalar occupies a fixed number of
// 16-bit registers (1 for 16-bit types, 2 for 32-bit, 4 for 64-bit);
// the byte transform configured on the client maps between the wire
// words and the machine value. Array variants multiply the register
// count and map over the buffer. Typed writes run the transform and
// delegate to Write.

// ReadInt16 reads one register as a signed 16-bit value.
func (c *Client) ReadInt16(expr string) (int16, error) {
	buf, err := c.Read(expr, 1)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeInt16(buf), nil
}

// ReadUint16 reads one register as an unsigned 16-bit value.
func (c *Client) ReadUint16(expr string) (uint16, error) {
	buf, err := c.Read(expr, 1)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeUint16(buf), nil
}

// ReadInt32 reads two registers as a signed 32-bit value.
func (c *Client) ReadInt32(expr string) (int32, error) {
	buf, err := c.Read(expr, 2)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeInt32(buf), nil
}

// ReadUint32 reads two registers as an unsigned 32-bit value.
func (c *Client) ReadUint32(expr string) (uint32, error) {
	buf, err := c.Read(expr, 2)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeUint32(buf), nil
}

// ReadFloat32 reads two registers as an IEEE-754 single.
func (c *Client) ReadFloat32(expr string) (float32, error) {
	buf, err := c.Read(expr, 2)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeFloat32(buf), nil
}

// ReadInt64 reads four registers as a signed 64-bit value.
func (c *Client) ReadInt64(expr string) (int64, error) {
	buf, err := c.Read(expr, 4)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeInt64(buf), nil
}

// ReadUint64 reads four registers as an unsigned 64-bit value.
func (c *Client) ReadUint64(expr string) (uint64, error) {
	buf, err := c.Read(expr, 4)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeUint64(buf), nil
}

// ReadFloat64 reads four registers as an IEEE-754 double.
func (c *Client) ReadFloat64(expr string) (float64, error) {
	buf, err := c.Read(expr, 4)
	if err != nil {
		return 0, err
	}
	return c.transform.DecodeFloat64(buf), nil
}

// ReadInt16s reads count consecutive signed 16-bit values.
func (c *Client) ReadInt16s(expr string, count uint16) ([]int16, error) {
	buf, err := c.Read(expr, count)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeInt16s(buf, int(count)), nil
}

// ReadUint16s reads count consecutive unsigned 16-bit values.
func (c *Client) ReadUint16s(expr string, count uint16) ([]uint16, error) {
	buf, err := c.Read(expr, count)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeUint16s(buf, int(count)), nil
}

// ReadInt32s reads count consecutive signed 32-bit values.
func (c *Client) ReadInt32s(expr string, count uint16) ([]int32, error) {
	buf, err := c.Read(expr, count*2)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeInt32s(buf, int(count)), nil
}

// ReadUint32s reads count consecutive unsigned 32-bit values.
func (c *Client) ReadUint32s(expr string, count uint16) ([]uint32, error) {
	buf, err := c.Read(expr, count*2)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeUint32s(buf, int(count)), nil
}

// ReadFloat32s reads count consecutive IEEE-754 singles.
func (c *Client) ReadFloat32s(expr string, count uint16) ([]float32, error) {
	buf, err := c.Read(expr, count*2)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeFloat32s(buf, int(count)), nil
}

// ReadInt64s reads count consecutive signed 64-bit values.
func (c *Client) ReadInt64s(expr string, count uint16) ([]int64, error) {
	buf, err := c.Read(expr, count*4)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeInt64s(buf, int(count)), nil
}

// ReadUint64s reads count consecutive unsigned 64-bit values.
func (c *Client) ReadUint64s(expr string, count uint16) ([]uint64, error) {
	buf, err := c.Read(expr, count*4)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeUint64s(buf, int(count)), nil
}

// ReadFloat64s reads count consecutive IEEE-754 doubles.
func (c *Client) ReadFloat64s(expr string, count uint16) ([]float64, error) {
	buf, err := c.Read(expr, count*4)
	if err != nil {
		return nil, err
	}
	return c.transform.DecodeFloat64s(buf, int(count)), nil
}

// ReadString reads length registers and returns their ASCII view.
func (c *Client) ReadString(expr string, length uint16) (string, error) {
	buf, err := c.Read(expr, length)
	if err != nil {
		return "", err
	}
	return c.transform.DecodeString(buf, EncodingASCII)
}

// ReadUnicodeString reads length registers and returns their UTF-16LE
// view.
func (c *Client) ReadUnicodeString(expr string, length uint16) (string, error) {
	buf, err := c.Read(expr, length)
	if err != nil {
		return "", err
	}
	return c.transform.DecodeString(buf, EncodingUnicode)
}

// WriteInt16 writes one signed 16-bit value (FC 16).
func (c *Client) WriteInt16(expr string, value int16) error {
	return c.Write(expr, c.transform.EncodeInt16(value))
}

// WriteUint16 writes one unsigned 16-bit value (FC 16).
func (c *Client) WriteUint16(expr string, value uint16) error {
	return c.Write(expr, c.transform.EncodeUint16(value))
}

// WriteInt32 writes one signed 32-bit value (FC 16).
func (c *Client) WriteInt32(expr string, value int32) error {
	return c.Write(expr, c.transform.EncodeInt32(value))
}

// WriteUint32 writes one unsigned 32-bit value (FC 16).
func (c *Client) WriteUint32(expr string, value uint32) error {
	return c.Write(expr, c.transform.EncodeUint32(value))
}

// WriteFloat32 writes one IEEE-754 single (FC 16).
func (c *Client) WriteFloat32(expr string, value float32) error {
	return c.Write(expr, c.transform.EncodeFloat32(value))
}

// WriteInt64 writes one signed 64-bit value (FC 16).
func (c *Client) WriteInt64(expr string, value int64) error {
	return c.Write(expr, c.transform.EncodeInt64(value))
}

// WriteUint64 writes one unsigned 64-bit value (FC 16).
func (c *Client) WriteUint64(expr string, value uint64) error {
	return c.Write(expr, c.transform.EncodeUint64(value))
}

// WriteFloat64 writes one IEEE-754 double (FC 16).
func (c *Client) WriteFloat64(expr string, value float64) error {
	return c.Write(expr, c.transform.EncodeFloat64(value))
}

// WriteInt16s writes consecutive signed 16-bit values (FC 16).
func (c *Client) WriteInt16s(expr string, values []int16) error {
	return c.Write(expr, c.transform.EncodeInt16s(values))
}

// WriteUint16s writes consecutive unsigned 16-bit values (FC 16).
func (c *Client) WriteUint16s(expr string, values []uint16) error {
	return c.Write(expr, c.transform.EncodeUint16s(values))
}

// WriteInt32s writes consecutive signed 32-bit values (FC 16).
func (c *Client) WriteInt32s(expr string, values []int32) error {
	return c.Write(expr, c.transform.EncodeInt32s(values))
}

// WriteUint32s writes consecutive unsigned 32-bit values (FC 16).
func (c *Client) WriteUint32s(expr string, values []uint32) error {
	return c.Write(expr, c.transform.EncodeUint32s(values))
}

// WriteFloat32s writes consecutive IEEE-754 singles (FC 16).
func (c *Client) WriteFloat32s(expr string, values []float32) error {
	return c.Write(expr, c.transform.EncodeFloat32s(values))
}

// WriteInt64s writes consecutive signed 64-bit values (FC 16).
func (c *Client) WriteInt64s(expr string, values []int64) error {
	return c.Write(expr, c.transform.EncodeInt64s(values))
}

// WriteUint64s writes consecutive unsigned 64-bit values (FC 16).
func (c *Client) WriteUint64s(expr string, values []uint64) error {
	return c.Write(expr, c.transform.EncodeUint64s(values))
}

// WriteFloat64s writes consecutive IEEE-754 doubles (FC 16).
func (c *Client) WriteFloat64s(expr string, values []float64) error {
	return c.Write(expr, c.transform.EncodeFloat64s(values))
}

// WriteString writes s as ASCII into length registers, zero-filled on
// short and truncated on long. A zero length uses the natural size of
// s padded to a whole register.
func (c *Client) WriteString(expr string, s string, length uint16) error {
	data, err := c.transform.EncodeString(s, int(length)*2, EncodingASCII)
	if err != nil {
		return err
	}
	return c.Write(expr, data)
}

// WriteUnicodeString writes s as UTF-16LE into length registers.
func (c *Client) WriteUnicodeString(expr string, s string, length uint16) error {
	data, err := c.transform.EncodeString(s, int(length)*2, EncodingUnicode)
	if err != nil {
		return err
	}
	return c.Write(expr, data)
}
