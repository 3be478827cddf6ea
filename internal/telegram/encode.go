package telegram

import (
	"bytes"
	"strconv"
)

// Telegram is a complete reading set in encodable form.
type Telegram struct {
	// Identification is written after the start byte, e.g. "ESY5Q3DA1024 V3.04".
	Identification string

	// Lines are free-form lines written before the measurements, such as
	// "0-0:96.1.255(1ESY1160000001)". They are emitted verbatim.
	Lines []string

	// Measurements are written in order as ADDRESS(VALUE*UNIT).
	Measurements []Measurement
}

// Encode renders t in the D0 wire format:
//
//	/IDENT\r\n
//	\r\n
//	LINE\r\n ...
//	ADDRESS(VALUE*UNIT)\r\n ...
//	!\r\n
//
// Values use the shortest representation that parses back to the same
// float64, so ParseFrame(string(Encode(t))) reproduces t.Measurements.
func Encode(t Telegram) []byte {
	var buf bytes.Buffer

	buf.WriteByte('/')
	buf.WriteString(t.Identification)
	buf.WriteString("\r\n\r\n")

	for _, line := range t.Lines {
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}

	for _, m := range t.Measurements {
		buf.Write(AppendMeasurement(nil, m))
		buf.WriteString("\r\n")
	}

	buf.WriteString("!\r\n")
	return buf.Bytes()
}

// AppendMeasurement appends the ADDRESS(VALUE*UNIT) form of m to dst.
func AppendMeasurement(dst []byte, m Measurement) []byte {
	dst = append(dst, m.Address...)
	dst = append(dst, '(')
	dst = strconv.AppendFloat(dst, m.Value, 'f', -1, 64)
	dst = append(dst, '*')
	dst = append(dst, m.Unit...)
	dst = append(dst, ')')
	return dst
}
