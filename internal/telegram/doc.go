// Package telegram decodes and encodes the text body of D0 telegrams.
//
// A telegram body is a sequence of CRLF-terminated lines. Data lines have the
// shape ADDRESS(VALUE*UNIT), where ADDRESS is an OBIS code such as
// "1-0:1.8.0*255". Identification, block header and checksum lines share the
// stream and are skipped rather than rejected.
//
// Every line produces a tagged [LineResult] so callers can tell an expected
// skip ([Unrecognized], [NoValue]) from a data error ([Malformed]) without
// inspecting a failed match.
//
// Example:
//
//	res := telegram.ParseFrame("/ESY5\r\n1-0:1.8.0*255(00123.456*kWh)\r\n!")
//	for _, m := range res.Measurements {
//	    fmt.Println(m.Address, m.Value, m.Unit)
//	}
package telegram
