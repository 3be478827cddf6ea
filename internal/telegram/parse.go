package telegram

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrUnrecognizedLine marks a line without the ADDRESS(PAYLOAD) shape.
	ErrUnrecognizedLine = errors.New("telegram: unrecognized line")

	// ErrNoValuePayload marks a data line whose payload has no VALUE*UNIT split.
	ErrNoValuePayload = errors.New("telegram: payload has no value")

	// ErrNonFiniteValue is wrapped by a [MalformedValueError] whose VALUE
	// parsed as NaN or an infinity.
	ErrNonFiniteValue = errors.New("value is not finite")

	// ErrMalformedValue marks a VALUE that is not a number.
	ErrMalformedValue = errors.New("telegram: malformed value")
)

// Measurement is one parsed (address, value, unit) triple.
type Measurement struct {
	Address string  `json:"address"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
}

// LineKind classifies the outcome of parsing one line.
type LineKind int

const (
	// Unrecognized lines do not have the ADDRESS(PAYLOAD) shape: headers,
	// blank lines, the end marker line.
	Unrecognized LineKind = iota

	// NoValue lines have an address and payload but no '*' in the payload.
	NoValue

	// Malformed lines have a VALUE*UNIT payload whose VALUE is not numeric.
	Malformed

	// Matched lines produced a [Measurement].
	Matched
)

// String returns the lower-case name of the kind.
func (k LineKind) String() string {
	switch k {
	case Unrecognized:
		return "unrecognized"
	case NoValue:
		return "no_value"
	case Malformed:
		return "malformed"
	case Matched:
		return "matched"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

// MalformedValueError describes a numeric parse failure on a data line.
type MalformedValueError struct {
	Line    int    // 1-based line number within the frame, 0 for ParseLine
	Address string // address of the offending line
	Raw     string // the VALUE text that failed to parse
	Err     error  // underlying strconv error
}

func (e *MalformedValueError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("telegram: line %d: malformed value %q for %s: %v", e.Line, e.Raw, e.Address, e.Err)
	}
	return fmt.Sprintf("telegram: malformed value %q for %s: %v", e.Raw, e.Address, e.Err)
}

// Is reports ErrMalformedValue as a match so callers can use errors.Is.
func (e *MalformedValueError) Is(target error) bool {
	return target == ErrMalformedValue
}

func (e *MalformedValueError) Unwrap() error {
	return e.Err
}

// LineResult is the tagged outcome of [ParseLine].
//
// Address is set for every kind except [Unrecognized]. Measurement is only
// meaningful for [Matched]. Err is nil only for [Matched].
type LineResult struct {
	Kind        LineKind
	Address     string
	Measurement Measurement
	Err         error
}

// ParseLine decodes one telegram line.
//
// The address is everything before the first '(' and must be non-empty; the
// payload is the text inside that parenthesis and its matching ')'. The
// payload is split on its first '*' into a numeric value and a unit.
// Surrounding whitespace around the value is tolerated.
func ParseLine(line string) LineResult {
	line = strings.TrimRight(line, "\r\n")

	address, payload, ok := splitAddress(line)
	if !ok {
		return LineResult{Kind: Unrecognized, Err: ErrUnrecognizedLine}
	}

	raw, unit, ok := strings.Cut(payload, "*")
	if !ok {
		return LineResult{Kind: NoValue, Address: address, Err: ErrNoValuePayload}
	}

	raw = strings.TrimSpace(raw)
	value, err := strconv.ParseFloat(raw, 64)
	if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
		err = ErrNonFiniteValue
	}
	if err != nil {
		return LineResult{
			Kind:    Malformed,
			Address: address,
			Err:     &MalformedValueError{Address: address, Raw: raw, Err: err},
		}
	}

	return LineResult{
		Kind:        Matched,
		Address:     address,
		Measurement: Measurement{Address: address, Value: value, Unit: unit},
	}
}

// splitAddress returns the text before the first '(' and the text strictly
// inside that parenthesis and its matching ')'.
func splitAddress(line string) (address, payload string, ok bool) {
	open := strings.IndexByte(line, '(')
	if open < 1 {
		return "", "", false
	}

	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return line[:open], line[open+1 : i], true
			}
		}
	}
	return "", "", false
}

// FrameResult collects the outcome of parsing every line of a frame.
type FrameResult struct {
	// Measurements holds matched lines in frame order. The same address may
	// appear more than once; later entries win when applied.
	Measurements []Measurement

	// Skipped counts Unrecognized and NoValue lines.
	Skipped int

	// Malformed holds one *MalformedValueError per malformed line.
	Malformed []error
}

// ParseFrame splits frame text into lines and parses each one in order.
//
// Parsing never fails as a whole: the worst case for a bad line is that its
// reading is dropped.
func ParseFrame(text string) FrameResult {
	var res FrameResult

	for i, line := range splitLines(text) {
		lr := ParseLine(line)
		switch lr.Kind {
		case Matched:
			res.Measurements = append(res.Measurements, lr.Measurement)
		case Malformed:
			var mve *MalformedValueError
			if errors.As(lr.Err, &mve) {
				mve.Line = i + 1
			}
			res.Malformed = append(res.Malformed, lr.Err)
		default:
			res.Skipped++
		}
	}

	return res
}

// Identification returns the identification line of a telegram: the text
// following the start byte on the first line, e.g. "ESY5Q3DA1024 V3.04".
// Returns "" when the text does not begin with a start byte.
func Identification(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	first, _, _ := strings.Cut(text[1:], "\n")
	return strings.TrimSpace(first)
}

// splitLines splits on "\n", "\r\n" and lone "\r" terminators.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
