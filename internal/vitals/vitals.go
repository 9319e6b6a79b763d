// ABOUTME: Field definitions and validation for blood pressure readings
// ABOUTME: Parses user text into integers and enforces per-field inclusive ranges

package vitals

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Field identifies one of the three captured values.
type Field int

const (
	Systolic Field = iota
	Diastolic
	Pulse
)

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

var ranges = map[Field]Range{
	Systolic:  {Min: 30, Max: 250},
	Diastolic: {Min: 30, Max: 180},
	Pulse:     {Min: 30, Max: 250},
}

// Range returns the accepted interval for the field.
func (f Field) Range() Range {
	return ranges[f]
}

func (f Field) String() string {
	switch f {
	case Systolic:
		return "systolic"
	case Diastolic:
		return "diastolic"
	case Pulse:
		return "pulse"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Sentinel errors matched by ValidationError.Is.
var (
	ErrNotANumber = errors.New("not a number")
	ErrOutOfRange = errors.New("out of range")
)

// Kind classifies a validation failure.
type Kind int

const (
	NotANumber Kind = iota
	OutOfRange
)

func (k Kind) String() string {
	if k == OutOfRange {
		return "out_of_range"
	}
	return "not_a_number"
}

// ValidationError describes why raw input was rejected for a field.
type ValidationError struct {
	Field Field
	Kind  Kind
	Input string // the trimmed text the user sent
	Value int    // parsed value, only meaningful for OutOfRange
}

func (e *ValidationError) Error() string {
	r := e.Field.Range()
	if e.Kind == OutOfRange {
		return fmt.Sprintf("%s value %s outside %d..%d", e.Field, e.Input, r.Min, r.Max)
	}
	return fmt.Sprintf("%s value %q is not a number", e.Field, e.Input)
}

// Is lets errors.Is match the sentinel for the error's kind.
func (e *ValidationError) Is(target error) bool {
	switch e.Kind {
	case NotANumber:
		return target == ErrNotANumber
	case OutOfRange:
		return target == ErrOutOfRange
	}
	return false
}

// Validate parses raw as a base-10 integer and checks it against the
// field's range. Surrounding whitespace is ignored.
func Validate(field Field, raw string) (int, error) {
	text := strings.TrimSpace(raw)

	v, err := strconv.Atoi(text)
	if err != nil {
		// Overflowing digit strings are still numbers, just absurd ones.
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, &ValidationError{Field: field, Kind: OutOfRange, Input: text}
		}
		return 0, &ValidationError{Field: field, Kind: NotANumber, Input: text}
	}

	if !field.Range().Contains(v) {
		return 0, &ValidationError{Field: field, Kind: OutOfRange, Input: text, Value: v}
	}
	return v, nil
}
