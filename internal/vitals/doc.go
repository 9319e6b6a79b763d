// Package vitals parses and range-checks the values a user types while
// recording a blood pressure measurement.
//
// Each captured field has an inclusive range:
//
//	systolic   30..250
//	diastolic  30..180
//	pulse      30..250
//
// Validate never keeps state between calls. Failures are returned as
// *ValidationError values that match ErrNotANumber or ErrOutOfRange via
// errors.Is, so callers branch on the result instead of recovering panics.
package vitals
