// ABOUTME: CSV codec for measurement exports
// ABOUTME: Writes and parses the SYS,DIA,PULS,DATE interchange format

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/2389/pulselog/internal/store"
)

// Header is the first row of every export.
var Header = []string{"SYS", "DIA", "PULS", "DATE"}

// Row is one exported measurement.
type Row struct {
	Systolic  int
	Diastolic int
	Pulse     int
	Timestamp string
}

// RowOf converts a stored measurement to its export row.
func RowOf(m store.Measurement) Row {
	return Row{Systolic: m.Systolic, Diastolic: m.Diastolic, Pulse: m.Pulse, Timestamp: m.Timestamp}
}

// WriteCSV writes the header and one row per measurement, in the given order.
func WriteCSV(w io.Writer, measurements []store.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, m := range measurements {
		record := []string{
			strconv.Itoa(m.Systolic),
			strconv.Itoa(m.Diastolic),
			strconv.Itoa(m.Pulse),
			m.Timestamp,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", m.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an export produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, h := range Header {
		if header[i] != h {
			return nil, fmt.Errorf("unexpected header column %d: got %q, want %q", i, header[i], h)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		var row Row
		ints := []*int{&row.Systolic, &row.Diastolic, &row.Pulse}
		for i, dst := range ints {
			v, err := strconv.Atoi(record[i])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, Header[i], err)
			}
			*dst = v
		}
		row.Timestamp = record[3]
		rows = append(rows, row)
	}

	return rows, nil
}
