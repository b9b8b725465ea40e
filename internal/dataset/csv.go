package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// FromCSV reads a dataset from CSV. The first record is the header; empty
// cells become nulls, all other cells stay strings (AsFloat coerces on
// demand during predicate evaluation).
func FromCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV input: no header record")
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	ds := New(header)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV record %d: %w", ds.NumRows()+1, err)
		}
		cells := make([]any, len(record))
		for i, cell := range record {
			if strings.TrimSpace(cell) == "" {
				cells[i] = nil
				continue
			}
			cells[i] = cell
		}
		if err := ds.AppendRow(cells); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// LoadCSV reads a dataset from a CSV file on disk.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data source: %w", err)
	}
	defer f.Close()
	return FromCSV(f)
}

// WriteCSV serializes the dataset back to CSV, nulls as empty cells. The
// rendering is deterministic, which makes it usable as a diff source.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	record := make([]string, len(d.columns))
	for i := range d.rows {
		for j := range d.columns {
			if IsNull(d.rows[i][j]) {
				record[j] = ""
			} else {
				record[j] = AsString(d.rows[i][j])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVString renders the dataset as a CSV string.
func (d *Dataset) CSVString() string {
	var sb strings.Builder
	// strings.Builder writes never fail.
	_ = d.WriteCSV(&sb)
	return sb.String()
}
