// Package dataset loads tabular input data and turns it into render tasks.
//
// The batch engine consumes one task per output document. This package owns
// the path from raw CSV rows to that task list: header validation,
// print-field deduplication, and filename-stem sanitization.
package dataset

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/certifyhq/certgen/pkg/errors"
)

// Record is one row of the dataset: a mapping from column name to text
// value. Column order lives on the owning [Dataset]. A Record is immutable
// once handed to a task.
type Record map[string]string

// Dataset is a parsed tabular input: ordered columns plus one Record per
// row, in file order.
type Dataset struct {
	Columns []string
	Records []Record
}

// ReadCSV parses CSV data with a header row. Rows shorter than the header
// are padded with empty values, matching how spreadsheet exports trail off.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeEmptyDataset, "csv file is empty")
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	ds := &Dataset{Columns: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading csv row %d", len(ds.Records)+2)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		ds.Records = append(ds.Records, rec)
	}
	if len(ds.Records) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyDataset, "csv file has a header but no rows")
	}
	return ds, nil
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RequireColumns verifies every named field exists in the dataset, so a
// typo'd box binding fails before any rendering starts.
func (d *Dataset) RequireColumns(fields []string) error {
	for _, f := range fields {
		if !d.HasColumn(f) {
			return errors.New(errors.ErrCodeMissingColumn,
				"column %q not found in csv (available: %s)", f, strings.Join(d.Columns, ", "))
		}
	}
	return nil
}
