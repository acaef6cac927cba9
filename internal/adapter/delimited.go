package adapter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"medcodex/internal/models"
)

// ErrNoHeader is returned when a header-configured source has no rows at all.
var ErrNoHeader = errors.New("missing header row")

// delimitedReader splits rows on a declared separator, taking column names
// from the first row when Header is set, else from spec.Columns (falling
// back to positional names).
type delimitedReader struct {
	csv       *csv.Reader
	columns   []string
	delimiter rune
	line      int
}

func newDelimitedReader(r io.Reader, spec FormatSpec) (*delimitedReader, error) {
	delim := spec.Delimiter
	if delim == 0 {
		delim = ','
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = false

	dr := &delimitedReader{
		csv:       cr,
		columns:   spec.Columns,
		delimiter: delim,
	}

	if spec.Header {
		header, err := cr.Read()
		if err == io.EOF {
			return nil, ErrNoHeader
		}

		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}

		dr.line++
		dr.columns = make([]string, len(header))

		for i, col := range header {
			dr.columns[i] = strings.TrimSpace(col)
		}
	}

	return dr, nil
}

func (dr *delimitedReader) Read() (*models.RawRecord, error) {
	fields, err := dr.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}

	dr.line++

	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// Quoting damage is confined to one row; report it and move on.
			return nil, fmt.Errorf("%w: line %d: %v", ErrRowShape, dr.line, parseErr.Err)
		}

		return nil, err
	}

	columns := dr.columns
	if columns == nil {
		columns = positionalColumns(len(fields))
	}

	if len(fields) < len(columns) {
		return nil, fmt.Errorf("%w: line %d has %d fields, want %d",
			ErrRowShape, dr.line, len(fields), len(columns))
	}

	rec := models.NewRawRecord(dr.line, strings.Join(fields, string(dr.delimiter)))

	// Extra trailing fields beyond the declared columns are dropped.
	for i, col := range columns {
		rec.Set(col, fields[i])
	}

	return rec, nil
}

func positionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("col%d", i)
	}

	return cols
}
