package adapter

import (
	"bufio"
	"io"

	"medcodex/internal/models"
)

// maxLineBytes bounds a single source line. NPPES rows run long but stay
// well under this.
const maxLineBytes = 1 << 20

// fixedWidthReader splits each line into declared (start, length) byte
// ranges. A line shorter than a field's range yields a record with that
// field missing or truncated, never an error: registries pad trailing
// blanks inconsistently across releases.
type fixedWidthReader struct {
	scanner *bufio.Scanner
	fields  []Field
	line    int
}

func newFixedWidthReader(r io.Reader, spec FormatSpec) *fixedWidthReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	return &fixedWidthReader{
		scanner: sc,
		fields:  spec.Fields,
	}
}

func (fw *fixedWidthReader) Read() (*models.RawRecord, error) {
	for fw.scanner.Scan() {
		fw.line++

		raw := fw.scanner.Text()
		if raw == "" {
			continue
		}

		rec := models.NewRawRecord(fw.line, raw)

		for _, f := range fw.fields {
			if f.Start >= len(raw) {
				continue
			}

			end := f.Start + f.Length
			if end > len(raw) {
				end = len(raw)
			}

			rec.Set(f.Name, raw[f.Start:end])
		}

		return rec, nil
	}

	if err := fw.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, io.EOF
}
