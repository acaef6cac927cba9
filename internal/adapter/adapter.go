// Package adapter provides the source adapters that parse one raw registry
// format family into a stream of raw records.
package adapter

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"medcodex/internal/models"
)

// Adapter errors.
var (
	// ErrRowShape marks a malformed individual row. Callers record it as a
	// rejection and keep reading; it never aborts the stream.
	ErrRowShape = errors.New("row shape mismatch")

	// ErrUnknownFormat is returned for a format kind outside the closed set.
	ErrUnknownFormat = errors.New("unknown format kind")

	// ErrUnknownEncoding is returned for an unsupported source encoding.
	ErrUnknownEncoding = errors.New("unknown source encoding")
)

// Kind identifies one raw format family. The set is closed: each kind has
// its own adapter, selected by New.
type Kind string

// Supported format kinds.
const (
	KindFixedWidth Kind = "fixed-width"
	KindDelimited  Kind = "delimited"
	// KindArchiveMember is a delimited file handed over as an extracted
	// archive member; extraction itself happens upstream in fetch.
	KindArchiveMember Kind = "archive-member"
)

// Field declares one fixed-width column as a (start, length) byte range.
type Field struct {
	Name   string
	Start  int
	Length int
}

// FormatSpec describes how to parse one source's raw format.
type FormatSpec struct {
	Kind      Kind
	Fields    []Field  // fixed-width byte ranges
	Delimiter rune     // delimited separator; ',' when zero
	Header    bool     // delimited: first row is the header
	Columns   []string // delimited without header: positional column names
	Encoding  string   // "", "utf-8", or "latin-1"
}

// Reader yields raw records one at a time. Read returns io.EOF at the end of
// input. An error wrapping ErrRowShape affects only the offending row; any
// other error means the source itself is unreadable.
type Reader interface {
	Read() (*models.RawRecord, error)
}

// New returns the adapter for the spec's format kind, reading from r.
// Re-invoking New on a fresh handle restarts the stream from the top.
func New(r io.Reader, spec FormatSpec) (Reader, error) {
	decoded, err := decode(r, spec.Encoding)
	if err != nil {
		return nil, err
	}

	switch spec.Kind {
	case KindFixedWidth:
		return newFixedWidthReader(decoded, spec), nil
	case KindDelimited, KindArchiveMember:
		return newDelimitedReader(decoded, spec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, spec.Kind)
	}
}

// decode wraps r with a charset decoder when the source is not UTF-8.
func decode(r io.Reader, encoding string) (io.Reader, error) {
	switch encoding {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin-1", "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
	}
}
