// Package models defines the record types that flow through the normalization pipeline.
package models

import "strings"

// RawRecord is one source row exactly as parsed by an adapter: an ordered
// mapping from source-defined field name to string value. It lives only for
// the duration of one pipeline pass.
type RawRecord struct {
	Line    int
	Raw     string
	columns []string
	values  map[string]string
}

// NewRawRecord creates an empty raw record for the given source line.
func NewRawRecord(line int, raw string) *RawRecord {
	return &RawRecord{
		Line:   line,
		Raw:    raw,
		values: make(map[string]string),
	}
}

// Set stores a field value, preserving insertion order for Columns.
func (r *RawRecord) Set(column, value string) {
	if _, exists := r.values[column]; !exists {
		r.columns = append(r.columns, column)
	}

	r.values[column] = value
}

// Get returns the value for an exact column name.
func (r *RawRecord) Get(column string) (string, bool) {
	v, ok := r.values[column]

	return v, ok
}

// Lookup returns the value of the first candidate column that exists,
// matching column names case-insensitively. Registries rename their columns
// between releases ("HCPCS" vs "Code"), so selection rules are candidate
// lists rather than single names.
func (r *RawRecord) Lookup(candidates ...string) (string, bool) {
	for _, cand := range candidates {
		for _, col := range r.columns {
			if strings.EqualFold(col, cand) {
				return r.values[col], true
			}
		}
	}

	return "", false
}

// Columns returns the field names in parse order.
func (r *RawRecord) Columns() []string {
	return r.columns
}

// Len returns the number of parsed fields.
func (r *RawRecord) Len() int {
	return len(r.columns)
}

// CanonicalRecord is one row of the canonical three-column schema. The
// last_updated column is stamped by the snapshot writer so that every row in
// a snapshot carries the same run timestamp.
type CanonicalRecord struct {
	Code        string
	Description string
}

// RowError describes one rejected source row.
type RowError struct {
	Line   int
	Reason string
	Raw    string
}
