package normalizer

import "medcodex/internal/models"

// Deduplicator collapses records sharing a code. The last occurrence in
// input order wins: later lines in most registry releases are corrections,
// so "latest revision supersedes". Records keep the position of their first
// appearance, which makes re-runs byte-reproducible.
//
// The lookup index is owned by one pipeline invocation and never shared, so
// concurrent per-source runs cannot interfere.
type Deduplicator struct {
	index     map[string]int
	records   []models.CanonicalRecord
	collapsed int
}

// NewDeduplicator creates an empty deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{index: make(map[string]int)}
}

// Add takes ownership of one accepted record. It returns true when the code
// was already present and the earlier record was superseded.
func (d *Deduplicator) Add(rec models.CanonicalRecord) bool {
	if i, seen := d.index[rec.Code]; seen {
		d.records[i] = rec
		d.collapsed++

		return true
	}

	d.index[rec.Code] = len(d.records)
	d.records = append(d.records, rec)

	return false
}

// Records returns the deduplicated records in first-appearance order.
func (d *Deduplicator) Records() []models.CanonicalRecord {
	return d.records
}

// Collapsed returns how many duplicate rows were superseded.
func (d *Deduplicator) Collapsed() int {
	return d.collapsed
}
