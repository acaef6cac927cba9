package pipeline

import (
	"errors"
	"io"

	"medcodex/internal/adapter"
	"medcodex/internal/models"
	"medcodex/internal/normalizer"
)

// runStats accumulates per-stage counters and rejected rows for one run.
// Counts are always exact; the retained reject rows are capped unless the
// full set is needed for the reject file.
type runStats struct {
	rowsRead     int
	rowsFiltered int
	rowsValid    int
	rowsRejected int
	rejects      []models.RowError
	keepAll      bool
	sampleSize   int
}

func (s *runStats) addReject(line int, reason error, raw string) {
	s.rowsRejected++

	if !s.keepAll && len(s.rejects) >= s.sampleSize {
		return
	}

	s.rejects = append(s.rejects, models.RowError{
		Line:   line,
		Reason: reason.Error(),
		Raw:    raw,
	})
}

// rawStage pulls raw records from the adapter, counting rows and recording
// malformed ones as rejections instead of propagating them.
type rawStage struct {
	reader adapter.Reader
	stats  *runStats
	line   int
}

func (s *rawStage) next() (*models.RawRecord, error) {
	for {
		rec, err := s.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}

		if err != nil {
			if errors.Is(err, adapter.ErrRowShape) {
				s.line++
				s.stats.rowsRead++
				s.stats.addReject(s.line, err, "")

				continue
			}

			// Anything else means the source itself went bad mid-read.
			return nil, err
		}

		s.line = rec.Line
		s.stats.rowsRead++

		return rec, nil
	}
}

// normalizeStage applies source filters and field normalization, skipping
// rows that fail and recording them as rejections.
type normalizeStage struct {
	raw   *rawStage
	rule  *normalizer.Rule
	stats *runStats
}

func (s *normalizeStage) next() (models.CanonicalRecord, error) {
	for {
		raw, err := s.raw.next()
		if err != nil {
			return models.CanonicalRecord{}, err
		}

		if !s.rule.Matches(raw) {
			s.stats.rowsFiltered++

			continue
		}

		rec, err := normalizer.Normalize(raw, s.rule)
		if err != nil {
			s.stats.addReject(raw.Line, err, raw.Raw)

			continue
		}

		return rec, nil
	}
}

// validateStage accepts or rejects normalized records.
type validateStage struct {
	in        *normalizeStage
	validator *normalizer.Validator
	stats     *runStats
}

func (s *validateStage) next() (models.CanonicalRecord, error) {
	for {
		rec, err := s.in.next()
		if err != nil {
			return models.CanonicalRecord{}, err
		}

		if err := s.validator.Validate(rec); err != nil {
			s.stats.addReject(s.in.raw.line, err, rec.Code+","+rec.Description)

			continue
		}

		s.stats.rowsValid++

		return rec, nil
	}
}
