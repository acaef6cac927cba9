// Package pipeline sequences extraction, normalization, validation,
// deduplication, and writing for one codex source.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"medcodex/internal/adapter"
	"medcodex/internal/codex"
	"medcodex/internal/config"
	"medcodex/internal/logger"
	"medcodex/internal/models"
	"medcodex/internal/normalizer"
	"medcodex/internal/snapshot"
)

// Fatal pipeline errors.
var (
	// ErrSourceUnavailable means the raw input could not be opened or read.
	// The run aborts; row-level problems never produce this.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrOutputUnwritable means the snapshot could not be written. The
	// previous snapshot, if any, is left intact.
	ErrOutputUnwritable = errors.New("output path unwritable")
)

// Pipeline runs one source through the full normalization sequence. A
// Pipeline owns no cross-run state: every Run starts from Idle and is
// idempotent given identical input and a pinned clock.
type Pipeline struct {
	source    config.SourceConfig
	spec      adapter.FormatSpec
	rule      *normalizer.Rule
	validator *normalizer.Validator

	outputPath string
	rejectPath string
	saveFailed bool
	sampleSize int

	log   *logger.Logger
	now   func() time.Time
	state State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNow pins the run clock; used for reproducible snapshots in tests.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New builds a pipeline for one source from the worker configuration.
func New(cfg *config.Config, source config.SourceConfig, log *logger.Logger, opts ...Option) (*Pipeline, error) {
	profile, err := codex.Get(source.Codex)
	if err != nil {
		return nil, err
	}

	spec, err := source.FormatSpec()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source: source,
		spec:   spec,
		rule: &normalizer.Rule{
			Profile:     profile,
			CodeColumns: source.CodeColumns,
			DescColumns: source.DescriptionColumns,
			Filters:     source.Filters,
		},
		validator:  normalizer.NewValidator(profile, source.MaxCodeLength, cfg.Features.EnableCodePatterns),
		outputPath: cfg.GetOutputPath(source.ID),
		rejectPath: cfg.GetRejectPath(source.ID),
		saveFailed: cfg.Advanced.SaveFailedRows,
		sampleSize: cfg.Advanced.RejectSampleSize,
		log:        log.WithSource(source.ID),
		now:        time.Now,
		state:      StateIdle,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// RunFile opens a resolved local input file and runs the pipeline over it.
// An unreadable path is a fatal ErrSourceUnavailable.
func (p *Pipeline) RunFile(path string) (*models.RunReport, error) {
	f, err := os.Open(path)
	if err != nil {
		report := p.newReport()
		ferr := fmt.Errorf("%w: %v", ErrSourceUnavailable, err)

		return p.fail(report, ferr)
	}
	defer f.Close()

	return p.Run(f)
}

// Run executes the pipeline over an already-resolved input stream. Stages
// are brought online in order; rows then stream through the whole chain one
// at a time as the deduplicator drains it, so peak memory is one in-flight
// record plus the dedup table of distinct codes.
func (p *Pipeline) Run(input io.Reader) (*models.RunReport, error) {
	start := time.Now()
	p.state = StateIdle
	report := p.newReport()

	stats := &runStats{
		keepAll:    p.saveFailed,
		sampleSize: p.sampleSize,
	}

	if err := p.transition(StateExtracting); err != nil {
		return p.fail(report, err)
	}

	p.log.Debug("opening source", "format", p.source.Format)

	reader, err := adapter.New(input, p.spec)
	if err != nil {
		return p.fail(report, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}

	if err := p.transition(StateNormalizing); err != nil {
		return p.fail(report, err)
	}

	normalized := &normalizeStage{
		raw:   &rawStage{reader: reader, stats: stats},
		rule:  p.rule,
		stats: stats,
	}

	if err := p.transition(StateValidating); err != nil {
		return p.fail(report, err)
	}

	validated := &validateStage{
		in:        normalized,
		validator: p.validator,
		stats:     stats,
	}

	if err := p.transition(StateDeduplicating); err != nil {
		return p.fail(report, err)
	}

	dedup := normalizer.NewDeduplicator()

	for {
		rec, err := validated.next()
		if err == io.EOF {
			break
		}

		if err != nil {
			p.fillStats(report, stats, 0, time.Since(start))

			return p.fail(report, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
		}

		dedup.Add(rec)
	}

	if err := p.transition(StateWriting); err != nil {
		return p.fail(report, err)
	}

	records := dedup.Records()

	p.log.Debug("writing snapshot",
		"records", len(records),
		"path", p.outputPath,
	)

	checksum, err := snapshot.Write(records, report.RunTimestamp, p.outputPath)
	if err != nil {
		p.fillStats(report, stats, dedup.Collapsed(), time.Since(start))

		return p.fail(report, fmt.Errorf("%w: %v", ErrOutputUnwritable, err))
	}

	report.Checksum = checksum

	if p.saveFailed && len(stats.rejects) > 0 {
		if err := snapshot.WriteRejects(stats.rejects, p.rejectPath); err != nil {
			// Reject files are diagnostics; losing one does not fail the run.
			p.log.Warn("failed to save rejected rows", "error", err)
		} else {
			report.RejectPath = p.rejectPath
		}
	}

	if err := p.transition(StateCompleted); err != nil {
		return p.fail(report, err)
	}

	p.fillStats(report, stats, dedup.Collapsed(), time.Since(start))

	for _, rej := range report.Rejects {
		p.log.Debug("rejected row", "line", rej.Line, "reason", rej.Reason)
	}

	p.log.Info("run completed",
		"rows_read", report.RowsRead,
		"rows_valid", report.RowsValid,
		"rows_rejected", report.RowsRejected,
		"rows_deduplicated", report.RowsDeduplicated,
		"rows_written", report.RowsWritten(),
		"duration", report.Duration,
	)

	return report, nil
}

func (p *Pipeline) newReport() *models.RunReport {
	return &models.RunReport{
		RunID:        uuid.NewString(),
		SourceID:     p.source.ID,
		OutputPath:   p.outputPath,
		RunTimestamp: p.now(),
	}
}

func (p *Pipeline) fillStats(report *models.RunReport, stats *runStats, collapsed int, elapsed time.Duration) {
	report.RowsRead = stats.rowsRead
	report.RowsFiltered = stats.rowsFiltered
	report.RowsValid = stats.rowsValid
	report.RowsRejected = stats.rowsRejected
	report.RowsDeduplicated = collapsed
	report.Rejects = stats.rejects
	report.Duration = elapsed
}

func (p *Pipeline) fail(report *models.RunReport, cause error) (*models.RunReport, error) {
	from := p.state

	if err := p.transition(StateFailed); err != nil {
		return report, errors.Join(cause, err)
	}

	p.log.Error("run failed", "state", from.String(), "error", cause)

	return report, cause
}
