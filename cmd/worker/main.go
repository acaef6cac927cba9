// Package main provides the unified worker command that fetches, normalizes,
// and snapshots every enabled codex source.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"medcodex/internal/config"
	"medcodex/internal/fetch"
	"medcodex/internal/logger"
	"medcodex/internal/models"
	"medcodex/internal/pipeline"
	"medcodex/internal/report"
	"medcodex/internal/snapshot"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to worker configuration")
	only := flag.String("source", "", "Run only the source with this ID")
	offline := flag.Bool("offline", false, "Skip downloads, use local files only")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Worker.Logging.Level)

	sources := cfg.GetEnabledSources()
	if *only != "" {
		var picked []config.SourceConfig

		for _, src := range sources {
			if src.ID == *only {
				picked = append(picked, src)
			}
		}

		if len(picked) == 0 {
			log.Error("no enabled source with that ID", "source", *only)
			os.Exit(1)
		}

		sources = picked
	}

	log.Info("🚀 starting codex worker",
		"sources", len(sources),
		"parallel", cfg.Advanced.MaxParallelSources,
	)

	startTime := time.Now()

	var fetcher *fetch.Fetcher
	if cfg.Features.EnableFetch && !*offline {
		fetcher = fetch.NewFetcher(&cfg.Worker.Retry, log)
	}

	reports := make([]*models.RunReport, len(sources))
	errs := make([]error, len(sources))

	// Each source writes to its own output path, so pipelines run with no
	// coordination beyond the worker pool bound.
	sem := make(chan struct{}, cfg.Advanced.MaxParallelSources)

	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)

		go func(i int, src config.SourceConfig) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			reports[i], errs[i] = runSource(cfg, src, fetcher, log)
		}(i, src)
	}

	wg.Wait()

	var done []*models.RunReport

	failed := 0

	for i, src := range sources {
		if errs[i] != nil {
			failed++

			log.Error("❌ source failed", "source", src.ID, "error", errs[i])

			continue
		}

		done = append(done, reports[i])
	}

	if len(done) > 0 {
		fmt.Println("\n📊 Run Summary")
		fmt.Print(report.Table(done))
	}

	log.Info("✨ worker finished",
		"succeeded", len(done),
		"failed", failed,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)

	if failed > 0 {
		os.Exit(1)
	}
}

func runSource(cfg *config.Config, src config.SourceConfig, fetcher *fetch.Fetcher, log *logger.Logger) (*models.RunReport, error) {
	inputPath := src.File

	if fetcher != nil {
		resolved, err := fetcher.EnsureFile(src, cfg.Worker.InputDir)
		if err != nil {
			return nil, err
		}

		inputPath = resolved
	}

	if inputPath == "" {
		return nil, fmt.Errorf("source %s has no local file and fetching is disabled", src.ID)
	}

	p, err := pipeline.New(cfg, src, log)
	if err != nil {
		return nil, err
	}

	rep, err := p.RunFile(inputPath)
	if err != nil {
		return nil, err
	}

	// Read the snapshot back to confirm it landed intact.
	if err := snapshot.Verify(rep.OutputPath, rep.Checksum); err != nil {
		return nil, err
	}

	return rep, nil
}
