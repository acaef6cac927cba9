// Package main provides the one-shot normalizer: a single raw registry file
// in, one canonical CSV snapshot out.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"medcodex/internal/codex"
	"medcodex/internal/config"
	"medcodex/internal/logger"
	"medcodex/internal/pipeline"
	"medcodex/internal/report"
)

func main() {
	inputPath := flag.String("input", "", "Path to raw input file")
	outputDir := flag.String("output", "./output/csv", "Directory for the canonical snapshot")
	codexID := flag.String("codex", "", "Codex profile ID (e.g. icd10cm, hcpcs, npi)")
	format := flag.String("format", "delimited", "Input format: fixed-width, delimited, archive-member")
	delimiter := flag.String("delimiter", ",", "Delimiter for delimited input (',', 'tab', 'pipe')")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log := logger.NewLogger(*level)

	if *inputPath == "" || *codexID == "" {
		fmt.Println("Usage: normalizer -input <raw file> -codex <id> [-output <dir>]")
		fmt.Printf("Known codexes: %s\n", strings.Join(codex.IDs(), ", "))
		flag.PrintDefaults()
		os.Exit(1)
	}

	src := config.SourceConfig{
		ID:        *codexID,
		Codex:     *codexID,
		File:      *inputPath,
		Enabled:   true,
		Format:    *format,
		Delimiter: *delimiter,
		Header:    true,
	}

	cfg := &config.Config{
		Worker: config.WorkerConfig{
			Sources: []config.SourceConfig{src},
			Output:  config.OutputConfig{BasePath: *outputDir},
			Logging: config.LoggingConfig{Level: *level},
			Retry: config.RetryPolicy{
				MaxAttempts:       1,
				BackoffMultiplier: 1.0,
				TimeoutSec:        30,
			},
		},
		Features: config.FeaturesConfig{EnableCodePatterns: true},
		Advanced: config.AdvancedConfig{
			MaxParallelSources: 1,
			SaveFailedRows:     true,
			RejectSampleSize:   25,
		},
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid source settings", "error", err)
		os.Exit(1)
	}

	p, err := pipeline.New(cfg, src, log)
	if err != nil {
		log.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	fmt.Printf("📂 Reading: %s (codex %s)\n", *inputPath, *codexID)

	rep, err := p.RunFile(*inputPath)
	if err != nil {
		log.Error("❌ run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("✅ %s\n", report.Summary(rep))
	fmt.Printf("   Snapshot: %s (sha256 %s)\n", rep.OutputPath, rep.Checksum[:12])

	if rep.RejectPath != "" {
		fmt.Printf("⚠️  Rejected rows saved: %s\n", rep.RejectPath)
	}
}
