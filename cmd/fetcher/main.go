// Package main provides the fetcher command: download and extract the raw
// releases for every enabled remote source, without processing them.
package main

import (
	"flag"
	"fmt"
	"os"

	"medcodex/internal/config"
	"medcodex/internal/fetch"
	"medcodex/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to worker configuration")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Worker.Logging.Level)
	fetcher := fetch.NewFetcher(&cfg.Worker.Retry, log)

	failed := 0

	for _, src := range cfg.GetEnabledSources() {
		if src.URL == "" {
			log.Info("skipping local-only source", "source", src.ID)

			continue
		}

		path, err := fetcher.EnsureFile(src, cfg.Worker.InputDir)
		if err != nil {
			failed++

			log.Error("❌ fetch failed", "source", src.ID, "error", err)

			continue
		}

		log.Info("✅ ready", "source", src.ID, "path", path)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
