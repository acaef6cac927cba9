// Package snapshot writes canonical CSV snapshots atomically.
package snapshot

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"medcodex/internal/models"
)

// Header is the fixed canonical column order.
var Header = []string{"code", "description", "last_updated"}

// Write emits the canonical CSV for one run. Every row carries the same
// run timestamp (RFC 3339 UTC, seconds precision) so the whole snapshot is
// as-of one instant. The file is written to a temp path in the destination
// directory and renamed over outputPath, so an interrupted write leaves any
// previous snapshot untouched. Returns the SHA-256 of the written bytes.
func Write(records []models.CanonicalRecord, runTimestamp time.Time, outputPath string) (string, error) {
	stamp := runTimestamp.UTC().Truncate(time.Second).Format(time.RFC3339)

	hash := sha256.New()

	err := writeAtomic(outputPath, func(w io.Writer) error {
		cw := csv.NewWriter(io.MultiWriter(w, hash))

		if err := cw.Write(Header); err != nil {
			return err
		}

		for _, rec := range records {
			if err := cw.Write([]string{rec.Code, rec.Description, stamp}); err != nil {
				return err
			}
		}

		cw.Flush()

		return cw.Error()
	})
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// WriteRejects saves rejected rows for inspection as line,reason,raw.
// Nothing is written when there are no rejects.
func WriteRejects(rejects []models.RowError, outputPath string) error {
	if len(rejects) == 0 {
		return nil
	}

	return writeAtomic(outputPath, func(w io.Writer) error {
		cw := csv.NewWriter(w)

		if err := cw.Write([]string{"line", "reason", "raw"}); err != nil {
			return err
		}

		for _, rej := range rejects {
			row := []string{strconv.Itoa(rej.Line), rej.Reason, rej.Raw}
			if err := cw.Write(row); err != nil {
				return err
			}
		}

		cw.Flush()

		return cw.Error()
	})
}

// writeAtomic runs fill against a temp file in outputPath's directory and
// renames it into place only on success.
func writeAtomic(outputPath string, fill func(io.Writer) error) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(outputPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}
