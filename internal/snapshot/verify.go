package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// Verification errors.
var (
	ErrNoChecksum       = errors.New("no checksum to verify against")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Checksum computes the SHA-256 of a snapshot file on disk.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Verify checks that the snapshot at path still matches the checksum
// recorded when it was written.
func Verify(path, want string) error {
	if want == "" {
		return ErrNoChecksum
	}

	got, err := Checksum(path)
	if err != nil {
		return err
	}

	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, want, got)
	}

	return nil
}
