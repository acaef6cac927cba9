// Package fetch retrieves raw registry releases over HTTP, with retry,
// zip member extraction, and local-file fallback. The pipeline core never
// imports this package; only the commands do.
package fetch

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"medcodex/internal/config"
	"medcodex/internal/logger"
)

// Fetch errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrEmptyDownload        = errors.New("downloaded file is empty")
	ErrNoArchiveMembers     = errors.New("archive contains no files")
	ErrInputNotFound        = errors.New("input not found")
)

const userAgent = "medcodex-fetcher/1.0"

// textualExtensions are archive members worth considering as the dataset.
var textualExtensions = []string{".csv", ".txt", ".tsv"}

// Fetcher downloads raw source files with config-driven retry logic.
type Fetcher struct {
	client *http.Client
	retry  *config.RetryPolicy
	log    *logger.Logger
}

// NewFetcher creates a fetcher with the given retry policy.
func NewFetcher(retry *config.RetryPolicy, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: retry.GetTimeout()},
		retry:  retry,
		log:    log,
	}
}

// EnsureFile makes sure the source's raw release exists locally and returns
// its path. Remote sources are downloaded first (zip releases have their
// main member extracted); when the download fails, an existing local file is
// used as fallback.
func (f *Fetcher) EnsureFile(src config.SourceConfig, inputDir string) (string, error) {
	var downloadErr error

	if src.URL != "" {
		local, err := f.Download(src, inputDir)
		if err == nil {
			return local, nil
		}

		downloadErr = err

		f.log.Warn("download failed, checking local fallback",
			"source", src.ID,
			"error", err,
		)
	}

	if src.File != "" {
		if _, err := os.Stat(src.File); err == nil {
			return src.File, nil
		}
	}

	if downloadErr != nil {
		return "", fmt.Errorf("%w: %s: download failed: %v", ErrInputNotFound, src.ID, downloadErr)
	}

	return "", fmt.Errorf("%w: %s: %s", ErrInputNotFound, src.ID, src.File)
}

// Download retrieves the source's URL into inputDir and returns the local
// path, retrying per the policy on transient failures.
func (f *Fetcher) Download(src config.SourceConfig, inputDir string) (string, error) {
	body, err := f.get(src.URL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(inputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create input directory: %w", err)
	}

	if isZip(src.URL, body) {
		return f.extractMember(src, inputDir, body)
	}

	target := filepath.Join(inputDir, targetName(src))
	if err := os.WriteFile(target, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write download: %w", err)
	}

	f.log.Info("downloaded", "source", src.ID, "bytes", len(body), "path", target)

	return target, nil
}

func (f *Fetcher) get(rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if delay := f.retry.GetRetryDelay(attempt); delay > 0 {
				time.Sleep(delay)
			}
		}

		body, err := f.getOnce(rawURL)
		if err == nil {
			return body, nil
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, f.retry.MaxAttempts, err)

		if !retryable(err) {
			break
		}
	}

	return nil, lastErr
}

func (f *Fetcher) getOnce(rawURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(body) == 0 {
		return nil, ErrEmptyDownload
	}

	return body, nil
}

// retryable reports whether the failure is worth another attempt: network
// errors and temporary HTTP statuses are, 4xx responses are not.
func retryable(err error) bool {
	if !errors.Is(err, ErrUnexpectedStatusCode) {
		return true
	}

	msg := err.Error()
	for _, code := range []string{"408", "429", "500", "502", "503", "504"} {
		if strings.HasSuffix(msg, code) {
			return true
		}
	}

	return false
}

// extractMember picks the main dataset out of a zip release and writes it
// into inputDir. Selection: textual members, filtered by the source's
// prefer/exclude patterns, largest remaining member wins.
func (f *Fetcher) extractMember(src config.SourceConfig, inputDir string, body []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}

	member, err := selectMember(zr.File, src.Archive)
	if err != nil {
		return "", err
	}

	rc, err := member.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open archive member: %w", err)
	}
	defer rc.Close()

	target := filepath.Join(inputDir, filepath.Base(member.Name))

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create extracted file: %w", err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(target)

		return "", fmt.Errorf("failed to extract archive member: %w", err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close extracted file: %w", err)
	}

	f.log.Info("extracted archive member",
		"source", src.ID,
		"member", member.Name,
		"bytes", member.UncompressedSize64,
		"path", target,
	)

	return target, nil
}

func selectMember(files []*zip.File, archive config.ArchiveConfig) (*zip.File, error) {
	var members []*zip.File

	for _, zf := range files {
		if !zf.FileInfo().IsDir() {
			members = append(members, zf)
		}
	}

	if len(members) == 0 {
		return nil, ErrNoArchiveMembers
	}

	candidates := filterTextual(members)

	if archive.Prefer != "" {
		re := regexp.MustCompile(archive.Prefer)

		var preferred []*zip.File

		for _, zf := range candidates {
			if re.MatchString(zf.Name) {
				preferred = append(preferred, zf)
			}
		}

		if len(preferred) > 0 {
			candidates = preferred
		}
	}

	if archive.Exclude != "" {
		re := regexp.MustCompile(archive.Exclude)

		var kept []*zip.File

		for _, zf := range candidates {
			if !re.MatchString(zf.Name) {
				kept = append(kept, zf)
			}
		}

		candidates = kept
	}

	if len(candidates) == 0 {
		candidates = members
	}

	// Largest remaining candidate is the main dataset.
	chosen := candidates[0]
	for _, zf := range candidates[1:] {
		if zf.UncompressedSize64 > chosen.UncompressedSize64 {
			chosen = zf
		}
	}

	return chosen, nil
}

func filterTextual(members []*zip.File) []*zip.File {
	var textual []*zip.File

	for _, zf := range members {
		ext := strings.ToLower(path.Ext(zf.Name))
		for _, want := range textualExtensions {
			if ext == want {
				textual = append(textual, zf)

				break
			}
		}
	}

	return textual
}

func isZip(rawURL string, body []byte) bool {
	if strings.HasSuffix(strings.ToLower(rawURL), ".zip") {
		return true
	}

	return bytes.HasPrefix(body, []byte("PK\x03\x04"))
}

// targetName derives the local filename for a direct (non-zip) download.
func targetName(src config.SourceConfig) string {
	if src.File != "" {
		return filepath.Base(src.File)
	}

	if u, err := url.Parse(src.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}

	return src.ID + ".dat"
}
