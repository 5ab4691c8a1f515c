package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/gptrepl/internal/chat"
	"github.com/ekisa-team/gptrepl/internal/xfs"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 30 * time.Minute

	// ReleaseBaseURL hosts the prebuilt chat program binaries.
	ReleaseBaseURL = "https://github.com/kuvaus/LlamaGPTJ-chat/releases/download/v0.1.8/"

	// ModelBaseURL hosts the model weights.
	ModelBaseURL = "https://gpt4all.io/models/"
)

// ExecutableURL returns the release asset URL of the chat program for goos.
func ExecutableURL(goos string) (string, error) {
	switch goos {
	case "windows":
		return ReleaseBaseURL + "chat-windows-latest-avx.exe", nil
	case "darwin":
		return ReleaseBaseURL + "chat-macos-latest-avx", nil
	case "linux":
		return ReleaseBaseURL + "chat-ubuntu-latest-avx", nil
	default:
		return "", fmt.Errorf("%w: %s", chat.ErrUnsupportedPlatform, goos)
	}
}

// ModelURL returns the download URL of a model by name.
func ModelURL(name string) string {
	return ModelBaseURL + name + ".bin"
}

// Asset is a file to place on disk.
type Asset struct {
	URL  string
	Dest string

	// Executable marks the file 0755 once placed.
	Executable bool
}

// StatusError is returned when the server responds with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Downloader places remote files on disk with retries and download markers.
type Downloader struct {
	HTTP       *http.Client
	Log        *slog.Logger
	MaxRetries int
	RetryDelay time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration
}

// NewDownloader returns a Downloader with the default retry policy.
func NewDownloader(log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}

	return &Downloader{
		HTTP:       &http.Client{},
		Log:        log.With("component", "downloader"),
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		Timeout:    defaultTimeout,
	}
}

// Ensure downloads the assets that are missing, all of them when force is set,
// concurrently. It returns the number of files downloaded.
func (d *Downloader) Ensure(ctx context.Context, assets []Asset, force bool) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	downloaded := make([]bool, len(assets))

	for i, a := range assets {
		if !force && !d.needsDownload(a) {
			d.Log.Info("File already present, skipping", "path", a.Dest)
			continue
		}

		g.Go(func() error {
			if err := d.Download(gctx, a); err != nil {
				return err
			}
			downloaded[i] = true
			return nil
		})
	}

	err := g.Wait()

	n := 0
	for _, ok := range downloaded {
		if ok {
			n++
		}
	}

	return n, err
}

// needsDownload reports whether dest is missing or was downloaded from another URL.
// A file without a marker was placed by hand and is kept.
func (d *Downloader) needsDownload(a Asset) bool {
	if !xfs.IsFile(a.Dest) {
		return true
	}

	content, err := os.ReadFile(markerPath(a.Dest))
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		d.Log.Debug("Marker file unreadable", "path", markerPath(a.Dest), "error", err)
		return true
	}

	if string(content) != markerContent(a.URL) {
		d.Log.Info("Source changed (marker mismatch), will redownload",
			"path", a.Dest,
			"expected_snippet", markerContent(a.URL),
			"actual_snippet", string(content))
		return true
	}

	return false
}

// Download fetches a.URL into a.Dest, retrying failed attempts.
func (d *Downloader) Download(ctx context.Context, a Asset) error {
	if err := xfs.EnsureDir(filepath.Dir(a.Dest)); err != nil {
		return err
	}

	retries := d.MaxRetries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := range retries {
		if attempt > 0 {
			d.Log.Info("Retrying download", "url", a.URL, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-time.After(d.RetryDelay):
			case <-ctx.Done():
				return fmt.Errorf("download canceled: %w", ctx.Err())
			}
		} else {
			d.Log.Info("Downloading file", "url", a.URL, "path", a.Dest)
		}

		n, err := d.attempt(ctx, a)
		if err == nil {
			if err := os.WriteFile(markerPath(a.Dest), []byte(markerContent(a.URL)), 0o644); err != nil {
				d.Log.Warn("Failed to write download marker", "path", markerPath(a.Dest), "error", err)
			}

			d.Log.Info("File downloaded successfully", "url", a.URL, "path", a.Dest, "bytes", n, "attempt", attempt+1)
			return nil
		}

		lastErr = err
		d.Log.Error("Failed to download file", "url", a.URL, "path", a.Dest, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return fmt.Errorf("download canceled: %w", ctx.Err())
		}
	}

	return lastErr
}

// attempt performs one download into a temp file and renames it into place.
func (d *Downloader) attempt(ctx context.Context, a Asset) (int64, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	httpClient := d.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: a.URL, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.Dest), "."+filepath.Base(a.Dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", a.Dest, err)
	}

	mode := os.FileMode(0o644)
	if a.Executable {
		mode = 0o755
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return n, fmt.Errorf("chmod %s: %w", a.Dest, err)
	}

	if err := os.Rename(tmp.Name(), a.Dest); err != nil {
		return n, fmt.Errorf("place %s: %w", a.Dest, err)
	}

	return n, nil
}

// markerPath returns the hidden marker file stored next to dest.
func markerPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".downloaded")
}

// markerContent is compared on later runs to detect a changed source.
func markerContent(url string) string {
	return fmt.Sprintf("url: %s\n", url)
}
