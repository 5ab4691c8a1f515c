package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// DefaultURL lists the model names the chat program can run, one per line.
const DefaultURL = "https://raw.githubusercontent.com/MBCX/gpt4all-ts-plus/main/models.txt"

// Known is the built-in list of supported model names.
var Known = []string{
	"ggml-gpt4all-l13b-snoozy",
	"ggml-gpt4all-j-v1.3-groovy",
	"ggml-gpt4all-j-v1.2-jazzy",
	"ggml-gpt4all-j-v1.1-breezy",
	"ggml-gpt4all-j",
	"ggml-vicuna-7b-1.1-q4_2",
	"ggml-vicuna-13b-1.1-q4_2",
	"ggml-stable-vicuna-13B.q4_2",
	"ggml-wizardLM-7B.q4_2",
	"ggml-mpt-7b-base",
	"ggml-mpt-7b-instruct",
	"ggml-mpt-7b-chat",
}

// IsKnown reports whether name is in Known.
func IsKnown(name string) bool {
	return slices.Contains(Known, name)
}

// StatusError is returned when the catalog responds with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Client fetches the remote model catalog.
type Client struct {
	URL  string
	HTTP *http.Client
	Log  *slog.Logger
}

// NewClient returns a client for DefaultURL.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		URL:  DefaultURL,
		HTTP: &http.Client{Timeout: 30 * time.Second},
		Log:  log.With("component", "catalog"),
	}
}

// List downloads the catalog and returns the model names in file order.
func (c *Client) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s: %w", c.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: c.URL, StatusCode: resp.StatusCode}
	}

	names, err := parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("catalog: read body: %w", err)
	}

	if c.Log != nil {
		c.Log.Debug("Fetched model catalog", "url", c.URL, "models", len(names))
	}

	return names, nil
}

// parse reads one name per line, skipping blanks.
func parse(r io.Reader) ([]string, error) {
	var names []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}

	return names, scanner.Err()
}
