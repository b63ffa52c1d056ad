// Package extractor invokes the out-of-process HTML extractor that turns a
// book id into per-page HTML files.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"time"
)

// DefaultTimeout bounds one extractor run.
const DefaultTimeout = time.Hour

// File is one extracted page HTML file.
type File struct {
	Name    string
	Content []byte
}

// Client runs the extractor script.
type Client struct {
	Script  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates an extractor client for the given script path.
func New(script string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Script:  script,
		Timeout: timeout,
		Logger:  logger.With("component", "extractor"),
	}
}

// stdoutPayload is the single JSON document the extractor writes on success.
type stdoutPayload struct {
	Files map[string]string `json:"files"`
}

// ExportToMemory runs the extractor for one book and returns its page files
// sorted by filename.
func (c *Client) ExportToMemory(ctx context.Context, bookID int64) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", c.Script, "--stdout", strconv.FormatInt(bookID, 10))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	c.Logger.Info("extractor started", "book_id", bookID, "script", c.Script)

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extractor failed for book %d: %w (stderr: %s)",
			bookID, err, tail(stderr.String(), 512))
	}

	var payload stdoutPayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil {
		return nil, fmt.Errorf("extractor returned invalid JSON for book %d: %w", bookID, err)
	}
	if len(payload.Files) == 0 {
		return nil, fmt.Errorf("extractor returned no files for book %d", bookID)
	}

	files := make([]File, 0, len(payload.Files))
	for name, content := range payload.Files {
		files = append(files, File{Name: name, Content: []byte(content)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	c.Logger.Info("extractor finished", "book_id", bookID,
		"files", len(files), "elapsed", time.Since(started).Round(time.Millisecond))
	return files, nil
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
