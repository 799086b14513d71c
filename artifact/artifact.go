// Package artifact persists diagnostic captures for a checked date: the
// rendered HTML, a markdown rendition of it, and a full-page screenshot.
// Everything here is best-effort — a failed capture degrades diagnostics,
// never a check.
package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// Store writes artifacts under a root directory.
type Store struct {
	root   string
	conv   *converter.Converter
	logger *slog.Logger
}

// New creates a Store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root: dir,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Capture writes the HTML, its markdown rendition, and the screenshot for
// key (typically an ISO date, or "login" for auth failures). Nil slices are
// skipped. The first write error is returned, remaining files are still
// attempted.
func (s *Store) Capture(key string, html, png []byte) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(html) > 0 {
		record(s.write(fmt.Sprintf("page-%s.html", key), html))

		md, err := s.conv.ConvertString(string(html))
		if err != nil {
			// Markdown is a convenience rendition; the raw HTML is the
			// authoritative artifact.
			s.logger.Debug("artifact: markdown conversion failed", "key", key, "error", err)
		} else {
			record(s.write(fmt.Sprintf("page-%s.md", key), []byte(md)))
		}
	}

	if len(png) > 0 {
		record(s.write(fmt.Sprintf("screenshot-%s.png", key), png))
	}

	return firstErr
}

func (s *Store) write(name string, data []byte) error {
	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	s.logger.Debug("artifact: saved", "path", path, "bytes", len(data))
	return nil
}
