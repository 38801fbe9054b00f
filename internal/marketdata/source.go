// Package marketdata fetches the published per-date flow files and the
// calendar JSON files from an HTTP base URL or a local directory.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/StockHamster/market-calendar/pkg/config"
)

// ErrNotFound is returned when a published file does not exist
var ErrNotFound = errors.New("file not found")

// maxFileSize bounds a single published JSON file
const maxFileSize = 16 << 20

// Source reads a published file by its slash-separated relative name
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// NewSource builds an HTTP or directory source from the data config
func NewSource(cfg *config.DataConfig, logger *logrus.Logger) Source {
	if isRemote(cfg.Source) {
		return NewHTTPSource(cfg.Source, cfg.FetchTimeout, logger)
	}
	return NewDirSource(cfg.Source)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// HTTPSource fetches files below a base URL
type HTTPSource struct {
	httpClient *http.Client
	baseURL    string
	logger     *logrus.Entry
}

// NewHTTPSource creates an HTTP source
func NewHTTPSource(baseURL string, timeout time.Duration, logger *logrus.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.WithField("component", "http-source"),
	}
}

// Fetch implements Source
func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	url := s.baseURL + "/" + strings.TrimLeft(name, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", name, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":  name,
		"bytes": len(data),
	}).Debug("Fetched file")

	return data, nil
}

// DirSource reads files below a local directory
type DirSource struct {
	root string
}

// NewDirSource creates a directory source
func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// Fetch implements Source
func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean("/" + name)
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
