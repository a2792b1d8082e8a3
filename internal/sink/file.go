package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

// FileSink collects a run's alerts and writes them as one JSON array at
// Close. A target that is a directory (existing, or ending in a path
// separator) receives a timestamped file per run.
type FileSink struct {
	path string

	mu     sync.Mutex
	alerts []model.ComplianceAlert
}

// NewFileSink creates a file sink for target
func NewFileSink(target string, now func() time.Time) (*FileSink, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("%w: file sink requires a target path", model.ErrValidation)
	}

	path := target
	info, err := os.Stat(target)
	if (err == nil && info.IsDir()) || strings.HasSuffix(target, string(os.PathSeparator)) {
		path = filepath.Join(target, fmt.Sprintf("legislative_alerts_%s.json", now().UTC().Format("20060102_150405")))
	}

	return &FileSink{path: path, alerts: []model.ComplianceAlert{}}, nil
}

// Path returns the file the alerts are written to
func (s *FileSink) Path() string { return s.path }

// Emit buffers the alert
func (s *FileSink) Emit(ctx context.Context, alert model.ComplianceAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

// Close writes the collected alerts, replacing the file atomically
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.alerts, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal alerts: %w", model.ErrSink, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create directory: %w", model.ErrSink, err)
	}

	tmp, err := os.CreateTemp(dir, ".alerts-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", model.ErrSink, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write alerts: %w", model.ErrSink, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write alerts: %w", model.ErrSink, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write alerts: %w", model.ErrSink, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("%w: write alerts: %w", model.ErrSink, err)
	}
	return nil
}
