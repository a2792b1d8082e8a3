package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ppiankov/legiswatch/internal/model"
)

// ConsoleSink prints one JSON object per line
type ConsoleSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewConsoleSink writes alerts to w
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{enc: json.NewEncoder(w)}
}

// Emit writes the alert as a JSON line
func (s *ConsoleSink) Emit(ctx context.Context, alert model.ComplianceAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(alert); err != nil {
		return fmt.Errorf("%w: console: %w", model.ErrSink, err)
	}
	return nil
}

// Close is a no-op
func (s *ConsoleSink) Close() error { return nil }
