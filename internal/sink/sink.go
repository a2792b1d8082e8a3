// Package sink delivers compliance alerts to their consumer.
package sink

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

// Sink receives the alerts of a run, one at a time, in emission order
type Sink interface {
	// Emit delivers one alert. Errors wrap model.ErrSink.
	Emit(ctx context.Context, alert model.ComplianceAlert) error

	// Close flushes buffered alerts and releases connections
	Close() error
}

// Options carries the dependencies sinks share with the rest of the run
type Options struct {
	Stdout     io.Writer    // console sink output, defaults to os.Stdout
	HTTPClient *http.Client // webhook client
	Now        func() time.Time
}

// New creates the sink selected by cfg
func New(cfg model.SinkConfig, opts Options) (Sink, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	switch strings.ToLower(cfg.Type) {
	case "", "console":
		return NewConsoleSink(opts.Stdout), nil
	case "webhook":
		return NewWebhookSink(cfg.Target, opts.HTTPClient)
	case "queue":
		return NewQueueSink(cfg.Target)
	case "file":
		return NewFileSink(cfg.Target, opts.Now)
	default:
		return nil, fmt.Errorf("%w: unknown sink %q", model.ErrValidation, cfg.Type)
	}
}
