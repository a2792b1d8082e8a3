package model

import "errors"

// Fetch-stage errors abort the run.
var (
	ErrAuth      = errors.New("authentication failed")
	ErrFetch     = errors.New("fetch failed")
	ErrRateLimit = errors.New("rate limited")
)

// Per-bill errors are recorded in the run report and the bill is skipped.
var (
	ErrSummarization = errors.New("summarization failed")
	ErrModelTimeout  = errors.New("model timed out")
	ErrValidation    = errors.New("validation failed")
	ErrSink          = errors.New("sink emit failed")
)

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrFetch) || errors.Is(err, ErrRateLimit)
}

// Reason returns a short, stable label for a per-bill error, used to
// aggregate failures in the run report and in metrics
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelTimeout):
		return "model_timeout"
	case errors.Is(err, ErrSummarization):
		return "summarization"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSink):
		return "sink"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrFetch):
		return "fetch"
	}
	return "other"
}
