package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/ppiankov/legiswatch/internal/util"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw model output
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CheckAvailable verifies the endpoint is reachable and the credentials work
	CheckAvailable(ctx context.Context) error
}

// CompletionRequest is a single-turn completion
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the configured model when set
	Model string

	MaxTokens   int
	Temperature float32

	// JSONMode asks the provider to constrain output to a JSON object,
	// where the provider supports it
	JSONMode bool
}

// CompletionResponse contains the raw model output
type CompletionResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for OpenAI-compatible local endpoints or a remote Ollama
	BaseURL string

	// Timeout is the response budget per request, in seconds
	Timeout int

	MaxTokens   int
	Temperature float32

	// MaxTextChars bounds the bill text embedded in the prompt
	MaxTextChars int

	JSONMode bool

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		Timeout:      60,
		MaxTokens:    800,
		Temperature:  0.2,
		MaxTextChars: DefaultMaxTextChars,
		JSONMode:     true,
	}
}

// timeout returns the configured response budget
func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// newHTTPClient builds the client shared by the hand-rolled providers. The
// response budget is enforced by the Summarizer's context; the client
// timeout is a backstop for callers that skip it.
func newHTTPClient(config Config) *http.Client {
	return &http.Client{
		Timeout: config.timeout() + 5*time.Second,
		Transport: &http.Transport{
			Proxy:               util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
