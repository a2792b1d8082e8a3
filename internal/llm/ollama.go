package llm

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// OllamaProvider talks to a local or remote Ollama server
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type ollamaTags struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name string `json:"name"`
}

// NewOllamaProvider creates an Ollama provider; the model is required
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: newHTTPClient(config),
		config:     config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// CheckAvailable lists the server's models and fails unless the configured
// one has been pulled
func (p *OllamaProvider) CheckAvailable(ctx context.Context) error {
	var tags ollamaTags
	if err := doJSON(ctx, p.httpClient, http.MethodGet, p.baseURL+"/api/tags", nil, nil, &tags, ollamaErrorText); err != nil {
		return fmt.Errorf("connect to %s: %w", p.baseURL, err)
	}

	want := withDefaultTag(p.config.Model)
	if !slices.ContainsFunc(tags.Models, func(m ollamaModel) bool {
		return withDefaultTag(m.Name) == want
	}) {
		return fmt.Errorf("model %s not pulled on %s (run: ollama pull %s)", p.config.Model, p.baseURL, p.config.Model)
	}
	return nil
}

// withDefaultTag spells out the implicit ":latest" tag
func withDefaultTag(name string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}

// Complete generates a completion with /api/generate
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := ollamaRequest{
		Model:  cmp.Or(req.Model, p.config.Model),
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  cmp.Or(req.MaxTokens, p.config.MaxTokens),
		},
	}
	if req.JSONMode {
		apiReq.Format = "json"
	}

	var resp ollamaResponse
	if err := doJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/api/generate", nil, apiReq, &resp, ollamaErrorText); err != nil {
		return nil, fmt.Errorf("ollama API error: %w", err)
	}
	if !resp.Done {
		return nil, errors.New("ollama returned an incomplete response")
	}

	return &CompletionResponse{
		Content:    strings.TrimSpace(resp.Response),
		Model:      resp.Model,
		TokensUsed: resp.PromptEvalCount + resp.EvalCount,
	}, nil
}

// ollamaErrorText renders {"error": "..."} bodies
func ollamaErrorText(body []byte) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Error
}
