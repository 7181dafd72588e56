// Package genai talks to the external generative-AI service.
//
// The rest of the application sees a single operation, Generator.Generate:
// text in, text plus token counts out. Two wire formats sit behind it:
//
//   - Gemini generateContent (API key in the x-goog-api-key header)
//   - OpenAI-compatible chat completions (bearer token via golang.org/x/oauth2)
//
// Parsing the model's reply into a structured analysis lives in parse.go and
// is independent of the provider.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sakif/promptcraft/internal/config"
)

// Generator sends text to a generative model and returns its reply.
type Generator interface {
	Generate(ctx context.Context, text string) (*Response, error)
}

// Response is a provider-independent reply. Token counts are nil when the
// provider did not report them.
type Response struct {
	Text            string
	PromptTokens    *int
	CandidateTokens *int
}

// New builds the Generator selected by cfg.Provider.
//
// An empty API key means generation is not configured: New returns
// (nil, nil) and the caller answers generate requests with 503.
func New(cfg config.GenAIConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultModel(cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderGemini, "":
		return NewGemini(cfg.APIKey, model, cfg.BaseURL, nil), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("genai: unknown provider %q", cfg.Provider)
	}
}

// ProviderError is returned when the provider answers with a non-200 status.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("genai: HTTP %d: %s", e.StatusCode, e.Message)
}

// doRequest marshals wireRequest as JSON, POSTs it to endpoint and returns
// the response. Non-200 responses are turned into a *ProviderError.
//
// On success the caller closes the body. On error the body is already closed.
func doRequest(ctx context.Context, client *http.Client, endpoint string, header http.Header, wireRequest any) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("genai: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("genai: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readProviderError(resp)
	}

	return resp, nil
}

// decodeResponse reads a JSON body into T and closes it.
func decodeResponse[T any](resp *http.Response) (*T, error) {
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("genai: decoding response: %w", err)
	}
	return &out, nil
}

// readProviderError extracts a message from an error body. Both Gemini and
// OpenAI use {"error":{"message":"..."}}; anything else is reported verbatim.
func readProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireError struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{StatusCode: resp.StatusCode, Message: wireError.Error.Message}
	}

	return &ProviderError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
}
