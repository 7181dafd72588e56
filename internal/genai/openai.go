package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI implements Generator for any OpenAI-compatible chat completions
// endpoint (OpenAI, OpenRouter, vLLM, Ollama, ...).
type OpenAI struct {
	client  *http.Client
	model   string
	baseURL string
}

// NewOpenAI creates an OpenAI-compatible generator.
//
// The API key travels as "Authorization: Bearer <key>". oauth2.NewClient with
// a StaticTokenSource adds that header to every request, so the key never
// has to be threaded through the request code.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"})
	return &OpenAI{
		client:  oauth2.NewClient(context.Background(), src),
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     *int `json:"prompt_tokens"`
		CompletionTokens *int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends text as a single user message.
func (o *OpenAI) Generate(ctx context.Context, text string) (*Response, error) {
	wireRequest := openaiRequest{
		Model:    o.model,
		Messages: []openaiMessage{{Role: "user", Content: text}},
	}

	resp, err := doRequest(ctx, o.client, o.baseURL+"/chat/completions", nil, wireRequest)
	if err != nil {
		return nil, err
	}

	wire, err := decodeResponse[openaiResponse](resp)
	if err != nil {
		return nil, err
	}
	if len(wire.Choices) == 0 {
		return nil, errors.New("genai: response has no choices")
	}

	out := &Response{Text: wire.Choices[0].Message.Content}
	if wire.Usage != nil {
		out.PromptTokens = wire.Usage.PromptTokens
		out.CandidateTokens = wire.Usage.CompletionTokens
	}
	return out, nil
}
