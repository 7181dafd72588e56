package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-pro"
)

// Gemini implements Generator for the Gemini generateContent REST API.
type Gemini struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

// NewGemini creates a Gemini generator. Empty model and baseURL select the
// defaults; a nil client means http.DefaultClient.
func NewGemini(apiKey, model, baseURL string, client *http.Client) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Gemini{
		client:  client,
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     *int `json:"promptTokenCount"`
		CandidatesTokenCount *int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends text as a single user turn.
func (g *Gemini) Generate(ctx context.Context, text string) (*Response, error) {
	wireRequest := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: text}}}},
	}

	resp, err := doRequest(ctx, g.client, g.endpoint(), http.Header{
		"X-Goog-Api-Key": {g.apiKey},
	}, wireRequest)
	if err != nil {
		return nil, err
	}

	wire, err := decodeResponse[geminiResponse](resp)
	if err != nil {
		return nil, err
	}

	if len(wire.Candidates) == 0 {
		if wire.PromptFeedback != nil && wire.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("genai: prompt blocked: %s", wire.PromptFeedback.BlockReason)
		}
		return nil, errors.New("genai: response has no candidates")
	}

	var sb strings.Builder
	for _, part := range wire.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	out := &Response{Text: sb.String()}
	if wire.UsageMetadata != nil {
		out.PromptTokens = wire.UsageMetadata.PromptTokenCount
		out.CandidateTokens = wire.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
}
