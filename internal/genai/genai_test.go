package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sakif/promptcraft/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =========================================================================
// GEMINI
// =========================================================================

func TestGemini_Generate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Leaves fall "}, {"text": "slowly down"}]}}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 34}
		}`))
	}))
	defer srv.Close()

	g := NewGemini("test-key", "", srv.URL, srv.Client())
	resp, err := g.Generate(context.Background(), "Write a haiku")
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-pro:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "Write a haiku", gotBody.Contents[0].Parts[0].Text)

	assert.Equal(t, "Leaves fall slowly down", resp.Text)
	require.NotNil(t, resp.PromptTokens)
	assert.Equal(t, 12, *resp.PromptTokens)
	assert.Equal(t, 34, *resp.CandidateTokens)
}

func TestGemini_NoUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "hi"}]}}]}`))
	}))
	defer srv.Close()

	resp, err := NewGemini("k", "m", srv.URL, srv.Client()).Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Nil(t, resp.PromptTokens)
	assert.Nil(t, resp.CandidateTokens)
}

func TestGemini_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini("bad", "", srv.URL, srv.Client()).Generate(context.Background(), "x")
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
	assert.Equal(t, "API key not valid", perr.Message)
}

func TestGemini_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := NewGemini("k", "", srv.URL, srv.Client()).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGemini_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewGemini("k", "", srv.URL, srv.Client()).Generate(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

// =========================================================================
// OPENAI-COMPATIBLE
// =========================================================================

func TestOpenAI_Generate(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody openaiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "{\"title\":\"T\"}"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7}
		}`))
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", "gpt-4o-mini", srv.URL+"/v1/")
	resp, err := o.Generate(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "hello", gotBody.Messages[0].Content)

	assert.Equal(t, `{"title":"T"}`, resp.Text)
	assert.Equal(t, 5, *resp.PromptTokens)
	assert.Equal(t, 7, *resp.CandidateTokens)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "m", srv.URL).Generate(context.Background(), "x")
	assert.Error(t, err)
}

func TestOpenAI_ProviderErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "m", srv.URL).Generate(context.Background(), "x")

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
	assert.Equal(t, "upstream exploded", perr.Message)
}

// =========================================================================
// New
// =========================================================================

func TestNew(t *testing.T) {
	g, err := New(config.GenAIConfig{Provider: config.ProviderGemini})
	require.NoError(t, err)
	assert.Nil(t, g, "no API key means not configured")

	g, err = New(config.GenAIConfig{Provider: config.ProviderGemini, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &Gemini{}, g)

	g, err = New(config.GenAIConfig{Provider: config.ProviderOpenAI, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, g)

	g, err = New(config.GenAIConfig{Provider: config.ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", g.(*OpenAI).model, "openai falls back to its own default model")

	_, err = New(config.GenAIConfig{Provider: "llama", APIKey: "k"})
	assert.Error(t, err)
}
