package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/o1bot/internal/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1/",
		Timeout: 5 * time.Second,
	})
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1726142400,
			"model": "o1-mini-2024-09-12",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  Paris.  \n"}, "finish_reason": "stop"}],
			"usage": {
				"prompt_tokens": 12,
				"completion_tokens": 150,
				"total_tokens": 162,
				"completion_tokens_details": {"reasoning_tokens": 128}
			}
		}`))
	})

	res, err := p.Complete(context.Background(), Request{
		Model:           "o1-mini",
		Prompt:          "You are terse.\nCapital of France?",
		MaxOutputTokens: 2000,
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris.", res.Text)
	assert.Equal(t, "o1-mini-2024-09-12", res.Model)
	assert.Equal(t, 12, res.Usage.PromptTokens)
	assert.Equal(t, 150, res.Usage.CompletionTokens)
	assert.Equal(t, 162, res.Usage.TotalTokens)
	require.NotNil(t, res.Usage.ReasoningTokens)
	assert.Equal(t, 128, res.Usage.Reasoning())

	assert.Equal(t, "o1-mini", got["model"])
	assert.EqualValues(t, 2000, got["max_completion_tokens"])
	messages := got["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "You are terse.\nCapital of France?", msg["content"])
}

func TestOpenAIProvider_NoReasoningDetails(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "o1-preview",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "ok"}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}
		}`))
	})

	res, err := p.Complete(context.Background(), Request{Model: "o1-preview", Prompt: "p", MaxOutputTokens: 5000})
	require.NoError(t, err)
	assert.Nil(t, res.Usage.ReasoningTokens)
	assert.Equal(t, 0, res.Usage.Reasoning())
}

func TestOpenAIProvider_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`))
	})

	_, err := p.Complete(context.Background(), Request{Model: "o1-mini", Prompt: "p", MaxOutputTokens: 10})
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.StatusCode)
	assert.Equal(t, "o1-mini", perr.Model)
	assert.Contains(t, perr.Error(), "HTTP 429")
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model": "o1-mini", "choices": [], "usage": {"total_tokens": 0}}`))
	})

	_, err := p.Complete(context.Background(), Request{Model: "o1-mini", Prompt: "p", MaxOutputTokens: 10})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	p := NewOpenAIProvider(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := p.Complete(context.Background(), Request{Model: "o1-mini", Prompt: "p", MaxOutputTokens: 10})
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
