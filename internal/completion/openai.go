package completion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/aiox-platform/o1bot/internal/config"
)

// OpenAIProvider calls the chat completions endpoint with a single user message.
type OpenAIProvider struct {
	client  *openai.Client
	timeout time.Duration
}

func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: cfg.Timeout,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxCompletionTokens: req.MaxOutputTokens,
	})
	if err != nil {
		return nil, &ProviderError{Model: req.Model, StatusCode: statusCode(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Model: req.Model, StatusCode: 200, Err: ErrEmptyResponse}
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if d := resp.Usage.CompletionTokensDetails; d != nil {
		reasoning := d.ReasoningTokens
		usage.ReasoningTokens = &reasoning
	}

	slog.Debug("completion finished",
		"model", resp.Model,
		"total_tokens", usage.TotalTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Text:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Model: resp.Model,
		Usage: usage,
	}, nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
