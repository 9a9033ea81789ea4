// Package completion talks to the language-model API.
package completion

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmptyResponse = errors.New("provider returned no choices")

// Request is one single-turn completion.
type Request struct {
	Model           string
	Prompt          string
	MaxOutputTokens int
}

// Usage holds the token counters reported by the provider. ReasoningTokens is
// nil when the provider does not report them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	ReasoningTokens  *int
	TotalTokens      int
}

// Reasoning returns the reasoning token count, 0 when unreported.
func (u Usage) Reasoning() int {
	if u.ReasoningTokens == nil {
		return 0
	}
	return *u.ReasoningTokens
}

type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Provider generates a completion. Failures are returned as *ProviderError.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Result, error)
}

// ProviderError describes a failed completion. StatusCode is 0 when the
// request never got an HTTP response.
type ProviderError struct {
	Model      string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion with %s failed (HTTP %d): %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion with %s failed: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
