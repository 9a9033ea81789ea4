package completion

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator guesses how many tokens a prompt will consume before the call.
type Estimator interface {
	Estimate(model, prompt string) int64
}

// HeuristicEstimator assumes about four characters per token.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(_, prompt string) int64 {
	return int64(utf8.RuneCountInString(prompt)/4 + 1)
}

// TokenEstimator counts prompt tokens with the model's BPE encoding, falling
// back to cl100k_base for unknown models and to the heuristic when no
// encoding can be loaded.
type TokenEstimator struct {
	mu    sync.Mutex
	cache map[string]*tiktoken.Tiktoken
	load  func(model string) (*tiktoken.Tiktoken, error)
}

func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{
		cache: make(map[string]*tiktoken.Tiktoken),
		load:  loadEncoding,
	}
}

func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding("cl100k_base")
}

func (e *TokenEstimator) Estimate(model, prompt string) int64 {
	enc := e.encoding(model)
	if enc == nil {
		return HeuristicEstimator{}.Estimate(model, prompt)
	}
	return int64(len(enc.Encode(prompt, nil, nil)))
}

func (e *TokenEstimator) encoding(model string) *tiktoken.Tiktoken {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.cache[model]; ok {
		return enc
	}
	enc, err := e.load(model)
	if err != nil {
		slog.Warn("token encoding unavailable, using length heuristic", "model", model, "error", err)
		enc = nil
	}
	// Failed loads are cached as nil.
	e.cache[model] = enc
	return enc
}
