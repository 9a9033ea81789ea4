package users

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMode = errors.New("invalid mode")
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Mode selects the model profile used for generation.
type Mode string

const (
	ModeEconomy  Mode = "economy"
	ModeStandard Mode = "standard"
)

// ParseMode accepts the canonical names and the short aliases users type
// ("mini" for economy, "o1" for standard).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "mini":
		return ModeEconomy, nil
	case "standard", "o1":
		return ModeStandard, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// UserConfig is the decrypted view of one user's settings.
type UserConfig struct {
	UserID string
	Prompt string
	Mode   Mode
}

func (c UserConfig) HasPrompt() bool {
	return c.Prompt != ""
}

// Record is the durable layout of one user. Prompt holds ciphertext when
// Sealed is set.
type Record struct {
	Prompt string `json:"prompt,omitempty"`
	Mode   Mode   `json:"mode"`
	Sealed bool   `json:"sealed,omitempty"`
}
