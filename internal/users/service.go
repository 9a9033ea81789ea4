package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"

	"github.com/aiox-platform/o1bot/internal/secrets"
	"github.com/aiox-platform/o1bot/internal/storage"
)

// Service owns every UserConfig. Each mutation is written through to the
// store; a failed write leaves the in-memory state unchanged.
type Service struct {
	mu      sync.Mutex
	store   storage.Store[Record]
	sealer  *secrets.Sealer
	records map[string]Record
}

// NewService creates a user store. sealer may be nil, in which case prompts
// are stored in plaintext.
func NewService(store storage.Store[Record], sealer *secrets.Sealer) *Service {
	return &Service{store: store, sealer: sealer, records: map[string]Record{}}
}

// Load replaces the in-memory state with the durable document. A corrupt
// document is treated as empty.
func (s *Service) Load(ctx context.Context) error {
	doc, err := s.store.Load(ctx)
	if errors.Is(err, storage.ErrCorrupt) {
		slog.Warn("user store is corrupt, starting empty", "error", err)
		doc = map[string]Record{}
	} else if err != nil {
		return fmt.Errorf("loading users: %w", err)
	}
	if doc == nil {
		doc = map[string]Record{}
	}

	for userID, rec := range doc {
		mode, err := ParseMode(string(rec.Mode))
		if err != nil {
			slog.Warn("unknown stored mode, using economy", "user_id", userID, "mode", rec.Mode)
			mode = ModeEconomy
		}
		rec.Mode = mode
		doc[userID] = rec
	}

	s.mu.Lock()
	s.records = doc
	s.mu.Unlock()

	slog.Info("user store loaded", "users", len(doc))
	return nil
}

// Get returns the user's config, or the defaults if none is stored.
func (s *Service) Get(userID string) (UserConfig, error) {
	s.mu.Lock()
	rec, ok := s.records[userID]
	s.mu.Unlock()

	cfg := UserConfig{UserID: userID, Mode: ModeEconomy}
	if !ok {
		return cfg, nil
	}
	cfg.Mode = rec.Mode

	prompt, err := s.reveal(userID, rec)
	if err != nil {
		return UserConfig{}, err
	}
	cfg.Prompt = prompt
	return cfg, nil
}

// SetPrompt stores text as the user's prompt, keeping their mode.
func (s *Service) SetPrompt(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyPrompt
	}

	stored, sealed := text, false
	if s.sealer != nil {
		var err error
		if stored, err = s.sealer.Seal(userID, text); err != nil {
			return fmt.Errorf("sealing prompt: %w", err)
		}
		sealed = true
	}

	return s.update(ctx, userID, func(rec Record) (Record, bool) {
		rec.Prompt, rec.Sealed = stored, sealed
		return rec, true
	})
}

// ClearPrompt removes the user's prompt. It reports whether one existed.
func (s *Service) ClearPrompt(ctx context.Context, userID string) (bool, error) {
	existed := false
	err := s.update(ctx, userID, func(rec Record) (Record, bool) {
		if rec.Prompt == "" {
			return rec, false
		}
		existed = true
		rec.Prompt, rec.Sealed = "", false
		return rec, true
	})
	return existed, err
}

// SetMode parses raw and stores it. An unknown mode returns ErrInvalidMode
// and changes nothing.
func (s *Service) SetMode(ctx context.Context, userID, raw string) (Mode, error) {
	mode, err := ParseMode(raw)
	if err != nil {
		return "", err
	}
	err = s.update(ctx, userID, func(rec Record) (Record, bool) {
		rec.Mode = mode
		return rec, true
	})
	return mode, err
}

// Persist writes the current state to the store.
func (s *Service) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, maps.Clone(s.records)); err != nil {
		return fmt.Errorf("saving users: %w", err)
	}
	return nil
}

func (s *Service) update(ctx context.Context, userID string, fn func(Record) (Record, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[userID]
	cur := prev
	if !existed {
		cur = Record{Mode: ModeEconomy}
	}

	next, changed := fn(cur)
	if !changed {
		return nil
	}

	s.records[userID] = next
	if err := s.store.Save(ctx, maps.Clone(s.records)); err != nil {
		if existed {
			s.records[userID] = prev
		} else {
			delete(s.records, userID)
		}
		return fmt.Errorf("saving users: %w", err)
	}
	return nil
}

func (s *Service) reveal(userID string, rec Record) (string, error) {
	if !rec.Sealed {
		return rec.Prompt, nil
	}
	if s.sealer == nil {
		return "", fmt.Errorf("prompt for %s is sealed and no encryption key is configured", userID)
	}
	prompt, err := s.sealer.Open(userID, rec.Prompt)
	if err != nil {
		return "", fmt.Errorf("opening prompt for %s: %w", userID, err)
	}
	return prompt, nil
}
