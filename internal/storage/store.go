// Package storage persists small keyed JSON documents (user configs, usage
// counters) as whole-document snapshots.
package storage

import (
	"context"
	"errors"
)

// ErrCorrupt is returned by Load when the stored document cannot be decoded.
// Callers treat it as an empty document.
var ErrCorrupt = errors.New("corrupt document")

// Store loads and replaces one document of T values keyed by user id.
// Save replaces the whole document; it never merges.
type Store[T any] interface {
	Load(ctx context.Context) (map[string]T, error)
	Save(ctx context.Context, doc map[string]T) error
}
