package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps a document as the rows of one namespace in the
// documents table.
type PostgresStore[T any] struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewPostgresStore[T any](pool *pgxpool.Pool, namespace string) *PostgresStore[T] {
	return &PostgresStore[T]{pool: pool, namespace: namespace}
}

func (s *PostgresStore[T]) Load(ctx context.Context) (map[string]T, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM documents WHERE namespace = $1`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.namespace, err)
	}
	defer rows.Close()

	doc := map[string]T{}
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s.namespace, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			slog.Warn("skipping malformed document entry", "namespace", s.namespace, "key", key, "error", err)
			continue
		}
		doc[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", s.namespace, err)
	}
	return doc, nil
}

func (s *PostgresStore[T]) Save(ctx context.Context, doc map[string]T) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM documents WHERE namespace = $1`, s.namespace)
	for key, v := range doc {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s[%s]: %w", s.namespace, key, err)
		}
		batch.Queue(
			`INSERT INTO documents (namespace, key, value, updated_at) VALUES ($1, $2, $3, now())`,
			s.namespace, key, string(data),
		)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("replacing %s: %w", s.namespace, err)
	}
	return nil
}
