package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a document as one hash; each field holds a JSON value.
type RedisStore[T any] struct {
	client redis.Cmdable
	key    string
}

func NewRedisStore[T any](client redis.Cmdable, key string) *RedisStore[T] {
	return &RedisStore[T]{client: client, key: key}
}

func (s *RedisStore[T]) Load(ctx context.Context) (map[string]T, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.key, err)
	}

	doc := make(map[string]T, len(fields))
	for field, raw := range fields {
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			slog.Warn("skipping malformed document entry", "key", s.key, "field", field, "error", err)
			continue
		}
		doc[field] = v
	}
	return doc, nil
}

func (s *RedisStore[T]) Save(ctx context.Context, doc map[string]T) error {
	values := make([]any, 0, len(doc)*2)
	for field, v := range doc {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s[%s]: %w", s.key, field, err)
		}
		values = append(values, field, string(data))
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", s.key, err)
	}
	return nil
}
