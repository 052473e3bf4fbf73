package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 5

// RedisSessionStore keeps each session as one JSON value that expires after
// ttl of inactivity.
type RedisSessionStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
	now       func() time.Time
}

func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration, keyPrefix string) (*RedisSessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "pixelresize:session"
	}
	return &RedisSessionStore{
		client:    client,
		ttl:       ttl,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}, nil
}

func (s *RedisSessionStore) key(id string) string {
	return s.keyPrefix + ":" + id
}

func (s *RedisSessionStore) Create(ctx context.Context, session domain.Session) error {
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", session.ID, err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (domain.Session, bool, error) {
	return s.read(ctx, s.client, id)
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisSessionStore) read(ctx context.Context, c redisGetter, id string) (domain.Session, bool, error) {
	body, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load session %s: %w", id, err)
	}

	var session domain.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return domain.Session{}, false, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return session, true, nil
}

// Update runs fn inside WATCH/MULTI so concurrent edits to one session never
// interleave; a lost race is retried against the fresh value.
func (s *RedisSessionStore) Update(ctx context.Context, id string, fn UpdateFunc) (domain.Session, error) {
	key := s.key(id)

	var updated domain.Session
	txf := func(tx *redis.Tx) error {
		current, ok, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSessionNotFound
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.UpdatedAt = s.now().UTC()

		body, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, body, s.ttl)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.Session{}, err
	}
	return domain.Session{}, fmt.Errorf("update session %s: too much contention", id)
}
