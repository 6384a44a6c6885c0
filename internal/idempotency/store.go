package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store is a short-lived marker keystore used to deduplicate external
// events and domain event emission. Markers are best-effort: they guard
// against retry storms and duplicate delivery, they are not a substitute
// for the transactional guarantees on orders and stock.
type Store interface {
	// Claim atomically sets the marker if absent and reports whether this
	// caller won the claim. A false return means the key was already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Seen reports whether the marker currently exists.
	Seen(ctx context.Context, key string) (bool, error)
}

// redisStore implements Store on Redis with SETNX semantics.
type redisStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed marker store.
func NewRedisStore(addr, prefix string, logger zerolog.Logger) Store {
	return &redisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		logger: logger.With().Str("component", "idempotency").Logger(),
	}
}

func (s *redisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Claim atomically sets the marker if absent.
func (s *redisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), "1", ttl).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to claim idempotency marker")
		return false, fmt.Errorf("failed to claim idempotency marker: %w", err)
	}
	return ok, nil
}

// Seen reports whether the marker currently exists.
func (s *redisStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to read idempotency marker")
		return false, fmt.Errorf("failed to read idempotency marker: %w", err)
	}
	return n > 0, nil
}

// memoryStore is an in-process Store for tests and single-node development.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryStore creates an in-memory marker store with TTL semantics.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]time.Time)}
}

func (s *memoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

func (s *memoryStore) Seen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}
