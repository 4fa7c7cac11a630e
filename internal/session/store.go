// Package session implements the browser session store: opaque UUID session
// IDs mapped to Redis entries with a TTL. The handlers that consume it treat
// every failure as "not logged in" — the store never fails open.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/surelog/surelog/internal/domain"
	"github.com/surelog/surelog/internal/reliability/circuitbreaker"
)

// ErrUnavailable is returned when Redis is unreachable or the circuit
// breaker is open. Callers treat it the same as a missing session.
var ErrUnavailable = errors.New("session store unavailable")

const keyPrefix = "session:"

// Session is the server-side state behind a browser cookie
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store manages sessions in Redis
type Store struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	logger  *slog.Logger
}

// NewStore connects to Redis and verifies connectivity
func NewStore(url string, ttl time.Duration, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	breaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("session store circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Store{
		rdb:     rdb,
		breaker: breaker,
		ttl:     ttl,
		logger:  logger,
	}, nil
}

// Create stores a new session and returns it with a fresh UUID
func (s *Store) Create(ctx context.Context, userID int64, email string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.do(ctx, func(ctx context.Context) error {
		return s.rdb.Set(ctx, keyPrefix+sess.ID, payload, s.ttl).Err()
	}); err != nil {
		return nil, err
	}

	return sess, nil
}

// Get retrieves a live session; expired or unknown IDs return ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var payload string
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		payload, err = s.rdb.Get(ctx, keyPrefix+id).Result()
		if errors.Is(err, redis.Nil) {
			// a miss is not a store failure
			payload = ""
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if payload == "" {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}

	sess := &Session{}
	if err := json.Unmarshal([]byte(payload), sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return sess, nil
}

// Delete removes a session
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.do(ctx, func(ctx context.Context) error {
		return s.rdb.Del(ctx, keyPrefix+id).Err()
	})
}

// Count returns the number of live sessions
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.do(ctx, func(ctx context.Context) error {
		keys, err := s.rdb.Keys(ctx, keyPrefix+"*").Result()
		if err != nil {
			return err
		}
		n = len(keys)
		return nil
	})
	return n, err
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.rdb.Close()
}

// do runs a Redis operation behind the circuit breaker. When the breaker is
// open the call fails fast with ErrUnavailable instead of waiting on a dead
// backend.
func (s *Store) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.breaker.AllowRequest() {
		return ErrUnavailable
	}
	if err := fn(ctx); err != nil {
		s.breaker.RecordFailure()
		s.logger.Error("session store operation failed", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.breaker.RecordSuccess()
	return nil
}
