// Package idempotency persists Idempotency-Key reservations and the responses
// they produced, so retried escrow actions replay instead of moving money twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const (
	redisKeyPrefix = "idempotency"
	pollInterval   = 50 * time.Millisecond

	servedByRedis    = "redis"
	servedByPostgres = "postgres"
)

// Record is a finished response stored under a scoped key.
type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	ServedBy    string
}

// Store keeps reservations in Postgres, which decides who runs a request.
// Redis, when configured, only caches finished responses for fast replay.
type Store struct {
	redis   redis.Cmdable
	queries *repository.Queries
	ttl     time.Duration
	now     func() time.Time
}

func NewStore(redis redis.Cmdable, db repository.DBTX, ttl time.Duration) *Store {
	return &Store{redis: redis, queries: repository.New(db), ttl: ttl, now: time.Now}
}

// ScopedKey namespaces a client key by caller so two users sending the same
// key never see each other's responses.
func ScopedKey(subject, key string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return subject + ":" + strings.TrimSpace(key)
}

// Lookup returns the stored response for key. It fails with ErrHashMismatch
// when the key was used for a different request and ErrInProgress while the
// first request is still running.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok := s.cached(ctx, key); ok {
		if rec.RequestHash != requestHash {
			return nil, ErrHashMismatch
		}
		return rec, nil
	}

	row, err := s.queries.GetIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if row.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}

	rec := recordFromRow(row)
	s.cache(ctx, *rec)
	return rec, nil
}

// Reserve claims key for the caller. It reports false when another request
// already holds it.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	_, err := s.queries.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
}

func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.queries.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	rec := recordFromRow(row)
	s.cache(ctx, *rec)
	return rec, nil
}

// Release drops an unfinished reservation so the client can retry with the
// same key after a server-side failure.
func (s *Store) Release(ctx context.Context, key, requestHash string) error {
	if err := s.queries.ReleaseIdempotencyKey(ctx, repository.ReleaseIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
	}); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, redisKey(key)).Err(); err != nil {
			zap.L().Warn("redis idempotency cache delete failed", zap.Error(err))
		}
	}
	return nil
}

// WaitForCompletion polls until the request holding key finishes or ctx ends.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if !errors.Is(err, ErrInProgress) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Purge deletes finished keys older than the store TTL. Cached copies expire
// on their own.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	n, err := s.queries.PurgeIdempotencyKeys(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return n, nil
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func (s *Store) cached(ctx context.Context, key string) (*Record, bool) {
	if s.redis == nil {
		return nil, false
	}
	val, err := s.redis.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(val, &env); err != nil {
		return nil, false
	}
	return &Record{
		Key:         env.Key,
		RequestHash: env.Hash,
		Status:      env.Status,
		Body:        env.Body,
		ContentType: env.ContentType,
		ServedBy:    servedByRedis,
	}, true
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	})
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func recordFromRow(row repository.IdempotencyKey) *Record {
	return &Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    servedByPostgres,
	}
}

func redisKey(key string) string {
	return redisKeyPrefix + ":" + key
}
