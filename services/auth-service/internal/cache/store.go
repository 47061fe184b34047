package cache

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

var (
	ErrAbsent = apperror.New(apperror.KindNotFound, "code_absent", "code is absent or expired")
	ErrCodec  = apperror.New(apperror.KindInternal, "code_codec", "malformed cache entry")
)

const getMaxTries = 3

// CodeStore keeps short-lived secrets keyed by purpose prefix and identifier.
type CodeStore interface {
	// Set stores v under key, overwriting any previous value and TTL.
	Set(ctx context.Context, key string, v Value, ttl time.Duration) error
	// Get returns ErrAbsent when the key is missing or expired.
	Get(ctx context.Context, key string) (Value, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	// Consume atomically reads and deletes key.
	Consume(ctx context.Context, key string) (Value, error)
}

// Options tunes a redis CodeStore.
type Options struct {
	Prefix    string
	OpTimeout time.Duration
	// RetryInterval is the first backoff interval for Get retries.
	RetryInterval time.Duration
}

type redisCodeStore struct {
	client        *redis.Client
	prefix        string
	timeout       time.Duration
	retryInterval time.Duration
}

// NewRedisCodeStore returns a CodeStore backed by client.
func NewRedisCodeStore(client *redis.Client, opts Options) CodeStore {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}

	return &redisCodeStore{
		client:        client,
		prefix:        opts.Prefix,
		timeout:       opts.OpTimeout,
		retryInterval: opts.RetryInterval,
	}
}

func (s *redisCodeStore) key(k string) string {
	return s.prefix + k
}

func (s *redisCodeStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *redisCodeStore) Set(ctx context.Context, key string, v Value, ttl time.Duration) error {
	data, err := encodeValue(v)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.key(key), data, ttl).Err(); err != nil {
		return apperror.Dependency("code store set", err)
	}

	return nil
}

func (s *redisCodeStore) Get(ctx context.Context, key string) (Value, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		opCtx, cancel := s.withTimeout(ctx)
		defer cancel()

		data, err := s.client.Get(opCtx, s.key(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, backoff.Permanent(ErrAbsent)
		}
		return data, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(getMaxTries))
	if err != nil {
		if errors.Is(err, ErrAbsent) {
			return Value{}, ErrAbsent
		}
		return Value{}, apperror.Dependency("code store get", err)
	}

	return decodeValue(data)
}

func (s *redisCodeStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return apperror.Dependency("code store delete", err)
	}

	return nil
}

func (s *redisCodeStore) Consume(ctx context.Context, key string) (Value, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Value{}, ErrAbsent
	}
	if err != nil {
		return Value{}, apperror.Dependency("code store consume", err)
	}

	return decodeValue(data)
}
