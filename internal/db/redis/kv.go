package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/metalquote/internal/db"
)

// Get retrieves a value by key. Missing keys return db.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrBy atomically increments a key by the given amount.
func (s *Store) IncrBy(ctx context.Context, key string, val int64) error {
	if err := s.do(ctx, s.incrBy(key, val)).Error(); err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return nil
}

// Expire sets TTL on a key. When nx=true, sets TTL only if the key has no expiry yet (EXPIRE NX).
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if err := s.do(ctx, s.expire(key, ttl, nx)).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}

// IncrByExpireNX pipelines INCRBY and EXPIRE NX in one round-trip.
func (s *Store) IncrByExpireNX(ctx context.Context, key string, val int64, ttl time.Duration) error {
	results := s.client.DoMulti(ctx, s.incrBy(key, val), s.expire(key, ttl, true))
	if err := results[0].Error(); err != nil {
		return &db.Error{Op: db.OpIncrBy, Err: err}
	}
	if err := results[1].Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}

func (s *Store) incrBy(key string, val int64) rueidis.Completed {
	return s.b().Incrby().Key(key).Increment(val).Build()
}

func (s *Store) expire(key string, ttl time.Duration, nx bool) rueidis.Completed {
	seconds := int64(ttl.Seconds())
	if nx {
		return s.b().Expire().Key(key).Seconds(seconds).Nx().Build()
	}
	return s.b().Expire().Key(key).Seconds(seconds).Build()
}
