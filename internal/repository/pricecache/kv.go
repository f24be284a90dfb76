package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/db"
	"github.com/kailas-cloud/metalquote/internal/domain"
)

// store is the consumer interface for the KV-backed cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type envelope struct {
	Value     []byte    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// KV keeps cache entries in Valkey/Redis so they survive restarts.
// Store failures degrade to a miss and never fail the caller.
type KV struct {
	store  store
	prefix string
	logger *zap.Logger
}

// NewKV creates a KV-backed cache. Keys are stored under {keyPrefix}cache:.
func NewKV(s store, keyPrefix string, logger *zap.Logger) *KV {
	return &KV{
		store:  s,
		prefix: keyPrefix + "cache:",
		logger: logger,
	}
}

// Get returns the entry for key. Read and decode errors are logged and reported as absent.
func (c *KV) Get(ctx context.Context, key domain.RequestKey) (domain.CacheEntry, bool) {
	storeKey := c.storeKey(key)
	data, err := c.store.Get(ctx, storeKey)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached payload", zap.String("key", storeKey), zap.Error(err))
		}
		return domain.CacheEntry{}, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("Failed to parse cached payload", zap.String("key", storeKey), zap.Error(err))
		return domain.CacheEntry{}, false
	}
	return domain.CacheEntry{Key: key, Value: env.Value, FetchedAt: env.FetchedAt}, true
}

// Put stores value as fetched at now. Write errors are logged.
func (c *KV) Put(ctx context.Context, key domain.RequestKey, value []byte, now time.Time) {
	storeKey := c.storeKey(key)
	data, err := json.Marshal(envelope{Value: value, FetchedAt: now.UTC()})
	if err != nil {
		c.logger.Warn("Failed to encode cached payload", zap.String("key", storeKey), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, storeKey, data); err != nil {
		c.logger.Warn("Failed to cache payload", zap.String("key", storeKey), zap.Error(err))
	}
}

func (c *KV) storeKey(key domain.RequestKey) string {
	return c.prefix + key.String()
}
