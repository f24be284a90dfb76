package fetcher

import (
	"context"
	"time"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/quota"
)

// Upstream performs the billed network call for a request key and returns
// the raw payload.
type Upstream interface {
	Fetch(ctx context.Context, key domain.RequestKey) ([]byte, error)
}

// Cache maps request keys to the last successful payload.
type Cache interface {
	Get(ctx context.Context, key domain.RequestKey) (domain.CacheEntry, bool)
	Put(ctx context.Context, key domain.RequestKey, value []byte, now time.Time)
}

// Counter tracks billed calls against the quota policy.
type Counter interface {
	Advance(now time.Time)
	RecordCall(now time.Time)
	WarningLevel() quota.Level
	Usage() quota.Usage
	Policy() quota.Policy
}
