package quote

import (
	"context"
	"time"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
)

// Fetcher is the quota-aware fetcher. It must not be called concurrently.
type Fetcher interface {
	Fetch(ctx context.Context, key domain.RequestKey, now time.Time) (fetcher.Result, error)
}
