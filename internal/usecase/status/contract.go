package status

import (
	"time"

	"github.com/kailas-cloud/metalquote/internal/domain/quota"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
)

// UsageReader provides read access to the call counter.
type UsageReader interface {
	Advance(now time.Time)
	Usage() quota.Usage
	Policy() quota.Policy
}

// FailureReader exposes the last upstream failure.
type FailureReader interface {
	LastFailure() (fetcher.UpstreamFailure, bool)
}
