package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/quota"
	"github.com/kailas-cloud/metalquote/internal/repository/pricecache"
	"github.com/kailas-cloud/metalquote/internal/usecase/counter"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
)

var now = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

// --- Mock ---

type mockFetcher struct {
	results  map[string]fetcher.Result
	err      error
	calls    atomic.Int32
	inflight atomic.Int32
	overlap  atomic.Bool
	canceled atomic.Bool
	delay    time.Duration
	started  chan struct{}
}

func (m *mockFetcher) Fetch(ctx context.Context, key domain.RequestKey, _ time.Time) (fetcher.Result, error) {
	m.calls.Add(1)
	if m.inflight.Add(1) > 1 {
		m.overlap.Store(true)
	}
	defer m.inflight.Add(-1)
	if m.started != nil {
		close(m.started)
		m.started = nil
	}
	time.Sleep(m.delay)
	if ctx.Err() != nil {
		m.canceled.Store(true)
	}

	if m.err != nil {
		return fetcher.Result{}, m.err
	}
	r, ok := m.results[key.String()]
	if !ok {
		return fetcher.Result{}, fmt.Errorf("fetch %s: %w", key, domain.ErrFetchFailed)
	}
	return r, nil
}

func newService(m *mockFetcher) *Service {
	return New(m, zap.NewNop()).WithClock(func() time.Time { return now })
}

func dailyKlines(n int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"day":"d%d","maxprice":"%d","minprice":"%d","close":"%d"}`, i, 110-i/10, 90-i/10, 100-i/10)
	}
	b.WriteString("]")
	return b.String()
}

// --- Tests ---

func TestQuotes_DecodesAndReportsAge(t *testing.T) {
	m := &mockFetcher{results: map[string]fetcher.Result{
		domain.LondonKey().String(): {
			Value:     []byte(`[{"type":"伦敦金","price":"4143.25","changequantity":"1.5"}]`),
			FetchedAt: now.Add(-12 * time.Minute),
			Source:    fetcher.SourceCache,
		},
	}}

	q, err := newService(m).Quotes(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Items) != 1 || q.Items[0].EnglishName() != "London Gold" {
		t.Fatalf("unexpected items %+v", q.Items)
	}
	if q.Meta.Source != fetcher.SourceCache || q.Meta.Age != 12*time.Minute {
		t.Errorf("unexpected meta %+v", q.Meta)
	}
}

func TestHistory_ValidatesBeforeFetching(t *testing.T) {
	m := &mockFetcher{}
	svc := newService(m)

	_, err := svc.History(context.Background(), domain.HistoryRequest{Product: "BTC", Type: domain.KlineDaily, Limit: 10}, false)
	if !errors.Is(err, domain.ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
	_, err = svc.History(context.Background(), domain.HistoryRequest{Product: "XAU", Type: domain.KlineDaily, Limit: 5000}, false)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if m.calls.Load() != 0 {
		t.Errorf("invalid requests must not reach the fetcher, got %d calls", m.calls.Load())
	}
}

func TestHistory_WithAnalysis(t *testing.T) {
	req := domain.HistoryRequest{Product: "XAU", Type: domain.KlineDaily, Limit: 80}
	m := &mockFetcher{results: map[string]fetcher.Result{
		req.Key().String(): {Value: []byte(dailyKlines(80)), FetchedAt: now, Source: fetcher.SourceLive},
	}}

	h, err := newService(m).History(context.Background(), req, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.Klines) != 80 {
		t.Errorf("expected 80 klines, got %d", len(h.Klines))
	}
	if h.Analysis == nil || len(h.Analysis.Readings) == 0 {
		t.Fatalf("expected analysis, got %+v", h.Analysis)
	}
	if h.Analysis.Day != "d0" {
		t.Errorf("analysis should describe the newest record, got %q", h.Analysis.Day)
	}
}

func TestHistory_StaleReason(t *testing.T) {
	req := domain.HistoryRequest{Product: "XAG", Type: domain.KlineWeekly, Limit: 10}
	m := &mockFetcher{results: map[string]fetcher.Result{
		req.Key().String(): {
			Value:     []byte(dailyKlines(10)),
			FetchedAt: now.Add(-time.Hour),
			Source:    fetcher.SourceStale,
			Cause:     domain.ErrQuotaExceeded,
		},
	}}

	h, err := newService(m).History(context.Background(), req, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(h.Meta.StaleReason, domain.ErrQuotaExceeded) || h.Analysis != nil {
		t.Errorf("unexpected history meta %+v", h.Meta)
	}
}

func TestRefresh_PropagatesErrors(t *testing.T) {
	m := &mockFetcher{err: fmt.Errorf("fetch: %w", domain.ErrQuotaExceeded)}
	_, err := newService(m).Quotes(context.Background())
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestRefresh_NeverRunsFetcherConcurrently(t *testing.T) {
	keys := []domain.RequestKey{
		domain.LondonKey(),
		domain.HistoryRequest{Product: "XAU", Type: domain.KlineDaily, Limit: 30}.Key(),
		domain.HistoryRequest{Product: "XAG", Type: domain.KlineDaily, Limit: 30}.Key(),
	}
	results := make(map[string]fetcher.Result)
	for _, k := range keys {
		results[k.String()] = fetcher.Result{Value: []byte("[]"), FetchedAt: now, Source: fetcher.SourceLive}
	}
	m := &mockFetcher{results: results, delay: 5 * time.Millisecond}
	svc := newService(m)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(k domain.RequestKey) {
			defer wg.Done()
			if _, err := svc.Refresh(context.Background(), k); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(keys[i%len(keys)])
	}
	wg.Wait()

	if m.overlap.Load() {
		t.Error("fetcher was entered concurrently")
	}
	if m.calls.Load() >= 30 {
		t.Errorf("expected concurrent same-key calls to be collapsed, got %d calls", m.calls.Load())
	}
}

func TestRefresh_SharedFetchOutlivesCanceledCaller(t *testing.T) {
	key := domain.LondonKey()
	started := make(chan struct{})
	m := &mockFetcher{
		results: map[string]fetcher.Result{
			key.String(): {Value: []byte("[]"), FetchedAt: now, Source: fetcher.SourceLive},
		},
		delay:   100 * time.Millisecond,
		started: started,
	}
	svc := newService(m)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Refresh(ctx, key)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		res fetcher.Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := svc.Refresh(context.Background(), key)
		second <- outcome{res, err}
	}()
	cancel()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled caller should get context.Canceled, got %v", err)
	}
	got := <-second
	if got.err != nil || got.res.Source != fetcher.SourceLive {
		t.Fatalf("waiting caller should get the live result, got %+v %v", got.res, got.err)
	}
	if m.canceled.Load() {
		t.Error("shared fetch must not see the first caller's cancellation")
	}
	if m.calls.Load() != 1 {
		t.Errorf("expected one shared fetch, got %d", m.calls.Load())
	}
}

// scriptedUpstream returns its payloads in order and repeats the last one.
type scriptedUpstream struct {
	payloads []string
	calls    int
}

func (u *scriptedUpstream) Fetch(_ context.Context, _ domain.RequestKey) ([]byte, error) {
	p := u.payloads[min(u.calls, len(u.payloads)-1)]
	u.calls++
	return []byte(p), nil
}

func TestQuotes_UndecodableRecordsServeStale(t *testing.T) {
	good := `[{"type":"伦敦金","price":"4143.25","changequantity":"12.5"}]`
	up := &scriptedUpstream{payloads: []string{good, `[{"price":"N/A"}]`}}
	cache := pricecache.NewMemory()
	calls := counter.New(quota.DefaultPolicy(), now, zap.NewNop())
	f := fetcher.New(up, cache, calls, nil, zap.NewNop()).WithValidator(domain.ValidatePayload)

	clock := now
	svc := New(f, zap.NewNop()).WithClock(func() time.Time { return clock })
	ctx := context.Background()

	if _, err := svc.Quotes(ctx); err != nil {
		t.Fatalf("t0: unexpected error: %v", err)
	}

	for _, offset := range []time.Duration{1801 * time.Second, 1900 * time.Second} {
		clock = now.Add(offset)
		q, err := svc.Quotes(ctx)
		if err != nil {
			t.Fatalf("t0+%s: expected stale quotes, got %v", offset, err)
		}
		if q.Meta.Source != fetcher.SourceStale || !errors.Is(q.Meta.StaleReason, domain.ErrFetchFailed) {
			t.Errorf("t0+%s: unexpected meta %+v", offset, q.Meta)
		}
		if len(q.Items) != 1 || q.Items[0].Price.String() != "4143.25" {
			t.Errorf("t0+%s: expected the last good quote, got %+v", offset, q.Items)
		}
	}

	entry, ok := cache.Get(ctx, domain.LondonKey())
	if !ok || string(entry.Value) != good {
		t.Errorf("cache must keep the last good payload, got %q", entry.Value)
	}
	if up.calls != 3 {
		t.Errorf("expected each expired request to retry upstream, got %d calls", up.calls)
	}
}
