package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metalquote/internal/domain"
	logpkg "github.com/kailas-cloud/metalquote/internal/logger"
	"github.com/kailas-cloud/metalquote/internal/metrics"
	"github.com/kailas-cloud/metalquote/internal/usecase/fetcher"
	healthuc "github.com/kailas-cloud/metalquote/internal/usecase/health"
	quoteuc "github.com/kailas-cloud/metalquote/internal/usecase/quote"
	statusuc "github.com/kailas-cloud/metalquote/internal/usecase/status"
)

// HeaderDataSource reports whether a payload was live, cached or stale.
const HeaderDataSource = metrics.SourceHeader

// History query defaults.
const (
	defaultHistoryType  = domain.KlineDaily
	defaultHistoryLimit = 30
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the quote API.
type Server struct {
	quotes        *quoteuc.Service
	status        *statusuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	quotes *quoteuc.Service,
	status *statusuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		quotes: quotes,
		status: status,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		upstreamErrorHandler,
		sentinelHandler(domain.ErrUnknownProduct, http.StatusNotFound, ErrorResponseCodeUnknownProduct),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusTooManyRequests, ErrorResponseCodeQuotaExceeded),
		sentinelHandler(domain.ErrNetwork, http.StatusGatewayTimeout, ErrorResponseCodeUpstreamTimeout),
		sentinelHandler(domain.ErrFetchFailed, http.StatusBadGateway, ErrorResponseCodeFetchFailed),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/v1/quotes", s.GetQuotes)
	r.Get("/v1/history/{product}", s.GetHistory)
	r.Get("/v1/products", s.ListProducts)
	r.Get("/v1/quota", s.GetQuota)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// GetQuotes handles GET /v1/quotes.
func (s *Server) GetQuotes(w http.ResponseWriter, r *http.Request) {
	q, err := s.quotes.Quotes(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]QuoteItem, len(q.Items))
	for i, it := range q.Items {
		items[i] = quoteToAPI(it)
	}
	w.Header().Set(HeaderDataSource, string(q.Meta.Source))
	writeJSON(w, http.StatusOK, QuotesResponse{Items: items, Meta: metaToAPI(q.Meta)})
}

// GetHistory handles GET /v1/history/{product}?type=&limit=&analysis=.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	var product string
	if err := runtime.BindStyledParameterWithOptions("simple", "product", chi.URLParam(r, "product"), &product,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true}); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter product: "+err.Error())
		return
	}

	kind := int(defaultHistoryType)
	limit := defaultHistoryLimit
	analysis := false
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "type", query, &kind); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter type: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid format for parameter limit: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "analysis", query, &analysis); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest,
			"Invalid format for parameter analysis: "+err.Error())
		return
	}

	req := domain.HistoryRequest{Product: product, Type: domain.KlineType(kind), Limit: limit}
	h, err := s.quotes.History(r.Context(), req, analysis)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	p, _ := domain.LookupProduct(product)
	items := make([]KlineItem, len(h.Klines))
	for i, k := range h.Klines {
		items[i] = klineToAPI(k)
	}
	w.Header().Set(HeaderDataSource, string(h.Meta.Source))
	writeJSON(w, http.StatusOK, HistoryResponse{
		Product:  p,
		Type:     req.Type.String(),
		Limit:    req.Limit,
		Items:    items,
		Analysis: h.Analysis,
		Meta:     metaToAPI(h.Meta),
	})
}

// ListProducts handles GET /v1/products.
func (s *Server) ListProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProductsResponse{Items: domain.Products()})
}

// GetQuota handles GET /v1/quota.
func (s *Server) GetQuota(w http.ResponseWriter, r *http.Request) {
	report := s.status.GetReport(r.Context())

	resp := QuotaResponse{
		DailyCalls:       report.DailyCount,
		MonthlyCalls:     report.MonthlyCount,
		MonthlyEstimate:  report.MonthlyEstimate,
		MaxCallsPerMonth: report.MaxCallsPerMonth,
		Remaining:        report.Remaining,
		Level:            report.Level.String(),
		CacheTTLSeconds:  int64(report.CacheTTL / time.Second),
		DayResetsAt:      report.DayEnd,
		MonthResetsAt:    report.MonthEnd,
	}
	if le := report.LastError; le != nil {
		resp.LastError = &LastErrorResponse{Message: le.Message, At: le.At.UTC()}
		if le.Code != 0 {
			code := le.Code
			resp.LastError.Code = &code
		}
		if le.Description != "" {
			d := le.Description
			resp.LastError.Description = &d
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation errors are built from request input and are returned verbatim.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrUnknownProduct) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrQuotaExceeded,
		domain.ErrNetwork,
		domain.ErrFetchFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// upstreamErrorHandler surfaces price API error codes with their bilingual description.
func upstreamErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) {
		return false
	}
	code := ue.Code
	resp := ErrorResponse{
		Code:         ErrorResponseCodeUpstreamError,
		Message:      ue.Error(),
		UpstreamCode: &code,
	}
	if d, ok := ue.Description(); ok {
		desc := d.String()
		resp.Description = &desc
	}
	writeJSON(w, http.StatusBadGateway, resp)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func metaToAPI(m quoteuc.Meta) Meta {
	out := Meta{
		Source:     string(m.Source),
		FetchedAt:  m.FetchedAt.UTC(),
		AgeSeconds: int64(m.Age / time.Second),
	}
	if m.Source == fetcher.SourceStale && m.StaleReason != nil {
		reason := safeDomainMessage(m.StaleReason)
		var ue *domain.UpstreamError
		if errors.As(m.StaleReason, &ue) {
			reason = ue.Error()
		}
		out.StaleReason = &reason
	}
	return out
}

func quoteToAPI(q domain.Quote) QuoteItem {
	return QuoteItem{
		Type:          string(q.Type),
		Name:          q.EnglishName(),
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: string(q.ChangePercent),
		Direction:     domain.DirectionOf(q.Change),
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		PrevClose:     q.PrevClose,
		UpdatedAt:     string(q.UpdateTime),
	}
}

func klineToAPI(k domain.Kline) KlineItem {
	return KlineItem{
		Day:              string(k.Day),
		Open:             k.Open,
		High:             k.High,
		Low:              k.Low,
		Close:            k.Close,
		Change:           k.Change,
		ChangePercent:    string(k.ChangePercent),
		Direction:        domain.DirectionOf(k.Change),
		Amplitude:        k.Amplitude,
		AmplitudePercent: string(k.AmplitudePercent),
	}
}
