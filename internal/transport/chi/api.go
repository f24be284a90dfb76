package chi

import (
	"time"

	"github.com/kailas-cloud/metalquote/internal/domain"
	"github.com/kailas-cloud/metalquote/internal/domain/indicator"
)

// ErrorResponseCode is the machine-readable error code in API responses.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest       ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized     ErrorResponseCode = "unauthorized"
	ErrorResponseCodeUnknownProduct   ErrorResponseCode = "unknown_product"
	ErrorResponseCodeValidationFailed ErrorResponseCode = "validation_failed"
	ErrorResponseCodeQuotaExceeded    ErrorResponseCode = "quota_exceeded"
	ErrorResponseCodeUpstreamError    ErrorResponseCode = "upstream_error"
	ErrorResponseCodeUpstreamTimeout  ErrorResponseCode = "upstream_unavailable"
	ErrorResponseCodeFetchFailed      ErrorResponseCode = "fetch_failed"
	ErrorResponseCodeInternalError    ErrorResponseCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
	// UpstreamCode is the price API's numeric code (10001-10008).
	UpstreamCode *int    `json:"upstream_code,omitempty"`
	Description  *string `json:"description,omitempty"`
}

// Meta describes payload provenance so clients can render "Cached (N min old)".
type Meta struct {
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	AgeSeconds  int64     `json:"age_seconds"`
	StaleReason *string   `json:"stale_reason,omitempty"`
}

// QuoteItem is one London spot quote.
type QuoteItem struct {
	Type          string           `json:"type"`
	Name          string           `json:"name"`
	Price         domain.Number    `json:"price"`
	Change        domain.Number    `json:"change"`
	ChangePercent string           `json:"change_percent"`
	Direction     domain.Direction `json:"direction"`
	Open          domain.Number    `json:"open"`
	High          domain.Number    `json:"high"`
	Low           domain.Number    `json:"low"`
	PrevClose     domain.Number    `json:"prev_close"`
	UpdatedAt     string           `json:"updated_at"`
}

// QuotesResponse is the body of GET /v1/quotes.
type QuotesResponse struct {
	Items []QuoteItem `json:"items"`
	Meta  Meta        `json:"meta"`
}

// KlineItem is one OHLC record.
type KlineItem struct {
	Day              string           `json:"day"`
	Open             domain.Number    `json:"open"`
	High             domain.Number    `json:"high"`
	Low              domain.Number    `json:"low"`
	Close            domain.Number    `json:"close"`
	Change           domain.Number    `json:"change"`
	ChangePercent    string           `json:"change_percent"`
	Direction        domain.Direction `json:"direction"`
	Amplitude        domain.Number    `json:"amplitude"`
	AmplitudePercent string           `json:"amplitude_percent"`
}

// HistoryResponse is the body of GET /v1/history/{product}.
type HistoryResponse struct {
	Product  domain.Product      `json:"product"`
	Type     string              `json:"type"`
	Limit    int                 `json:"limit"`
	Items    []KlineItem         `json:"items"`
	Analysis *indicator.Analysis `json:"analysis,omitempty"`
	Meta     Meta                `json:"meta"`
}

// ProductsResponse is the body of GET /v1/products.
type ProductsResponse struct {
	Items []domain.Product `json:"items"`
}

// LastErrorResponse is the most recent upstream failure.
type LastErrorResponse struct {
	Code        *int      `json:"code,omitempty"`
	Message     string    `json:"message"`
	Description *string   `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// QuotaResponse is the body of GET /v1/quota.
type QuotaResponse struct {
	DailyCalls       int                `json:"daily_calls"`
	MonthlyCalls     int                `json:"monthly_calls"`
	MonthlyEstimate  int                `json:"monthly_estimate"`
	MaxCallsPerMonth int                `json:"max_calls_per_month"`
	Remaining        int                `json:"remaining"`
	Level            string             `json:"level"`
	CacheTTLSeconds  int64              `json:"cache_ttl_seconds"`
	DayResetsAt      time.Time          `json:"day_resets_at"`
	MonthResetsAt    time.Time          `json:"month_resets_at"`
	LastError        *LastErrorResponse `json:"last_error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
