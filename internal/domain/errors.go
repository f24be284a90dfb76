package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded signals that the local monthly call budget would be exceeded
	// and no cached value is available.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrFetchFailed signals a parse/validation failure with no cached fallback.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrNetwork signals a transport-level failure or timeout.
	ErrNetwork = errors.New("network error")
	// ErrInvalidRequest signals request parameters rejected before any call is made.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownProduct signals a product code missing from the catalog.
	ErrUnknownProduct = errors.New("unknown product")
)

// Upstream error sentinels, one per documented upstream code.
var (
	ErrInvalidKey       = errors.New("invalid api key")
	ErrPermissionDenied = errors.New("permission denied")
	ErrKeyExpired       = errors.New("api key expired")
	ErrUnknownSource    = errors.New("unknown request source")
	ErrBannedIP         = errors.New("banned ip")
	ErrBannedKey        = errors.New("banned api key")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnderMaintenance = errors.New("under maintenance")
)

// Upstream error codes.
const (
	CodeInvalidKey       = 10001
	CodePermissionDenied = 10002
	CodeKeyExpired       = 10003
	CodeUnknownSource    = 10004
	CodeBannedIP         = 10005
	CodeBannedKey        = 10006
	CodeRateLimited      = 10007
	CodeUnderMaintenance = 10008
)

// ErrorDescription is the bilingual description of an upstream error code.
type ErrorDescription struct {
	Chinese string `json:"zh"`
	English string `json:"en"`
}

// String renders the description the way the upstream documents it.
func (d ErrorDescription) String() string {
	return d.Chinese + " (" + d.English + ")"
}

type upstreamCode struct {
	sentinel    error
	description ErrorDescription
}

var upstreamCodes = map[int]upstreamCode{
	CodeInvalidKey:       {ErrInvalidKey, ErrorDescription{"错误的请求KEY", "Invalid API Key"}},
	CodePermissionDenied: {ErrPermissionDenied, ErrorDescription{"该KEY无请求权限", "Key has no request permission"}},
	CodeKeyExpired:       {ErrKeyExpired, ErrorDescription{"KEY过期", "API Key expired"}},
	CodeUnknownSource:    {ErrUnknownSource, ErrorDescription{"未知的请求源", "Unknown request source"}},
	CodeBannedIP:         {ErrBannedIP, ErrorDescription{"被禁止的IP", "Banned IP address"}},
	CodeBannedKey:        {ErrBannedKey, ErrorDescription{"被禁止的KEY", "Banned API Key"}},
	CodeRateLimited:      {ErrRateLimited, ErrorDescription{"请求超过次数限制", "Request limit exceeded"}},
	CodeUnderMaintenance: {ErrUnderMaintenance, ErrorDescription{"接口维护", "API under maintenance"}},
}

// DescribeCode looks up the bilingual description for an upstream code.
func DescribeCode(code int) (ErrorDescription, bool) {
	c, ok := upstreamCodes[code]
	return c.description, ok
}

// UpstreamError is an error object returned by the price API.
// Code and Message are surfaced verbatim.
type UpstreamError struct {
	Code    int
	Message string
}

// NewUpstreamError creates an UpstreamError.
func NewUpstreamError(code int, message string) *UpstreamError {
	return &UpstreamError{Code: code, Message: message}
}

// Description returns the bilingual description for the code, if known.
func (e *UpstreamError) Description() (ErrorDescription, bool) {
	return DescribeCode(e.Code)
}

func (e *UpstreamError) Error() string {
	if d, ok := DescribeCode(e.Code); ok {
		return fmt.Sprintf("upstream error %d: %s", e.Code, d)
	}
	if e.Message != "" {
		return fmt.Sprintf("upstream error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("upstream error %d", e.Code)
}

// Unwrap maps the code to its sentinel. Unknown codes unwrap to ErrFetchFailed.
func (e *UpstreamError) Unwrap() error {
	if c, ok := upstreamCodes[e.Code]; ok {
		return c.sentinel
	}
	return ErrFetchFailed
}
