package domain

import (
	"fmt"
	"sort"
	"strconv"
)

// Upstream endpoints.
const (
	EndpointLondon  = "/api/gold/v1/london"
	EndpointHistory = "/api/precious_metals_history/v1/kline_data"
)

// History limit bounds accepted by the upstream.
const (
	MinHistoryLimit = 1
	MaxHistoryLimit = 1000
)

// KlineType is the history aggregation interval.
type KlineType int

// Kline types as numbered by the upstream.
const (
	KlineDaily   KlineType = 1
	KlineWeekly  KlineType = 2
	KlineMonthly KlineType = 3
)

// Valid reports whether t is a known interval.
func (t KlineType) Valid() bool {
	return t >= KlineDaily && t <= KlineMonthly
}

func (t KlineType) String() string {
	switch t {
	case KlineDaily:
		return "daily"
	case KlineWeekly:
		return "weekly"
	case KlineMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

// Product is a tradable instrument with history on the upstream.
type Product struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	English string `json:"english"`
	Since   string `json:"since"`
}

var products = map[string]Product{
	"XAU":    {"XAU", "国际黄金", "International Gold", "2005-12-30"},
	"XAG":    {"XAG", "国际白银", "International Silver", "2005-12-27"},
	"XPT":    {"XPT", "国际铂金", "International Platinum", "2009-06-10"},
	"XPD":    {"XPD", "国际钯金", "International Palladium", "2005-11-24"},
	"HKD":    {"HKD", "香港黄金", "Hong Kong Gold", "2005-10-14"},
	"TWAU":   {"TWAU", "台湾黄金", "Taiwan Gold", "2009-06-30"},
	"Au9995": {"Au9995", "黄金9995", "Gold 9995", "2004-06-04"},
	"Au9999": {"Au9999", "黄金9999", "Gold 9999", "2004-09-17"},
	"Au100g": {"Au100g", "100克金条", "100g Gold Bar", "2006-12-25"},
	"PT9995": {"PT9995", "铂金9995", "Platinum 9995", "2004-08-27"},
	"Ag9999": {"Ag9999", "白银9999", "Silver 9999", "2012-09-06"},
	"AuT+D":  {"AuT+D", "黄金延期", "Gold Deferred", "2004-09-01"},
	"AgT+D":  {"AgT+D", "白银延期", "Silver Deferred", "2006-11-01"},
}

// LookupProduct returns the catalog entry for code.
func LookupProduct(code string) (Product, bool) {
	p, ok := products[code]
	return p, ok
}

// Products returns the catalog sorted by code.
func Products() []Product {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// HistoryRequest describes a kline history query.
type HistoryRequest struct {
	Product string
	Type    KlineType
	Limit   int
}

// Validate checks the request against the catalog and upstream bounds.
func (r HistoryRequest) Validate() error {
	if _, ok := products[r.Product]; !ok {
		return fmt.Errorf("product %q: %w", r.Product, ErrUnknownProduct)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("type must be 1 (daily), 2 (weekly) or 3 (monthly), got %d: %w", r.Type, ErrInvalidRequest)
	}
	if r.Limit < MinHistoryLimit || r.Limit > MaxHistoryLimit {
		return fmt.Errorf("limit must be between %d and %d, got %d: %w",
			MinHistoryLimit, MaxHistoryLimit, r.Limit, ErrInvalidRequest)
	}
	return nil
}

// Key returns the cache fingerprint for the request.
func (r HistoryRequest) Key() RequestKey {
	return NewRequestKey(EndpointHistory, map[string]string{
		"product": r.Product,
		"type":    strconv.Itoa(int(r.Type)),
		"limit":   strconv.Itoa(r.Limit),
	})
}

// LondonKey returns the cache fingerprint for the live London quote board.
func LondonKey() RequestKey {
	return NewRequestKey(EndpointLondon, nil)
}
