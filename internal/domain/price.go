package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a decimal that tolerates the upstream's string encoding,
// including empty and placeholder values, which decode as zero.
type Number struct {
	decimal.Decimal
}

// NewNumber creates a Number from a string; invalid input yields an error.
func NewNumber(s string) (Number, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return Number{}, fmt.Errorf("parse number %q: %w", s, err)
	}
	return Number{Decimal: d}, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	switch s {
	case "", "null", "-", "--":
		n.Decimal = decimal.Zero
		return nil
	}
	v, err := NewNumber(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// Text is a string field the upstream sometimes sends as a bare number.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text: %w", err)
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// Direction is the sign of a price change. Rendering (colors) is left to the client.
type Direction string

// Direction values.
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// DirectionOf classifies a change amount.
func DirectionOf(change Number) Direction {
	switch change.Sign() {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionFlat
	}
}

// Kline is one OHLC record from the history endpoint.
type Kline struct {
	Day              Text   `json:"day"`
	DayTime          Text   `json:"day_time"`
	Open             Number `json:"openingprice"`
	High             Number `json:"maxprice"`
	Low              Number `json:"minprice"`
	Close            Number `json:"close"`
	Change           Number `json:"changequantity"`
	ChangePercent    Text   `json:"changepercent"`
	TradeAmount      Number `json:"tradeamount"`
	Amplitude        Number `json:"amplitude"`
	AmplitudePercent Text   `json:"amplitude_percent"`
	KStatus          Text   `json:"k_status"`
}

// Quote is one live record from the London quote board.
type Quote struct {
	Type          Text   `json:"type"`
	Price         Number `json:"price"`
	Change        Number `json:"changequantity"`
	ChangePercent Text   `json:"changepercent"`
	Open          Number `json:"openingprice"`
	High          Number `json:"maxprice"`
	Low           Number `json:"minprice"`
	PrevClose     Number `json:"lastclosingprice"`
	UpdateTime    Text   `json:"updatetime"`
}

var metalNames = map[string]string{
	"伦敦金":  "London Gold",
	"伦敦银":  "London Silver",
	"铂金期货": "Platinum Futures",
	"钯金期货": "Palladium Futures",
}

// EnglishName translates the upstream instrument name, falling back to the original.
func (q Quote) EnglishName() string {
	if n, ok := metalNames[string(q.Type)]; ok {
		return n
	}
	return string(q.Type)
}

// DecodeKlines parses a history payload (the upstream "list" array).
func DecodeKlines(payload []byte) ([]Kline, error) {
	var out []Kline
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode klines: %v: %w", err, ErrFetchFailed)
	}
	return out, nil
}

// DecodeQuotes parses a London quote payload.
func DecodeQuotes(payload []byte) ([]Quote, error) {
	var out []Quote
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode quotes: %v: %w", err, ErrFetchFailed)
	}
	return out, nil
}

// ValidatePayload decodes payload with the record decoder for key's endpoint.
// Payloads for other endpoints are accepted as is.
func ValidatePayload(key RequestKey, payload []byte) error {
	var err error
	switch key.Endpoint() {
	case EndpointLondon:
		_, err = DecodeQuotes(payload)
	case EndpointHistory:
		_, err = DecodeKlines(payload)
	}
	return err
}
