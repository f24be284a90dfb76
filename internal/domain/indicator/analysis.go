package indicator

import (
	"fmt"

	"github.com/kailas-cloud/metalquote/internal/domain"
)

// Indicator names, also the keys of the sentiment weights.
const (
	NameCCI20 = "CCI-20"
)

var (
	trendPeriods  = []int{5, 20, 40, 60}
	crossoverPair = [][2]int{{5, 10}, {10, 20}, {20, 40}, {20, 60}, {40, 60}}

	weights = map[string]float64{
		NameCCI20:   15,
		"MA5":       2,
		"MA20":      8,
		"MA40":      10,
		"MA60":      10,
		"MA5-MA10":  8,
		"MA10-MA20": 12,
		"MA20-MA40": 20,
		"MA20-MA60": 18,
		"MA40-MA60": 5,
	}
)

// Reading is one computed indicator with its signal.
type Reading struct {
	Name   string  `json:"name"`
	Signal Signal  `json:"signal"`
	Value  float64 `json:"value"`
	// Diff is price-MA for trends and fast-slow for crossovers.
	Diff float64 `json:"diff,omitempty"`
}

// Analysis is the full technical read of a history window.
type Analysis struct {
	Day       string    `json:"day"`
	Price     float64   `json:"price"`
	Readings  []Reading `json:"readings"`
	Sentiment Signal    `json:"sentiment"`
	Score     float64   `json:"score"`
}

// Analyze computes indicators over klines as returned by the upstream (newest first).
func Analyze(klines []domain.Kline) (Analysis, error) {
	if len(klines) == 0 {
		return Analysis{}, fmt.Errorf("no history: %w", domain.ErrInvalidRequest)
	}

	n := len(klines)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i, k := range klines {
		j := n - 1 - i // chronological order
		high[j] = k.High.InexactFloat64()
		low[j] = k.Low.InexactFloat64()
		closes[j] = k.Close.InexactFloat64()
	}

	price := closes[n-1]
	a := Analysis{Day: string(klines[0].Day), Price: price}

	if cci := CCI(high, low, closes, 20); cci != nil {
		v := cci[len(cci)-1]
		a.Readings = append(a.Readings, Reading{Name: NameCCI20, Signal: CCISignal(v), Value: v})
	}

	for _, p := range trendPeriods {
		ma := SMA(closes, p)
		if ma == nil {
			continue
		}
		v := ma[len(ma)-1]
		a.Readings = append(a.Readings, Reading{
			Name:   fmt.Sprintf("MA%d", p),
			Signal: TrendSignal(price, v),
			Value:  v,
			Diff:   round2(price - v),
		})
	}

	for _, pair := range crossoverPair {
		fast, slow := SMA(closes, pair[0]), SMA(closes, pair[1])
		if fast == nil || slow == nil {
			continue
		}
		f, s := fast[len(fast)-1], slow[len(slow)-1]
		var spreadPct float64
		if s != 0 {
			spreadPct = round2((f - s) / s * 100)
		}
		a.Readings = append(a.Readings, Reading{
			Name:   fmt.Sprintf("MA%d-MA%d", pair[0], pair[1]),
			Signal: CrossoverSignal(f, s, pair[0]),
			Value:  spreadPct,
			Diff:   round2(f - s),
		})
	}

	a.Sentiment, a.Score = Sentiment(a.Readings)
	return a, nil
}

// Sentiment returns the weight-averaged signal over readings with a known weight.
func Sentiment(readings []Reading) (Signal, float64) {
	var total, weight float64
	for _, r := range readings {
		w, ok := weights[r.Name]
		if !ok {
			continue
		}
		total += float64(r.Signal.Score()) * w
		weight += w
	}
	if weight == 0 {
		return Neutral, 0
	}

	score := total / weight
	switch {
	case score >= 1.3:
		return StrongBuy, score
	case score >= 0.4:
		return Buy, score
	case score >= -0.4:
		return Neutral, score
	case score >= -1.3:
		return Sell, score
	default:
		return StrongSell, score
	}
}
