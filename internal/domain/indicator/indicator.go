// Package indicator computes moving-average and CCI signals over OHLC history.
package indicator

import "math"

// SMA returns the simple moving average series for period.
// The result has len(prices)-period+1 points, or is nil when there is not enough data.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return nil
	}
	out := make([]float64, 0, len(prices)-period+1)
	for end := period; end <= len(prices); end++ {
		var sum float64
		for _, p := range prices[end-period : end] {
			sum += p
		}
		out = append(out, round2(sum/float64(period)))
	}
	return out
}

// CCI returns the Commodity Channel Index series for period.
// Inputs must have equal length; a zero mean deviation yields 0.
func CCI(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n < period || len(high) != n || len(low) != n {
		return nil
	}

	typical := make([]float64, n)
	for i := range closes {
		typical[i] = (high[i] + low[i] + closes[i]) / 3
	}

	avg := SMA(typical, period)
	out := make([]float64, len(avg))
	for i, mean := range avg {
		window := typical[i : i+period]
		var dev float64
		for _, tp := range window {
			dev += math.Abs(tp - mean)
		}
		dev /= float64(period)
		if dev == 0 {
			out[i] = 0
			continue
		}
		out[i] = round2((window[period-1] - mean) / (0.015 * dev))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
