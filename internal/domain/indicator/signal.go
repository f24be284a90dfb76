package indicator

// Signal is a five-step trading signal.
type Signal string

// Signals, strongest buy to strongest sell.
const (
	StrongBuy  Signal = "Strong Buy"
	Buy        Signal = "Buy"
	Neutral    Signal = "Neutral"
	Sell       Signal = "Sell"
	StrongSell Signal = "Strong Sell"
)

// Score maps a signal to -2..2.
func (s Signal) Score() int {
	switch s {
	case StrongBuy:
		return 2
	case Buy:
		return 1
	case Sell:
		return -1
	case StrongSell:
		return -2
	default:
		return 0
	}
}

// band picks a signal from descending thresholds: > strong, > weak, > -weak, > -strong.
func band(v, strong, weak float64) Signal {
	switch {
	case v > strong:
		return StrongBuy
	case v > weak:
		return Buy
	case v > -weak:
		return Neutral
	case v > -strong:
		return Sell
	default:
		return StrongSell
	}
}

// CCISignal categorizes a CCI value. CCI is contrarian: overbought reads as sell.
func CCISignal(cci float64) Signal {
	switch {
	case cci > 200:
		return StrongSell
	case cci > 100:
		return Sell
	case cci > -100:
		return Neutral
	case cci > -200:
		return Buy
	default:
		return StrongBuy
	}
}

// TrendSignal categorizes the price position relative to a moving average.
func TrendSignal(price, ma float64) Signal {
	if ma == 0 {
		return Neutral
	}
	return band((price-ma)/ma*100, 5, 2)
}

// CrossoverSignal categorizes the spread between a fast and a slow moving average.
// Thresholds tighten for long-term pairs.
func CrossoverSignal(fast, slow float64, fastPeriod int) Signal {
	if slow == 0 {
		return Neutral
	}
	spread := (fast - slow) / slow * 100
	switch {
	case fastPeriod <= 10:
		return band(spread, 1.5, 0.5)
	case fastPeriod <= 20:
		return band(spread, 2.0, 0.8)
	default:
		return band(spread, 1.0, 0.3)
	}
}
