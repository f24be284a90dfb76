package quota

import "time"

// Defaults for the upstream plan.
const (
	DefaultMaxCallsPerMonth = 600
	DefaultCacheTTL         = 1800 * time.Second
	// DaysPerMonth is the fixed month length used for projections.
	DaysPerMonth = 30
)

// Policy is the static call budget and freshness window.
type Policy struct {
	MaxCallsPerMonth int
	CacheTTL         time.Duration
}

// DefaultPolicy returns the plan defaults (600 calls/month, 30 minute freshness).
func DefaultPolicy() Policy {
	return Policy{
		MaxCallsPerMonth: DefaultMaxCallsPerMonth,
		CacheTTL:         DefaultCacheTTL,
	}
}

// Level is the quota warning level, ordered from safe to critical.
type Level int

// Warning levels.
const (
	LevelSafe Level = iota
	LevelCaution
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelSafe:
		return "safe"
	case LevelCaution:
		return "caution"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Level thresholds as a fraction of MaxCallsPerMonth.
const (
	cautionRatio = 0.75
	warningRatio = 0.90
)

// LevelFor classifies a monthly estimate against the policy.
// Critical means the estimate would exceed the monthly cap.
// A non-positive cap disables the budget.
func (p Policy) LevelFor(estimate int) Level {
	if p.MaxCallsPerMonth <= 0 {
		return LevelSafe
	}
	limit := float64(p.MaxCallsPerMonth)
	est := float64(estimate)
	switch {
	case est > limit:
		return LevelCritical
	case est >= limit*warningRatio:
		return LevelWarning
	case est >= limit*cautionRatio:
		return LevelCaution
	default:
		return LevelSafe
	}
}

// Usage is a point-in-time snapshot of the call counter.
type Usage struct {
	dailyCount      int
	monthlyCount    int
	monthlyEstimate int
	periodStart     time.Time
	level           Level
}

// NewUsage creates a Usage snapshot.
func NewUsage(daily, monthly, estimate int, periodStart time.Time, level Level) Usage {
	return Usage{
		dailyCount:      daily,
		monthlyCount:    monthly,
		monthlyEstimate: estimate,
		periodStart:     periodStart,
		level:           level,
	}
}

// DailyCount returns calls made in the current day.
func (u Usage) DailyCount() int { return u.dailyCount }

// MonthlyCount returns calls made in the current calendar month.
func (u Usage) MonthlyCount() int { return u.monthlyCount }

// MonthlyEstimate returns the projected calls for a full month.
func (u Usage) MonthlyEstimate() int { return u.monthlyEstimate }

// PeriodStart returns the start of the current day period (UTC).
func (u Usage) PeriodStart() time.Time { return u.periodStart }

// Level returns the warning level.
func (u Usage) Level() Level { return u.level }
