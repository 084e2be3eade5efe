package backoff

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultSafetyMargin is added to every throttle wait on top of what the
// server asked for.
const DefaultSafetyMargin = 5 * time.Second

const maxDuration = time.Duration(math.MaxInt64)

// Throttle turns a 503 response's Retry-After header into the time to wait
// before the identical request is sent again.
type Throttle struct {
	Margin     time.Duration
	Strategy   Strategy
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// NewThrottle returns a Throttle with the default safety margin and an
// exponential fallback (1s doubling, capped at 60s) for responses that carry
// no usable Retry-After header.
func NewThrottle() *Throttle {
	return &Throttle{
		Margin:     DefaultSafetyMargin,
		Strategy:   ExponentialJitterStrategy{},
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2.0,
		Jitter:     0,
	}
}

// Delay returns the wait for the given Retry-After value. attempt is the
// zero-based index of the consecutive throttle and only matters when the
// header is missing or unparseable.
func (t *Throttle) Delay(retryAfter string, attempt int) time.Duration {
	base, ok := ParseRetryAfter(retryAfter)
	if !ok && t.Strategy != nil {
		base = t.Strategy.Calculate(attempt, t.Initial, t.Max, t.Multiplier, t.Jitter)
	}
	if base > maxDuration-t.Margin {
		return maxDuration
	}
	return base + t.Margin
}

// ParseRetryAfter parses the Retry-After header value. Both delay-seconds and
// HTTP-date forms are accepted and never shortened; only values beyond the
// range of time.Duration saturate. The second return value is false when the
// value is empty or cannot be parsed.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return 0, false
		}
		if seconds > int64(maxDuration/time.Second) {
			return maxDuration, true
		}
		return time.Duration(seconds) * time.Second, true
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay < 0 {
			delay = 0
		}
		return delay, true
	}

	return 0, false
}
