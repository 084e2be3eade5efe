package backoff

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
		ok       bool
	}{
		{"", 0, false},
		{"0", 0, true},
		{"10", 10 * time.Second, true},
		{" 3 ", 3 * time.Second, true},
		{"-1", 0, false},
		{"7200", 2 * time.Hour, true},
		{"86400", 24 * time.Hour, true},
		{"99999999999999999", maxDuration, true},
		{"soon", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			result, ok := ParseRetryAfter(tt.value)
			if result != tt.expected || ok != tt.ok {
				t.Errorf("ParseRetryAfter(%q) = (%v, %v), want (%v, %v)", tt.value, result, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	result, ok := ParseRetryAfter(future)
	if !ok || result <= 25*time.Second || result > 30*time.Second {
		t.Errorf("ParseRetryAfter(HTTP date) = (%v, %v), want about 30s", result, ok)
	}

	past := time.Now().Add(-30 * time.Second).UTC().Format(http.TimeFormat)
	result, ok = ParseRetryAfter(past)
	if !ok || result != 0 {
		t.Errorf("ParseRetryAfter(past date) = (%v, %v), want (0, true)", result, ok)
	}
}

func TestThrottleDelayAddsMargin(t *testing.T) {
	th := NewThrottle()

	if d := th.Delay("2", 0); d != 7*time.Second {
		t.Errorf("Delay(\"2\") = %v, want 7s", d)
	}
	if d := th.Delay("0", 2); d != DefaultSafetyMargin {
		t.Errorf("Delay(\"0\") = %v, want %v", d, DefaultSafetyMargin)
	}
	if d := th.Delay("7200", 0); d != 2*time.Hour+5*time.Second {
		t.Errorf("Delay(\"7200\") = %v, want 2h0m5s", d)
	}
	if d := th.Delay("99999999999999999", 0); d != maxDuration {
		t.Errorf("Delay(huge) = %v, want saturation at %v", d, maxDuration)
	}
}

func TestParseRetryAfterDistantHTTPDate(t *testing.T) {
	later := time.Now().Add(3 * time.Hour).UTC().Format(http.TimeFormat)
	result, ok := ParseRetryAfter(later)
	if !ok || result <= 2*time.Hour+59*time.Minute {
		t.Errorf("ParseRetryAfter(date 3h ahead) = (%v, %v), want about 3h", result, ok)
	}
}

func TestThrottleDelayFallback(t *testing.T) {
	th := NewThrottle()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 6 * time.Second},
		{1, 7 * time.Second},
		{2, 9 * time.Second},
	}
	for _, tt := range tests {
		if d := th.Delay("", tt.attempt); d != tt.expected {
			t.Errorf("Delay(\"\", %d) = %v, want %v", tt.attempt, d, tt.expected)
		}
	}

	th.Strategy = nil
	if d := th.Delay("garbage", 1); d != DefaultSafetyMargin {
		t.Errorf("Delay without strategy = %v, want %v", d, DefaultSafetyMargin)
	}
}
