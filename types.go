package harvest

import (
	"context"
	"net/http"
	"time"
)

// Protocol is a transport the pipeline can talk to the service over.
type Protocol int

const (
	ProtocolHTTPS Protocol = iota
	ProtocolHTTP
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolHTTPS:
		return "https"
	case ProtocolHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Scheme returns the URL scheme for the protocol.
func (p Protocol) Scheme() string {
	return p.String()
}

// DefaultPort returns the well-known port for the protocol.
func (p Protocol) DefaultPort() int {
	if p == ProtocolHTTPS {
		return 443
	}
	return 80
}

// ResponseClass is the closed set of outcomes a single attempt can have.
type ResponseClass int

const (
	ClassSuccess ResponseClass = iota
	ClassThrottled
	ClassRedirected
	ClassFailed
)

// String returns a short label used in logs and metrics.
func (rc ResponseClass) String() string {
	switch rc {
	case ClassSuccess:
		return "success"
	case ClassThrottled:
		return "throttled"
	case ClassRedirected:
		return "redirected"
	default:
		return "failed"
	}
}

// Classify maps a status code onto a ResponseClass.
func Classify(statusCode int) ResponseClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ClassSuccess
	case statusCode == http.StatusServiceUnavailable:
		return ClassThrottled
	case statusCode >= 300 && statusCode < 400:
		return ClassRedirected
	default:
		return ClassFailed
	}
}

// Middleware wraps the transport call for a single attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option represents a configuration option
type Option func(*Client)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ClientError represents an error from the client
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Timestamp  time.Time
	Duration   time.Duration
}

// DebugConfig selects which pipeline events are logged.
type DebugConfig struct {
	Enabled      bool
	LogRequests  bool
	LogThrottle  bool
	LogFallback  bool
	RequestIDGen func() string
}

// DefaultDebugConfig returns a disabled config with every event selected, so
// that enabling it is enough to see the full request lifecycle.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogThrottle:  true,
		LogFallback:  true,
		RequestIDGen: newRequestID,
	}
}
