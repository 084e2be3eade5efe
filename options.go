package harvest

import (
	"crypto/x509"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dkobozev/harvest-cli/internal/backoff"
)

// WithSecure selects the preferred protocol: HTTPS when true (the default),
// HTTP otherwise. The other protocol is kept as the fallback.
func WithSecure(secure bool) Option {
	return func(c *Client) {
		c.secure = secure
	}
}

// WithHost replaces {subdomain}.serviceapp.com with host.
func WithHost(host string) Option {
	return func(c *Client) {
		c.transport.hostOverride = host
	}
}

// WithPort overrides the port used for proto.
func WithPort(proto Protocol, port int) Option {
	return func(c *Client) {
		c.transport.ports[proto] = port
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify() Option {
	return func(c *Client) {
		c.transport.insecureSkipVerify = true
	}
}

// WithRootCAs sets the certificate pool used to verify the server.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *Client) {
		c.transport.rootCAs = pool
	}
}

// WithTransport sets the http.Transport every connection is cloned from.
func WithTransport(t *http.Transport) Option {
	return func(c *Client) {
		c.transport.baseTransport = t
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.transport.timeout = d
	}
}

// WithMaxThrottleRetries sets how many consecutive 503 responses are waited out.
func WithMaxThrottleRetries(n int) Option {
	return func(c *Client) {
		c.maxThrottleRetries = n
	}
}

// WithSafetyMargin sets the time added to every Retry-After wait.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *Client) {
		c.throttle.Margin = d
	}
}

// WithThrottleFallback sets the strategy used when a 503 carries no usable
// Retry-After header.
func WithThrottleFallback(strategy backoff.Strategy, initial, max time.Duration, multiplier float64) Option {
	return func(c *Client) {
		c.throttle.Strategy = strategy
		c.throttle.Initial = initial
		c.throttle.Max = max
		c.throttle.Multiplier = multiplier
	}
}

// WithSleeper replaces the function used to wait between throttled attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithRateLimit paces outgoing attempts client side.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMiddleware adds middleware around every attempt.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithMetrics enables Prometheus metrics collection on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateThrottleConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %s", strings.Join(errors, "; ")),
		}
	}

	return nil
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.transport.subdomain == "" && c.transport.hostOverride == "" {
		errors = append(errors, "subdomain must be set")
	}
	if strings.ContainsAny(c.transport.subdomain, "/:@ ") {
		errors = append(errors, fmt.Sprintf("subdomain %q is not a valid host label", c.transport.subdomain))
	}
	for proto, port := range c.transport.ports {
		if port <= 0 || port > 65535 {
			errors = append(errors, fmt.Sprintf("%s port %d out of range", proto, port))
		}
	}
	if c.transport.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}

	return errors
}

func (c *Client) validateThrottleConfig() []string {
	var errors []string

	if c.maxThrottleRetries < 0 {
		errors = append(errors, "maxThrottleRetries must be non-negative")
	}
	if c.throttle == nil {
		errors = append(errors, "throttle calculator cannot be nil")
	} else if c.throttle.Margin < 0 {
		errors = append(errors, "safety margin must be non-negative")
	}
	if c.sleep == nil {
		errors = append(errors, "sleeper cannot be nil")
	}

	return errors
}

func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled && c.logger == nil {
		errors = append(errors, "logger must be set when debug is enabled")
	}

	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}
