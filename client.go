package harvest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dkobozev/harvest-cli/internal/backoff"
)

// MaxThrottleRetries is the number of consecutive 503 responses the pipeline
// waits out before giving up.
const MaxThrottleRetries = 3

// Fixed request headers.
const (
	headerAccept      = "application/json"
	headerContentType = "application/json; charset=utf-8"
)

// Client sends authenticated requests to one account of the service. It
// waits out throttling, falls back to the other protocol on redirects and
// surfaces everything else as an error. A Client is not safe for concurrent
// use: the active connection and the throttle counter belong to it.
type Client struct {
	credentials Credentials
	preference  TransportPreference
	conn        Connection
	transport   transportConfig

	throttle           *backoff.Throttle
	throttleCount      int
	maxThrottleRetries int
	sleep              Sleeper

	limiter    *rate.Limiter
	middleware []Middleware
	metrics    *MetricsCollector
	debug      *DebugConfig
	logger     Logger
	userAgent  string
	secure     bool
}

// New builds a Client for subdomain authenticated as identity/secret. HTTPS
// is preferred unless WithSecure(false) is given.
func New(subdomain, identity, secret string, options ...Option) (*Client, error) {
	creds, err := NewCredentials(identity, secret)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeValidation, Message: "invalid credentials", Cause: err, Timestamp: time.Now()}
	}

	client := &Client{
		credentials: creds,
		transport: transportConfig{
			subdomain: subdomain,
			ports:     map[Protocol]int{},
			timeout:   30 * time.Second,
		},
		throttle:           backoff.NewThrottle(),
		maxThrottleRetries: MaxThrottleRetries,
		sleep:              sleepContext,
		middleware:         []Middleware{},
		debug:              DefaultDebugConfig(),
		userAgent:          UserAgent(),
		secure:             true,
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		return nil, err
	}

	client.preference = NewTransportPreference(client.secure)
	proto, _ := client.preference.Current()
	client.conn = newConnection(proto, client.transport)

	return client, nil
}

// Connection returns a copy of the active connection.
func (c *Client) Connection() Connection {
	return c.conn
}

// Preference returns the protocols that have not been abandoned yet.
func (c *Client) Preference() []Protocol {
	return c.preference.Remaining()
}

// ThrottleCount returns the number of consecutive 503 responses seen so far.
func (c *Client) ThrottleCount() int {
	return c.throttleCount
}

// Get performs a GET of path.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Request(ctx, http.MethodGet, path, nil)
}

// Post performs a POST of body to path.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.Request(ctx, http.MethodPost, path, body)
}

// Put performs a PUT of body to path.
func (c *Client) Put(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.Request(ctx, http.MethodPut, path, body)
}

// Delete performs a DELETE of path.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.Request(ctx, http.MethodDelete, path, nil)
}

// Request sends method path with body until the service answers with a 2xx
// or the pipeline reaches a terminal failure, and returns the response body.
//
// A 503 is waited out (Retry-After plus a safety margin) at most
// MaxThrottleRetries times in a row. A 3xx abandons the current protocol and
// resends over the next one. Any other status is returned as *StatusError.
func (c *Client) Request(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	start := time.Now()
	endpoint := endpointFromPath(path)

	var requestID string
	if c.debugEnabled() && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	if !isSupportedMethod(method) {
		return nil, c.createClientError(ErrorTypeValidation, "unsupported method "+method, ErrInvalidMethod, requestID, method, path, 0, time.Since(start))
	}

	if c.debugEnabled() && c.debug.LogRequests {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "path", path, "protocol", c.conn.Protocol.String())
	}

	for attempt := 0; ; attempt++ {
		if c.preference.Len() == 0 {
			c.metrics.RecordError(ErrorTypeTransport, method, endpoint)
			return nil, c.createClientError(ErrorTypeTransport, "no protocol left to try", ErrNoTransport, requestID, method, path, attempt, time.Since(start))
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.createClientError(ErrorTypeNetwork, "rate limiter wait interrupted", err, requestID, method, path, attempt, time.Since(start))
			}
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, c.createClientError(ErrorTypeValidation, "cannot build request", err, requestID, method, path, attempt, time.Since(start))
		}

		resp, err := c.executeMiddleware(req)
		if err != nil {
			c.metrics.RecordError(ErrorTypeNetwork, method, endpoint)
			return nil, c.createClientError(ErrorTypeNetwork, "network request failed", err, requestID, method, req.URL.String(), attempt, time.Since(start))
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.metrics.RecordError(ErrorTypeNetwork, method, endpoint)
			return nil, c.createClientError(ErrorTypeNetwork, "reading response body failed", err, requestID, method, req.URL.String(), attempt, time.Since(start))
		}

		class := Classify(resp.StatusCode)
		c.metrics.RecordAttempt(method, endpoint, class)

		switch class {
		case ClassSuccess:
			c.throttleCount = 0
			c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))
			if c.debugEnabled() && c.debug.LogRequests {
				c.logger.Debug("Request succeeded", "requestID", requestID, "status", resp.StatusCode, "attempts", attempt+1, "duration", time.Since(start))
			}
			return respBody, nil

		case ClassThrottled:
			c.throttleCount++
			if c.throttleCount > c.maxThrottleRetries {
				c.throttleCount = 0
				c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))
				c.metrics.RecordError(ErrorTypeThrottle, method, endpoint)
				cerr := c.createClientError(ErrorTypeThrottle, fmt.Sprintf("service still unavailable after %d waits", c.maxThrottleRetries), ErrThrottleExhausted, requestID, method, req.URL.String(), attempt, time.Since(start))
				cerr.StatusCode = resp.StatusCode
				return nil, cerr
			}

			wait := c.throttle.Delay(resp.Header.Get("Retry-After"), c.throttleCount-1)
			c.metrics.RecordThrottle(endpoint, wait)
			if c.debugEnabled() && c.debug.LogThrottle {
				c.logger.Warn("Service throttled request", "requestID", requestID, "retryAfter", resp.Header.Get("Retry-After"), "wait", wait, "throttleCount", c.throttleCount)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return nil, c.createClientError(ErrorTypeNetwork, "throttle wait interrupted", err, requestID, method, req.URL.String(), attempt, time.Since(start))
			}

		case ClassRedirected:
			c.throttleCount = 0
			from := c.conn.Protocol
			if !c.preference.Pop() {
				c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))
				c.metrics.RecordError(ErrorTypeTransport, method, endpoint)
				if c.debugEnabled() && c.debug.LogFallback {
					c.logger.Error("Redirected with no protocol left", "requestID", requestID, "protocol", from.String(), "location", resp.Header.Get("Location"))
				}
				cerr := c.createClientError(ErrorTypeTransport, "redirected by "+from.String()+" with no protocol left", ErrNoTransport, requestID, method, req.URL.String(), attempt, time.Since(start))
				cerr.StatusCode = resp.StatusCode
				return nil, cerr
			}

			next, _ := c.preference.Current()
			c.conn.close()
			c.conn = newConnection(next, c.transport)
			c.metrics.RecordFallback(from, next)
			if c.debugEnabled() && c.debug.LogFallback {
				c.logger.Info("Falling back to other protocol", "requestID", requestID, "from", from.String(), "to", next.String(), "status", resp.StatusCode)
			}

		case ClassFailed:
			c.throttleCount = 0
			c.metrics.RecordRequest(method, endpoint, resp.StatusCode, time.Since(start))
			c.metrics.RecordError(ErrorTypeHTTP, method, endpoint)
			return nil, newStatusError(resp, respBody)
		}
	}
}

// newRequest builds the authenticated request for the active connection.
// Headers depend only on the credentials and the client configuration.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.conn.URL(path).String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", headerAccept)
	req.Header.Set("Content-Type", headerContentType)
	req.Header.Set("Authorization", c.credentials.AuthorizationHeader())
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.conn.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.conn.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

func (c *Client) debugEnabled() bool {
	return c.debug != nil && c.debug.Enabled && c.logger != nil
}

func (c *Client) createClientError(errorType, message string, cause error, requestID, method, url string, attempt int, duration time.Duration) *ClientError {
	return &ClientError{
		Type:      errorType,
		Message:   message,
		Cause:     cause,
		RequestID: requestID,
		Method:    method,
		URL:       url,
		Attempt:   attempt,
		Timestamp: time.Now(),
		Duration:  duration,
	}
}

func isSupportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func endpointFromPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}
