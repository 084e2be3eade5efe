package harvest

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Error types carried in ClientError.Type.
const (
	ErrorTypeNetwork    = "Network"
	ErrorTypeThrottle   = "ThrottleExhausted"
	ErrorTypeTransport  = "TransportExhausted"
	ErrorTypeHTTP       = "HTTP"
	ErrorTypeValidation = "Validation"
	ErrorTypeDecode     = "Decode"
)

// Sentinel errors for the terminal states of the pipeline.
var (
	// ErrThrottleExhausted is returned after more than MaxThrottleRetries
	// consecutive 503 responses.
	ErrThrottleExhausted = errors.New("harvest: throttle retries exhausted")

	// ErrNoTransport is returned when a redirect arrives and no protocol is
	// left to fall back to.
	ErrNoTransport = errors.New("harvest: no transport protocol left")

	// ErrInvalidMethod is returned for verbs other than GET, POST, PUT, DELETE.
	ErrInvalidMethod = errors.New("harvest: unsupported method")

	// ErrInvalidCredentials is returned for identities or secrets that cannot
	// form a Basic credential.
	ErrInvalidCredentials = errors.New("harvest: invalid credentials")
)

// IsTransient reports whether err is a failure that may succeed if the whole
// operation is attempted again later.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrThrottleExhausted) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeThrottle:
			return true
		}
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return false
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d)", msg, e.Attempt)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Type: %s\n", e.Type)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", e.Method)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, "Attempt: %d\n", e.Attempt)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}

// StatusError is returned for any response that is neither a success, a
// throttle nor a redirect. It keeps everything the server sent back.
type StatusError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Method     string
	URL        string
}

func newStatusError(resp *http.Response, body []byte) *StatusError {
	se := &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
	if resp.Request != nil {
		se.Method = resp.Request.Method
		if resp.Request.URL != nil {
			se.URL = resp.Request.URL.String()
		}
	}
	return se
}

// Error renders the status line, every header with its name upper-cased, and
// the body verbatim.
func (e *StatusError) Error() string {
	var b strings.Builder
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	fmt.Fprintf(&b, "HTTP %s", status)
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Method, e.URL)
	}
	b.WriteByte('\n')

	names := make([]string, 0, len(e.Header))
	for name := range e.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(name), strings.Join(e.Header[name], ", "))
	}

	b.WriteByte('\n')
	b.Write(e.Body)
	return b.String()
}
