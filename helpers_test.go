package harvest

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

const (
	testSubdomain = "acme"
	testIdentity  = "me@example.com"
	testSecret    = "s3cret"
)

// testService stands up one TLS and one plain server so that the client's
// two protocols hit different handlers.
type testService struct {
	secure *httptest.Server
	plain  *httptest.Server

	mu          sync.Mutex
	secureCalls int
	plainCalls  int
}

func newTestService(t *testing.T, secure, plain http.HandlerFunc) *testService {
	t.Helper()
	ts := &testService{}
	ts.secure = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.secureCalls++
		ts.mu.Unlock()
		secure(w, r)
	}))
	ts.plain = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.plainCalls++
		ts.mu.Unlock()
		plain(w, r)
	}))
	t.Cleanup(func() {
		ts.secure.Close()
		ts.plain.Close()
	})
	return ts
}

func (ts *testService) calls() (secure, plain int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.secureCalls, ts.plainCalls
}

func (ts *testService) options(t *testing.T) []Option {
	t.Helper()
	pool := x509.NewCertPool()
	pool.AddCert(ts.secure.Certificate())
	return []Option{
		WithHost("127.0.0.1"),
		WithPort(ProtocolHTTPS, serverPort(t, ts.secure)),
		WithPort(ProtocolHTTP, serverPort(t, ts.plain)),
		WithRootCAs(pool),
	}
}

func serverPort(t *testing.T, s *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return port
}

// recordingSleeper records requested waits instead of sleeping.
type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func newTestClient(t *testing.T, ts *testService, sleeper *recordingSleeper, opts ...Option) *Client {
	t.Helper()
	all := append(ts.options(t), WithSleeper(sleeper.sleep))
	all = append(all, opts...)
	client, err := New(testSubdomain, testIdentity, testSecret, all...)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return client
}

func notCalled(t *testing.T, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("%s server should not be called, got %s %s", name, r.Method, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	}
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// sequence answers with the given handlers in order and repeats the last one.
func sequence(handlers ...http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := handlers[i]
		if i < len(handlers)-1 {
			i++
		}
		mu.Unlock()
		h(w, r)
	}
}

func throttled(retryAfter string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}
}

func redirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "http://elsewhere.invalid"+r.URL.Path, http.StatusFound)
}
