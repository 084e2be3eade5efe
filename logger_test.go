package harvest

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZerologLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
	logger.Warn("warn message", "count", 3)
	logger.Error("error message")

	out := buf.String()
	for _, want := range []string{
		`"level":"debug"`, `"key":"value"`, `"message":"debug message"`,
		`"level":"info"`, `"level":"warn"`, `"count":3`, `"level":"error"`,
		`"component":"harvest"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got:\n%s", want, out)
		}
	}
}

func TestClientDebugLogging(t *testing.T) {
	ts := newTestService(t, redirect, sequence(throttled("2"), respond(http.StatusOK, okBody)))

	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	client := newTestClient(t, ts, &recordingSleeper{},
		WithLogger(logger), WithDebug(), WithRequestIDGenerator(func() string { return "req-42" }))

	if _, err := client.Get(context.Background(), "/daily"); err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	out := buf.String()
	for _, want := range []string{"Starting request", "Falling back to other protocol", "Service throttled request", "Request succeeded", `"requestID":"req-42"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestNewRequestID(t *testing.T) {
	id1 := newRequestID()
	id2 := newRequestID()
	if len(id1) != 8 {
		t.Errorf("Expected 8-character request ID, got %q", id1)
	}
	if id1 == id2 {
		t.Error("Expected unique request IDs")
	}
}
