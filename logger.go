package harvest

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger receives pipeline events as a message plus key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps l, tagging every event with component=harvest.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: l.With().Str("component", "harvest").Logger()}
}

func (z *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (z *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	z.log.Info().Fields(keysAndValues).Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (z *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	z.log.Error().Fields(keysAndValues).Msg(msg)
}

// newRequestID returns the first 8 characters of a UUID; enough to tell
// attempts of one CLI invocation apart.
func newRequestID() string {
	return uuid.New().String()[:8]
}
