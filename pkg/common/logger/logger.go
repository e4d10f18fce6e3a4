package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Log is the process-wide logger. It is usable before Init so that library
// code and tests never log through a nil pointer.
var Log = newLogger(os.Stdout, logrus.InfoLevel)

func Init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log = newLogger(os.Stdout, logLevel)
}

// SetOutput redirects the logger, mostly useful to silence tests.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
	})
	l.SetLevel(level)
	return l
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

// WithRequest tags an entry with the correlation id propagated by the
// gateway middleware.
func WithRequest(requestID string) *logrus.Entry {
	return Log.WithField("request_id", requestID)
}

type requestIDKey struct{}

// ContextWithRequestID stores the correlation id so outbound calls and log
// entries further down the stack can reuse it.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// FromContext returns an entry tagged with the request id carried by ctx, if
// any.
func FromContext(ctx context.Context) *logrus.Entry {
	if id := RequestIDFromContext(ctx); id != "" {
		return WithRequest(id)
	}
	return logrus.NewEntry(Log)
}
