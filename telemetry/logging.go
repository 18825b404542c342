package telemetry

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const corrKey ctxKey = "corr"

//WithCorrelation attaches a correlation id to the context.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

//NewCorrelation attaches a freshly generated correlation id to the context.
func NewCorrelation(ctx context.Context) context.Context {
	return WithCorrelation(ctx, uuid.NewString())
}

//GetCorrelation returns the context's correlation id, or "" if there is none.
func GetCorrelation(ctx context.Context) string {
	if v, ok := ctx.Value(corrKey).(string); ok {
		return v
	}
	return ""
}

//Logger returns a logrus entry carrying the context's correlation id.
func Logger(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if corr := GetCorrelation(ctx); corr != "" {
		entry = entry.WithField("correlation_id", corr)
	}
	return entry
}

//ConfigureLogging sets the global log level and output format ("json" or "text").
func ConfigureLogging(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, falling back to info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
