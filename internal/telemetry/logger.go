// Package telemetry provides the logrus-based structured logger used by the
// reconfigure coordinator and the engine pool. Adapted from the teacher
// repository's infrastructure/logging package; trimmed to the fields this
// module's ambient-timescale paths actually need (the cycle thread itself
// uses zap, see ethercat/engine/cycle.go, because it must not allocate per cycle).
package telemetry

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried through reconfigure/pool calls.
type ContextKey string

const (
	// InterfaceKey is the context key for the fieldbus interface name.
	InterfaceKey ContextKey = "interface"
	// GenerationKey is the context key for the config generation under discussion.
	GenerationKey ContextKey = "config_gen"
	// ReconfigureIDKey is the context key for a single reconfigure attempt's
	// correlation ID. Unlike the config generation counter, which resets per
	// engine and is meaningless once aggregated across interfaces or process
	// restarts, this ID is globally unique and lets log aggregation join a
	// reconfigure's start and result lines across that boundary.
	ReconfigureIDKey ContextKey = "reconfigure_id"
)

// Logger wraps logrus.Logger with engine-scoped fields.
type Logger struct {
	*logrus.Logger
	component string
}

// New creates a new Logger instance for the given component name.
func New(component, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, component: component}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT environment
// variables, defaulting to "info" and "json" when unset.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, level, format)
}

// WithContext creates a logger entry carrying interface/generation fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("component", l.component)
	if iface := ctx.Value(InterfaceKey); iface != nil {
		entry = entry.WithField("interface", iface)
	}
	if gen := ctx.Value(GenerationKey); gen != nil {
		entry = entry.WithField("config_gen", gen)
	}
	if id := ctx.Value(ReconfigureIDKey); id != nil {
		entry = entry.WithField("reconfigure_id", id)
	}
	return entry
}

// WithFields creates a logger entry with custom fields plus the component tag.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["component"] = l.component
	return l.Logger.WithFields(fields)
}

// WithError creates a logger entry annotated with an error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"component": l.component,
		"error":     err.Error(),
	})
}

// WithInterface adds the interface name to the context for downstream logging.
func WithInterface(ctx context.Context, iface string) context.Context {
	return context.WithValue(ctx, InterfaceKey, iface)
}

// WithGeneration adds the config generation to the context for downstream logging.
func WithGeneration(ctx context.Context, gen uint64) context.Context {
	return context.WithValue(ctx, GenerationKey, gen)
}

// WithNewReconfigureID mints a fresh correlation ID and attaches it to ctx,
// for tagging one reconfigure attempt's start/result log lines.
func WithNewReconfigureID(ctx context.Context) context.Context {
	return context.WithValue(ctx, ReconfigureIDKey, uuid.NewString())
}

// LogReconfigureStart logs the beginning of a reconfigure cycle.
func (l *Logger) LogReconfigureStart(ctx context.Context, readerCount, writerCount int) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"readers": readerCount,
		"writers": writerCount,
	}).Info("reconfigure starting")
}

// LogReconfigureResult logs the outcome of a reconfigure attempt.
func (l *Logger) LogReconfigureResult(ctx context.Context, attempts int, d time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"attempts":    attempts,
		"duration_ms": d.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("reconfigure failed")
		return
	}
	entry.Info("reconfigure complete")
}

// LogPoolEviction logs the janitor evicting an idle engine.
func (l *Logger) LogPoolEviction(ctx context.Context, key string, idleFor time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"key":      key,
		"idle_for": idleFor.String(),
	}).Info("pool evicted idle engine")
}
