// Package logger builds the process logger and records session events to
// it.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/events"
)

// New builds a logger from the log section of the config file. An empty
// path logs to stderr.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logger: level %q: %w", cfg.Level, err)
		}
	}

	var zc zap.Config
	switch cfg.Format {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}
	zc.Level = level
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("logger: mkdir %s: %w", filepath.Dir(cfg.Path), err)
		}
		zc.OutputPaths = []string{cfg.Path}
		zc.ErrorOutputPaths = []string{cfg.Path}
	} else {
		zc.OutputPaths = []string{"stderr"}
		zc.ErrorOutputPaths = []string{"stderr"}
	}

	return zc.Build()
}

// EventLog writes one entry per session event.
type EventLog struct {
	logger *zap.Logger
}

var _ events.Sink = (*EventLog)(nil)

func NewEventLog(logger *zap.Logger) *EventLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLog{logger: logger.Named("session")}
}

func (l *EventLog) Publish(e events.Event) {
	fields := []zap.Field{zap.String("event", string(e.Type))}
	if e.Process != "" {
		fields = append(fields, zap.String("process", e.Process))
	}
	if e.Source != "" {
		fields = append(fields, zap.String("source", string(e.Source)))
	}
	if e.Location != nil {
		fields = append(fields,
			zap.Float64("lat", e.Location.Latitude),
			zap.Float64("lon", e.Location.Longitude),
			zap.Float64("accuracy_m", e.Location.Accuracy),
			zap.Time("fix_time", e.Location.Time))
	}
	if e.Granted != nil {
		fields = append(fields, zap.Bool("already_had", *e.Granted))
	}
	if e.Status != nil {
		fields = append(fields, zap.Int("status", *e.Status))
	}

	if e.Type == events.TypeFailed {
		l.logger.Warn("session failed", append(fields, zap.String("reason", e.Reason))...)
		return
	}
	l.logger.Info("session event", fields...)
}
