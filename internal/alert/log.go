package alert

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink writes each alert as one structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, alert Alert) error {
	keys := make([]string, 0, len(alert.Metadata))
	for key := range alert.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("component", alert.Component))
	for _, key := range keys {
		fields = append(fields, zap.String(key, alert.Metadata[key]))
	}

	s.logger.Log(levelFor(alert.Severity), alert.Message, fields...)
	return nil
}

func levelFor(severity Severity) zapcore.Level {
	switch severity {
	case SeverityInfo:
		return zapcore.InfoLevel
	case SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
