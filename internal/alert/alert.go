package alert

import (
	"context"
	"errors"
)

// Severity of an alert.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Alert kinds, carried in metadata under "kind".
const (
	KindUtilization    = "utilization_exceeded"
	KindUnknownRelayer = "unknown_relayer"
)

// Alert is a structured alert record.
type Alert struct {
	Severity  Severity          `json:"severity"`
	Component string            `json:"component"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata"`
}

// Kind returns the alert kind from metadata.
func (a Alert) Kind() string {
	return a.Metadata["kind"]
}

// Sink delivers alerts.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// MultiSink fans an alert out to every sink. All sinks are tried; failures
// are joined.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
