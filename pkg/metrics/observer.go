package metrics

import (
	"context"
	"log/slog"
	"time"
)

// Event names emitted by the bot.
const (
	EventInterviewStarted   = "interview_started"
	EventInterviewCompleted = "interview_completed"
	EventTurnProcessed      = "turn_processed"
	EventModeChanged        = "mode_changed"
	EventValidationFailed   = "validation_failed"
	EventFieldConfirmed     = "field_confirmed"
	EventFieldRejected      = "field_rejected"
	EventRecordPersisted    = "record_persisted"
	EventPersistFailed      = "record_persist_failed"
	EventTranscribed        = "transcribed"
	EventTranscriptionError = "transcription_failed"
	EventSynthesisError     = "synthesis_failed"
	EventAudioChunks        = "audio_chunks"
	EventNLUFallback        = "nlu_fallback"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, value float64, tags map[string]string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags}
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// LoggerObserver writes events as debug log lines.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), slog.LevelDebug, "metrics", attrs...)
}

// MultiObserver fans events out to several observers.
type MultiObserver struct {
	list []Observer
}

func NewMultiObserver(list ...Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}

// OrNoop returns obs, or a NoopObserver when obs is nil.
func OrNoop(obs Observer) Observer {
	if obs == nil {
		return NoopObserver{}
	}
	return obs
}
