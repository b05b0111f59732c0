package stt

import (
	"context"
	"errors"
)

// ErrTranscriptionFailed marks any failure of a Transcriber.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Transcriber turns canonical WAV audio (16 kHz, mono, 16 bit PCM) into text.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe returns the recognized text for locale (e.g. "de-DE").
	// An empty string with a nil error means nothing was recognized.
	Transcribe(ctx context.Context, wav []byte, locale string) (string, error)
}
