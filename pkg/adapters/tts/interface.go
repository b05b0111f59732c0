package tts

import (
	"context"
	"errors"
)

// ErrSynthesisFailed marks any failure of a Synthesizer.
var ErrSynthesisFailed = errors.New("speech synthesis failed")

// Synthesizer renders text as speech.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize returns a WAV stream for text spoken in locale with voice.
	// An empty voice selects the provider default.
	Synthesize(ctx context.Context, text, locale, voice string) ([]byte, error)
}
