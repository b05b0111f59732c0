package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/sprachbot/pkg/adapters/stt"
)

type STTConfig struct {
	// Transcripts are returned in order; the last one repeats.
	Transcripts []string `mapstructure:"transcripts"`
	Err         error    `mapstructure:"-"`
}

type Transcriber struct {
	cfg   STTConfig
	mu    sync.Mutex
	calls int
	last  []byte
}

func NewSTT(cfg STTConfig) *Transcriber {
	if len(cfg.Transcripts) == 0 {
		cfg.Transcripts = []string{"mock transcript"}
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, locale string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = wav
	i := t.calls
	t.calls++
	if t.cfg.Err != nil {
		return "", t.cfg.Err
	}
	if i >= len(t.cfg.Transcripts) {
		i = len(t.cfg.Transcripts) - 1
	}
	return t.cfg.Transcripts[i], nil
}

// Calls returns how often Transcribe ran.
func (t *Transcriber) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// LastAudio returns the audio of the most recent call.
func (t *Transcriber) LastAudio() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

var _ stt.Transcriber = (*Transcriber)(nil)
