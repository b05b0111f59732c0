package mock

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/tts"
	"github.com/harunnryd/sprachbot/pkg/audio"
)

type TTSConfig struct {
	// PerChar is the speech length produced per character of text.
	PerChar time.Duration `mapstructure:"per_char"`
	Err     error         `mapstructure:"-"`
}

// Synthesizer returns silent canonical WAV whose length follows the text.
type Synthesizer struct {
	cfg   TTSConfig
	mu    sync.Mutex
	texts []string
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.PerChar <= 0 {
		cfg.PerChar = 60 * time.Millisecond
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, locale, voice string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return nil, s.cfg.Err
	}
	d := time.Duration(len([]rune(text))) * s.cfg.PerChar
	samples := int(d * audio.CanonicalSampleRate / time.Second)
	return audio.EncodeWAV(make([]byte, samples*2), audio.CanonicalSampleRate, 1)
}

// Texts returns every text synthesized so far.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
