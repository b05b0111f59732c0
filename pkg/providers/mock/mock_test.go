package mock

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/audio"
)

func TestSTTReturnsTranscriptsInOrder(t *testing.T) {
	s := NewSTT(STTConfig{Transcripts: []string{"Anna", "ja"}})
	for _, want := range []string{"Anna", "ja", "ja"} {
		got, err := s.Transcribe(context.Background(), nil, "de-DE")
		if err != nil || got != want {
			t.Fatalf("expected %q, got %q (%v)", want, got, err)
		}
	}
	if s.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", s.Calls())
	}
}

func TestTTSProducesCanonicalWAV(t *testing.T) {
	s := NewTTS(TTSConfig{PerChar: 10 * time.Millisecond})
	wav, err := s.Synthesize(context.Background(), "Hallo", "de-DE", "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	info, err := audio.ParseWAV(wav)
	if err != nil || !info.Canonical() {
		t.Fatalf("expected canonical wav, got %+v %v", info, err)
	}
	if info.Duration() != 50*time.Millisecond {
		t.Fatalf("expected 50ms, got %s", info.Duration())
	}
	if texts := s.Texts(); len(texts) != 1 || texts[0] != "Hallo" {
		t.Fatalf("unexpected texts %v", texts)
	}
}

func TestNLULookup(t *testing.T) {
	r := NewNLU(NLUConfig{Results: map[string]nlu.Result{
		"Ja": {TopIntent: nlu.IntentConfirmation, Entities: []nlu.Entity{{Category: nlu.EntityConfirm, Text: "ja"}}},
	}})
	res, _ := r.Recognize(context.Background(), " ja ", "de-DE")
	if !res.Has(nlu.EntityConfirm) {
		t.Fatalf("expected confirm, got %+v", res)
	}
	res, _ = r.Recognize(context.Background(), "Berlin", "de-DE")
	if res.TopIntent != nlu.IntentEnterInformation {
		t.Fatalf("expected default intent, got %+v", res)
	}
}
