package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/sprachbot/pkg/adapters/tts"
	"github.com/harunnryd/sprachbot/pkg/audio"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSynthesizeCollectsAudio(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotKey, gotQuery, gotPath string
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("xi-api-key")
		gotQuery = r.URL.RawQuery
		gotPath = r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 3; i++ {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if i == 1 {
				gotText, _ = msg["text"].(string)
			}
		}
		pcm := make([]byte, 320)
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(pcm)})
		_ = conn.WriteJSON(map[string]any{"audio": base64.StdEncoding.EncodeToString(pcm)})
		_ = conn.WriteJSON(map[string]any{"isFinal": true})
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "secret", VoiceID: "voice-1", BaseURL: wsURL(srv), Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	wav, err := s.Synthesize(context.Background(), "Guten Tag", "de-DE", "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotPath != "/voice-1/stream-input" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "output_format=pcm_16000") || !strings.Contains(gotQuery, "language_code=de") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotText != "Guten Tag " {
		t.Fatalf("unexpected text message %q", gotText)
	}
	info, err := audio.ParseWAV(wav)
	if err != nil {
		t.Fatalf("parse wav: %v", err)
	}
	if !info.Canonical() || info.DataSize != 640 {
		t.Fatalf("unexpected wav %+v", info)
	}
}

func TestSynthesizeRateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, _ := New(Config{APIKey: "k", VoiceID: "v", BaseURL: wsURL(srv), MaxRetries: 2, Timeout: time.Second})
	_, err := s.Synthesize(context.Background(), "Hallo", "de-DE", "")
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}
	if errorsx.Reason(err) != errorsx.ReasonTTSRateLimit {
		t.Fatalf("expected rate limit reason, got %s", errorsx.Reason(err))
	}
	if calls.Load() != 1 {
		t.Fatalf("rate limits must not be retried, got %d calls", calls.Load())
	}
}

func TestSynthesizeRequiresVoice(t *testing.T) {
	s, _ := New(Config{APIKey: "k"})
	if _, err := s.Synthesize(context.Background(), "Hallo", "de-DE", ""); !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}
}

func TestDecodeMessage(t *testing.T) {
	raw, final, err := decodeMessage([]byte(`{"audio_base_64":"AAE=","isFinal":false}`))
	if err != nil || final || len(raw) != 2 {
		t.Fatalf("unexpected decode %v %v %v", raw, final, err)
	}
	if _, _, err := decodeMessage([]byte(`{"error":"quota_exceeded","message":"no credits"}`)); err == nil {
		t.Fatalf("expected provider error")
	}
	if _, final, _ := decodeMessage([]byte(`{"audio":null,"isFinal":true}`)); !final {
		t.Fatalf("expected final marker")
	}
}
