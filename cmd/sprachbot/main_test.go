package main

import (
	"strings"
	"testing"

	"github.com/harunnryd/sprachbot/pkg/sprachbot"
)

func TestBuildTransport(t *testing.T) {
	cfg := sprachbot.DefaultConfig()
	cfg.Transports.Provider = "Mock"
	tr, err := buildTransport(cfg)
	if err != nil || tr.Name() != "mock" {
		t.Fatalf("expected mock transport, got %v %v", tr, err)
	}

	cfg.Transports.Provider = "twilio"
	cfg.Transports.Settings = map[string]any{"account_sid": "AC1", "auth_token": "t"}
	if _, err := buildTransport(cfg); err == nil || !strings.Contains(err.Error(), "from") {
		t.Fatalf("expected missing from error, got %v", err)
	}

	cfg.Transports.Provider = "webchat"
	cfg.Transports.Settings = map[string]any{"path": "/chat", "colour": "blue"}
	if _, err := buildTransport(cfg); err == nil || !strings.Contains(err.Error(), "colour") {
		t.Fatalf("expected unknown key error, got %v", err)
	}

	cfg.Transports.Provider = "telegram"
	if _, err := buildTransport(cfg); err == nil {
		t.Fatalf("expected unsupported transport")
	}
}

func TestRegisterProviders(t *testing.T) {
	reg := sprachbot.NewProviderRegistry()
	registerProviders(reg)
	cfg := sprachbot.DefaultConfig()

	cfg.Vendors.STT.Settings = map[string]any{"model": "nova-2"}
	if _, err := reg.BuildSTT("deepgram", cfg); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected missing api_key, got %v", err)
	}

	cfg.Vendors.STT.Settings = map[string]any{"transcripts": []any{"Max"}}
	s, err := reg.BuildSTT("mock", cfg)
	if err != nil || s.Name() != "mock_stt" {
		t.Fatalf("mock stt: %v %v", s, err)
	}

	cfg.Vendors.TTS.Settings = map[string]any{"api_key": "k"}
	if _, err := reg.BuildTTS("elevenlabs", cfg); err == nil || !strings.Contains(err.Error(), "voice_id") {
		t.Fatalf("expected missing voice id, got %v", err)
	}
	cfg.Voice.VoiceID = "v1"
	if synth, err := reg.BuildTTS("elevenlabs", cfg); err != nil || synth == nil {
		t.Fatalf("elevenlabs: %v", err)
	}

	n, err := reg.BuildNLU("keyword", cfg)
	if err != nil || n.Name() != "keyword" {
		t.Fatalf("keyword nlu: %v %v", n, err)
	}
	if _, err := reg.BuildStore("memory", cfg); err != nil {
		t.Fatalf("memory store: %v", err)
	}
	cfg.Store.Settings = map[string]any{"url": "https://example.supabase.co"}
	if _, err := reg.BuildStore("supabase", cfg); err == nil || !strings.Contains(err.Error(), "key") {
		t.Fatalf("expected missing key, got %v", err)
	}
}
