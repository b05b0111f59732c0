package sprachbot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/sprachbot/pkg/validate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("SPRACHBOT_TEST_TOKEN", "secret-token")
	t.Setenv("SPRACHBOT_TEST_VOICE", "voice-42")
	path := writeConfig(t, `
transports:
  provider: twilio
  settings:
    auth_token: ${SPRACHBOT_TEST_TOKEN}
    from: whatsapp:+4930123456
vendors:
  tts:
    provider: elevenlabs
    settings:
      api_key: key
voice:
  voice_id: ${SPRACHBOT_TEST_VOICE}
speech:
  replacements:
    eMail: E-Mail
interview:
  fields:
    - name: Vorname
      rule: text
    - name: Postleitzahl
      rule: postal_code
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Locale != "de-DE" || cfg.Country != "DE" || cfg.Store.Provider != "memory" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.VoiceMode() != VoiceMirror || cfg.Engine.LaneQueueSize != 16 {
		t.Fatalf("unexpected voice/engine defaults: %+v %+v", cfg.Voice, cfg.Engine)
	}
	if got := cfg.Transports.Settings["auth_token"]; got != "secret-token" {
		t.Fatalf("settings not expanded: %v", got)
	}
	if cfg.Voice.VoiceID != "voice-42" {
		t.Fatalf("struct strings not expanded: %q", cfg.Voice.VoiceID)
	}
	if len(cfg.Interview.Fields) != 2 || cfg.Interview.Fields[1].Rule != validate.RulePostalCode {
		t.Fatalf("unexpected fields %+v", cfg.Interview.Fields)
	}
	if len(cfg.Interview.Keywords.Confirm) == 0 {
		t.Fatalf("keyword defaults missing")
	}
	if len(cfg.Speech.Replacements) != 1 {
		t.Fatalf("unexpected replacements %v", cfg.Speech.Replacements)
	}
	if p := cfg.VoiceProfile(); p.BitrateKbps != 32 || p.SampleRate != 22050 {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing transport", "log_level: debug\n", "transports.provider"},
		{"bad voice mode", "transports:\n  provider: console\nvoice:\n  mode: loud\n", "voice.mode"},
		{"voice without tts", "transports:\n  provider: console\nvoice:\n  mode: always\n", "vendors.tts.provider"},
		{"bad queue", "transports:\n  provider: console\nvoice:\n  mode: \"off\"\nengine:\n  lane_queue_size: 0\n", "lane_queue_size"},
	}
	for _, tc := range cases {
		_, err := LoadConfig(writeConfig(t, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error about %s, got %v", tc.name, tc.want, err)
		}
	}
}

func TestLoadConfigTextOnly(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "transports:\n  provider: console\nvoice:\n  mode: \"off\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VoiceMode() != VoiceOff {
		t.Fatalf("expected voice off, got %q", cfg.VoiceMode())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestProviderRegistry(t *testing.T) {
	reg := NewProviderRegistry()
	if s, err := reg.BuildSTT("", Config{}); err != nil || s != nil {
		t.Fatalf("empty provider must build nothing: %v %v", s, err)
	}
	_, err := reg.BuildSTT("whisper", Config{})
	if err == nil || !strings.Contains(err.Error(), "whisper") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
	if _, err := reg.BuildStore("", Config{}); err == nil {
		t.Fatalf("store is mandatory")
	}
}
