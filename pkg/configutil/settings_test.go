package configutil

import (
	"strings"
	"testing"
	"time"
)

type sampleSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Smart    *bool  `mapstructure:"smart_format"`
	Timeout  int    `mapstructure:"timeout_ms"`
	Keywords []string
}

func TestDecodeNormalizesKeys(t *testing.T) {
	input := map[string]any{
		"API-Key":      "secret",
		"model":        "nova-2",
		"smart_format": "true",
		"timeoutMs":    "1500",
		"keywords":     []any{"ja", "richtig"},
	}
	var out sampleSettings
	err := Decode("vendors.stt.settings", input, Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "smart_format", "timeout_ms", "keywords"},
	}, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.APIKey != "secret" || out.Model != "nova-2" {
		t.Fatalf("unexpected decode result: %+v", out)
	}
	if !BoolValue(out.Smart, false) {
		t.Fatalf("expected smart_format true")
	}
	if out.Timeout != 1500 || len(out.Keywords) != 2 {
		t.Fatalf("unexpected weakly typed values: %+v", out)
	}
}

func TestDecodeReportsMissingAndUnknown(t *testing.T) {
	var out sampleSettings
	err := Decode("vendors.stt.settings", map[string]any{"region": "eu"}, Schema{
		Required: []string{"api_key"},
	}, &out)
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "vendors.stt.settings: ") {
		t.Fatalf("expected path prefix, got %q", msg)
	}
	if !strings.Contains(msg, "missing: api_key") || !strings.Contains(msg, "unknown: region") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestValidateSettingsEmptyRequired(t *testing.T) {
	err := ValidateSettings(map[string]any{"api_key": "  "}, Schema{Required: []string{"api_key"}})
	if err == nil || !strings.Contains(err.Error(), "missing: api_key") {
		t.Fatalf("expected blank value to count as missing, got %v", err)
	}
	if err := ValidateSettings(map[string]any{"extra": 1}, Schema{AllowUnknown: true}); err != nil {
		t.Fatalf("expected unknown keys allowed: %v", err)
	}
}

func TestOneOf(t *testing.T) {
	if err := OneOf("Mirror", "voice.mode", "off", "mirror", "always"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := OneOf("loud", "voice.mode", "off", "mirror", "always"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMillis(t *testing.T) {
	if got := Millis(0, time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := Millis(250, time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
}
