package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email max@beispiel.de und telefon 0151 23456789"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
	if got := Value("Müller"); got != "Müller" {
		t.Fatalf("expected value untouched, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email max@beispiel.de, telefon +49 151 2345 6789, geboren 1990-01-01"
	got := Text(in)
	for _, want := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_DATE]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
	if strings.Contains(got, "beispiel") {
		t.Fatalf("email leaked: %q", got)
	}
}

func TestValueMasksRunes(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	if got := Value("Äpfel"); got != "Ä****" {
		t.Fatalf("unexpected mask %q", got)
	}
}
