package errorsx

import (
	"errors"
	"testing"
)

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonSTTTranscribe)
	if Reason(err) != ReasonSTTTranscribe {
		t.Fatalf("expected reason %s, got %s", ReasonSTTTranscribe, Reason(err))
	}
	if !HasReason(err, ReasonSTTTranscribe) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonAudioUnsupported)
	second := Wrap(first, ReasonPersistence)
	if Reason(second) != ReasonAudioUnsupported {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

func TestWrapfKeepsSentinel(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := Wrapf(sentinel, ReasonMediaFetch, "fetch %s", "https://example.com/a.ogg")
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to find sentinel")
	}
	if err.Error() != "fetch https://example.com/a.ogg: sentinel" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Reason(err) != ReasonMediaFetch {
		t.Fatalf("expected media_fetch, got %s", Reason(err))
	}
	if Wrapf(nil, ReasonMediaFetch, "noop") != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestReasonUnknown(t *testing.T) {
	if Reason(nil) != ReasonUnknown {
		t.Fatalf("expected unknown for nil")
	}
	if Reason(assertErr{}) != ReasonUnknown {
		t.Fatalf("expected unknown for plain error")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestWrapfKeepsInnerReason(t *testing.T) {
	inner := Wrap(errors.New("429"), ReasonSTTRateLimit)
	err := Wrapf(inner, ReasonSTTTranscribe, "transcribe %d bytes", 3200)
	if !HasReason(err, ReasonSTTRateLimit) {
		t.Fatalf("expected provider reason kept, got %s", Reason(err))
	}
}
