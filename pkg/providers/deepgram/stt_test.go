package deepgram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/stt"
	"github.com/harunnryd/sprachbot/pkg/errorsx"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
)

func response(transcript string) map[string]any {
	return map[string]any{
		"results": map[string]any{
			"channels": []any{
				map[string]any{"alternatives": []any{
					map[string]any{"transcript": transcript, "confidence": 0.93},
				}},
			},
		},
	}
}

func TestTranscribeReturnsFirstAlternative(t *testing.T) {
	var gotLang string
	var gotBytes int
	tr := newTranscriber(Config{Model: "nova-2", Timeout: time.Second}, func(ctx context.Context, src io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (any, error) {
		gotLang = opts.Language
		b, _ := io.ReadAll(src)
		gotBytes = len(b)
		return response(" Ich heiße Anna "), nil
	})
	text, err := tr.Transcribe(context.Background(), make([]byte, 64), "de-DE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Ich heiße Anna" {
		t.Fatalf("unexpected transcript %q", text)
	}
	if gotLang != "de-DE" || gotBytes != 64 {
		t.Fatalf("unexpected request lang=%q bytes=%d", gotLang, gotBytes)
	}
}

func TestTranscribeRetriesTransientErrors(t *testing.T) {
	calls := 0
	tr := newTranscriber(Config{MaxRetries: 2, Backoff: time.Millisecond, Timeout: time.Second}, func(ctx context.Context, src io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (any, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("connection reset")
		}
		return response("ja"), nil
	})
	text, err := tr.Transcribe(context.Background(), nil, "de-DE")
	if err != nil || text != "ja" {
		t.Fatalf("expected retry to succeed, got %q %v", text, err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestTranscribeRateLimitIsNotRetried(t *testing.T) {
	calls := 0
	tr := newTranscriber(Config{MaxRetries: 3, Backoff: time.Millisecond, Timeout: time.Second}, func(ctx context.Context, src io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (any, error) {
		calls++
		return nil, errors.New("status 429 Too Many Requests")
	})
	_, err := tr.Transcribe(context.Background(), nil, "de-DE")
	if !errors.Is(err, stt.ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
	if errorsx.Reason(err) != errorsx.ReasonSTTRateLimit {
		t.Fatalf("expected rate limit reason, got %s", errorsx.Reason(err))
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestTranscriptOfEmptyChannels(t *testing.T) {
	if _, err := transcriptOf(map[string]any{"results": map[string]any{}}); err == nil {
		t.Fatalf("expected error for missing channels")
	}
	text, err := transcriptOf(map[string]any{"results": map[string]any{"channels": []any{map[string]any{}}}})
	if err != nil || text != "" {
		t.Fatalf("expected empty transcript, got %q %v", text, err)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
