package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/stt"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/resilience"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	SmartFormat *bool         `mapstructure:"smart_format"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// transcribeFunc sends one recording and returns the raw response.
type transcribeFunc func(ctx context.Context, src io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (any, error)

// Transcriber uses the pre-recorded listen API; one request per voice message.
type Transcriber struct {
	cfg     Config
	call    transcribeFunc
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func New(cfg Config) (*Transcriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("deepgram: api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	dg := api.New(client.NewREST(cfg.APIKey, &interfaces.ClientOptions{}))
	call := func(ctx context.Context, src io.Reader, opts *interfaces.PreRecordedTranscriptionOptions) (any, error) {
		return dg.FromStream(ctx, src, opts)
	}
	return newTranscriber(cfg, call), nil
}

func newTranscriber(cfg Config, call transcribeFunc) *Transcriber {
	retry := resilience.NewRetryPolicy(cfg.MaxRetries, cfg.Backoff)
	if cfg.MaxRetries == 0 {
		retry.MaxRetries = 2
	}
	retry.Retryable = func(err error) bool { return !resilience.IsRateLimit(err) }
	return &Transcriber{
		cfg:     cfg,
		call:    call,
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		logger:  logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (t *Transcriber) Name() string { return "deepgram_prerecorded" }

func (t *Transcriber) Transcribe(ctx context.Context, wav []byte, locale string) (string, error) {
	opts := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    locale,
		SmartFormat: t.cfg.SmartFormat == nil || *t.cfg.SmartFormat,
		Punctuate:   true,
	}
	start := time.Now()
	var transcript string
	err := t.breaker.Call(func() error {
		return t.retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
			defer cancel()
			res, err := t.call(callCtx, bytes.NewReader(wav), opts)
			if err != nil {
				if isRateLimited(err) {
					return resilience.RateLimitError{Provider: "deepgram", Message: err.Error()}
				}
				return err
			}
			transcript, err = transcriptOf(res)
			return err
		})
	})
	if err != nil {
		reason := errorsx.ReasonSTTTranscribe
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			reason = errorsx.ReasonSTTCircuitOpen
		case resilience.IsRateLimit(err):
			reason = errorsx.ReasonSTTRateLimit
		}
		t.logger.Error("transcription_failed",
			slog.String("error", err.Error()),
			slog.String("reason_code", string(reason)),
			slog.Int("bytes", len(wav)))
		return "", errorsx.Wrap(fmt.Errorf("%w: %w", stt.ErrTranscriptionFailed, err), reason)
	}
	t.logger.Debug("transcribed",
		slog.Int("bytes", len(wav)),
		slog.Int("chars", len(transcript)),
		slog.Duration("latency", time.Since(start)))
	return transcript, nil
}

type prerecordedResponse struct {
	Results *struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// transcriptOf reads the best alternative of the first channel through the
// JSON shape of the response.
func transcriptOf(res any) (string, error) {
	if res == nil {
		return "", errors.New("deepgram: empty response")
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	var parsed prerecordedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if parsed.Results == nil || len(parsed.Results.Channels) == 0 {
		return "", errors.New("deepgram: response has no channels")
	}
	alts := parsed.Results.Channels[0].Alternatives
	if len(alts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(alts[0].Transcript), nil
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "too many requests")
}

var _ stt.Transcriber = (*Transcriber)(nil)
