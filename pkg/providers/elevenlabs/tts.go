package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/sprachbot/pkg/adapters/tts"
	"github.com/harunnryd/sprachbot/pkg/audio"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"

type Config struct {
	APIKey     string        `mapstructure:"api_key"`
	VoiceID    string        `mapstructure:"voice_id"`
	ModelID    string        `mapstructure:"model_id"`
	BaseURL    string        `mapstructure:"base_url"`
	Stability  float64       `mapstructure:"stability"`
	Similarity float64       `mapstructure:"similarity_boost"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// Synthesizer renders a full reply over the stream-input socket and returns
// it as a 16 kHz mono WAV.
type Synthesizer struct {
	cfg     Config
	dialer  websocket.Dialer
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

const (
	outputFormat = "pcm_16000"
	sampleRate   = 16000
)

func New(cfg Config) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("elevenlabs: api_key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.Similarity == 0 {
		cfg.Similarity = 0.8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	retry := resilience.NewRetryPolicy(cfg.MaxRetries, 250*time.Millisecond)
	retry.Retryable = func(err error) bool { return !resilience.IsRateLimit(err) }
	return &Synthesizer{
		cfg:     cfg,
		dialer:  websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second},
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		logger:  logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}, nil
}

func (s *Synthesizer) Name() string { return "elevenlabs_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, locale, voice string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", tts.ErrSynthesisFailed)
	}
	if voice == "" {
		voice = s.cfg.VoiceID
	}
	if voice == "" {
		return nil, errorsx.Wrap(fmt.Errorf("%w: no voice configured", tts.ErrSynthesisFailed), errorsx.ReasonTTSSynthesize)
	}
	var pcm []byte
	err := s.breaker.Call(func() error {
		return s.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			pcm, err = s.stream(ctx, text, locale, voice)
			return err
		})
	})
	if err != nil {
		reason := errorsx.ReasonTTSSynthesize
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			reason = errorsx.ReasonTTSCircuitOpen
		case resilience.IsRateLimit(err):
			reason = errorsx.ReasonTTSRateLimit
		case errorsx.HasReason(err, errorsx.ReasonTTSConnect):
			reason = errorsx.ReasonTTSConnect
		}
		s.logger.Error("synthesis_failed",
			slog.String("voice_id", voice),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(reason)))
		return nil, errorsx.Wrap(fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err), reason)
	}
	return audio.EncodeWAV(pcm, sampleRate, 1)
}

func (s *Synthesizer) stream(ctx context.Context, text, locale, voice string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	u, err := s.buildURL(voice, locale)
	if err != nil {
		return nil, err
	}
	conn, resp, err := s.dialer.DialContext(ctx, u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonTTSConnect)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.logger.Debug("connected to ElevenLabs", slog.String("voice_id", voice), slog.Int("chars", len(text)))

	messages := []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        s.cfg.Stability,
				"similarity_boost": s.cfg.Similarity,
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			return nil, err
		}
	}

	var pcm []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(pcm) > 0 {
				return pcm, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		chunk, final, err := decodeMessage(data)
		if err != nil {
			return nil, err
		}
		pcm = append(pcm, chunk...)
		if final {
			break
		}
	}
	if len(pcm) == 0 {
		return nil, errors.New("elevenlabs: no audio received")
	}
	s.logger.Debug("tts audio received", slog.Int("size_bytes", len(pcm)))
	return pcm, nil
}

type streamMessage struct {
	Audio       *string `json:"audio"`
	AudioBase64 *string `json:"audio_base_64"`
	IsFinal     *bool   `json:"isFinal"`
	Error       string  `json:"error"`
	Message     string  `json:"message"`
}

// decodeMessage extracts audio and the final marker from one socket message.
func decodeMessage(data []byte) ([]byte, bool, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false, fmt.Errorf("elevenlabs: decode message: %w", err)
	}
	if msg.Error != "" {
		return nil, false, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
	}
	final := msg.IsFinal != nil && *msg.IsFinal
	encoded := ""
	switch {
	case msg.Audio != nil:
		encoded = *msg.Audio
	case msg.AudioBase64 != nil:
		encoded = *msg.AudioBase64
	}
	if encoded == "" {
		return nil, final, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("elevenlabs: audio decode: %w", err)
	}
	return raw, final, nil
}

func (s *Synthesizer) buildURL(voice, locale string) (string, error) {
	base, err := url.Parse(strings.TrimRight(s.cfg.BaseURL, "/") + "/" + url.PathEscape(voice) + "/stream-input")
	if err != nil {
		return "", err
	}
	q := base.Query()
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", outputFormat)
	if lang, _, _ := strings.Cut(locale, "-"); lang != "" {
		q.Set("language_code", strings.ToLower(lang))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
