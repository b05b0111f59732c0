package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
)

// ErrUnsupportedFormat is returned when audio cannot be brought into the canonical format.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Normalizer converts arbitrary user audio to canonical WAV.
type Normalizer struct {
	codec Codec
	log   *slog.Logger
}

func NewNormalizer(codec Codec, log *slog.Logger) *Normalizer {
	return &Normalizer{codec: codec, log: logging.NewComponentLogger(log, "audio_normalizer")}
}

// Normalize returns data unchanged when it already is canonical WAV and a
// decoded copy otherwise.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, contentType string) ([]byte, error) {
	if len(data) == 0 {
		return nil, unsupported(errors.New("empty payload"))
	}
	if IsCanonical(data) {
		return data, nil
	}
	format := Detect(data, contentType)
	out, err := n.codec.Decode(ctx, data, format)
	if err != nil {
		n.log.Warn("audio_decode_failed",
			slog.String("format", string(format)),
			slog.String("content_type", contentType),
			slog.String("error", err.Error()))
		return nil, unsupported(err)
	}
	info, err := ParseWAV(out)
	if err != nil {
		return nil, unsupported(err)
	}
	if !info.Canonical() {
		return nil, unsupported(fmt.Errorf("decoded stream is %d Hz, %d ch, %d bit",
			info.SampleRate, info.Channels, info.BitsPerSample))
	}
	n.log.Debug("audio_normalized",
		slog.String("format", string(format)),
		slog.Int("in_bytes", len(data)),
		slog.Int("out_bytes", len(out)),
		slog.Duration("duration", info.Duration()))
	return out, nil
}

func unsupported(cause error) error {
	return errorsx.Wrap(fmt.Errorf("%w: %v", ErrUnsupportedFormat, cause), errorsx.ReasonAudioUnsupported)
}
