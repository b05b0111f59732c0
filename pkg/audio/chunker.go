package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
)

// ErrChunkingFailed is returned when any segment of a split fails.
var ErrChunkingFailed = errors.New("audio chunking failed")

// Chunk is one ordered piece of a split audio stream.
type Chunk struct {
	Index       int
	Data        []byte
	ContentType string
	Start       time.Duration
	Length      time.Duration
}

// Chunker splits audio into pieces that fit a transport's attachment limit.
type Chunker struct {
	codec   Codec
	profile Profile
	log     *slog.Logger
}

func NewChunker(codec Codec, profile Profile, log *slog.Logger) *Chunker {
	if profile.Format == FormatUnknown {
		profile = LowBitrate
	}
	return &Chunker{codec: codec, profile: profile, log: logging.NewComponentLogger(log, "audio_chunker")}
}

// Split returns data as a single chunk when it fits maxBytes. Otherwise it
// cuts the stream into ceil(len/maxBytes) segments of equal duration and
// re-encodes each with the chunker profile.
func (c *Chunker) Split(ctx context.Context, data []byte, format Format, maxBytes int) ([]Chunk, error) {
	if maxBytes <= 0 {
		return nil, chunkErr(fmt.Errorf("invalid size limit %d", maxBytes))
	}
	if len(data) == 0 {
		return nil, chunkErr(errors.New("empty payload"))
	}
	if len(data) <= maxBytes {
		length, _ := NativeDuration(data, format)
		return []Chunk{{Index: 0, Data: data, ContentType: format.ContentType(), Length: length}}, nil
	}

	n := (len(data) + maxBytes - 1) / maxBytes
	total, err := Duration(ctx, c.codec, data, format)
	if err != nil {
		return nil, chunkErr(fmt.Errorf("probe duration: %w", err))
	}
	if total <= 0 {
		return nil, chunkErr(errors.New("source has no duration"))
	}

	segment := total / time.Duration(n)
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, chunkErr(err)
		}
		start := time.Duration(i) * segment
		length := segment
		if i == n-1 {
			length = total - start
		}
		out, err := c.codec.Encode(ctx, data, format, c.profile, Clip{Start: start, Length: length})
		if err != nil {
			return nil, chunkErr(fmt.Errorf("segment %d/%d: %w", i+1, n, err))
		}
		if len(out) > maxBytes {
			c.log.Warn("audio_chunk_over_limit",
				slog.Int("index", i),
				slog.Int("bytes", len(out)),
				slog.Int("limit", maxBytes))
		}
		chunks = append(chunks, Chunk{
			Index:       i,
			Data:        out,
			ContentType: c.profile.Format.ContentType(),
			Start:       start,
			Length:      length,
		})
	}
	c.log.Debug("audio_split",
		slog.Int("source_bytes", len(data)),
		slog.Int("chunks", n),
		slog.Duration("duration", total))
	return chunks, nil
}

func chunkErr(cause error) error {
	return errorsx.Wrap(fmt.Errorf("%w: %v", ErrChunkingFailed, cause), errorsx.ReasonAudioChunking)
}
