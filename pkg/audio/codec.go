package audio

import (
	"context"
	"time"
)

// Clip selects a time range of the source. A zero Length means "to the end".
type Clip struct {
	Start  time.Duration
	Length time.Duration
}

// Profile is an output encoding.
type Profile struct {
	Format      Format
	BitrateKbps int
	SampleRate  int
	Channels    int
}

// LowBitrate is the speech profile used for outgoing voice attachments.
var LowBitrate = Profile{Format: FormatMP3, BitrateKbps: 32, SampleRate: 22050, Channels: 1}

// Codec is the encode/decode/probe capability the pipeline relies on.
type Codec interface {
	// Decode converts data to canonical WAV (16 kHz, mono, 16 bit PCM).
	Decode(ctx context.Context, data []byte, from Format) ([]byte, error)
	// Encode converts the clip of data to the given profile.
	Encode(ctx context.Context, data []byte, from Format, to Profile, clip Clip) ([]byte, error)
	// Probe returns the playback duration of data.
	Probe(ctx context.Context, data []byte, format Format) (time.Duration, error)
}
