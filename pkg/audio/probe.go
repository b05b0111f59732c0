package audio

import (
	"bytes"
	"context"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// NativeDuration measures WAV and MP3 streams without an external process.
func NativeDuration(data []byte, format Format) (time.Duration, bool) {
	switch format {
	case FormatWAV:
		info, err := ParseWAV(data)
		if err != nil {
			return 0, false
		}
		d := info.Duration()
		return d, d > 0
	case FormatMP3:
		dec, err := mp3.NewDecoder(bytes.NewReader(data))
		if err != nil || dec.SampleRate() <= 0 {
			return 0, false
		}
		// go-mp3 always decodes to 16 bit stereo: 4 bytes per frame.
		n := dec.Length()
		if n <= 0 {
			return 0, false
		}
		frames := n / 4
		return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate()), true
	}
	return 0, false
}

// Duration probes natively when possible and asks the codec otherwise.
func Duration(ctx context.Context, codec Codec, data []byte, format Format) (time.Duration, error) {
	if d, ok := NativeDuration(data, format); ok {
		return d, nil
	}
	return codec.Probe(ctx, data, format)
}
