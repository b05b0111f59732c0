package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type fakeCodec struct {
	mu        sync.Mutex
	decodeOut []byte
	decodeErr error
	duration  time.Duration
	failAt    int
	clips     []Clip
	decodes   int
}

func (f *fakeCodec) Decode(_ context.Context, _ []byte, _ Format) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decodes++
	return f.decodeOut, f.decodeErr
}

func (f *fakeCodec) Encode(_ context.Context, _ []byte, _ Format, _ Profile, clip Clip) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, clip)
	if f.failAt > 0 && len(f.clips) == f.failAt {
		return nil, errors.New("encoder crashed")
	}
	return bytes.Repeat([]byte{0xAB}, int(clip.Length/time.Millisecond)), nil
}

func (f *fakeCodec) Probe(_ context.Context, _ []byte, _ Format) (time.Duration, error) {
	if f.duration == 0 {
		return 0, errors.New("no duration")
	}
	return f.duration, nil
}

func sineWAV(t *testing.T, rate, channels int, d time.Duration) []byte {
	t.Helper()
	frames := int(d.Seconds() * float64(rate))
	pcm := make([]byte, 0, frames*channels*2)
	for i := 0; i < frames; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
		}
	}
	out, err := EncodeWAV(pcm, rate, channels)
	if err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	return out
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		ct   string
		want Format
	}{
		{"riff", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), "", FormatWAV},
		{"id3", []byte("ID3\x04\x00"), "", FormatMP3},
		{"mp3 sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "", FormatMP3},
		{"adts", []byte{0xFF, 0xF1, 0x50, 0x80}, "", FormatAAC},
		{"ogg", []byte("OggS\x00\x02"), "", FormatOGG},
		{"flac", []byte("fLaC\x00"), "", FormatFLAC},
		{"mp4", []byte("\x00\x00\x00\x20ftypM4A "), "", FormatMP4},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, "", FormatWebM},
		{"amr", []byte("#!AMR\n"), "", FormatAMR},
		{"content type fallback", []byte("????"), "audio/ogg; codecs=opus", FormatOGG},
		{"unknown", []byte("hello"), "text/plain", FormatUnknown},
	}
	for _, tc := range cases {
		if got := Detect(tc.data, tc.ct); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
	if !IsAudioContentType("audio/x-m4a") || IsAudioContentType("image/png") {
		t.Fatalf("unexpected IsAudioContentType result")
	}
}

func TestParseWAVSkipsExtraChunks(t *testing.T) {
	src := sineWAV(t, CanonicalSampleRate, 1, 500*time.Millisecond)
	// Insert a LIST chunk between fmt and data, as ffmpeg does.
	list := append([]byte("LIST"), 0x05, 0, 0, 0)
	list = append(list, []byte("INFOx")...)
	list = append(list, 0) // pad byte for odd size
	withList := append([]byte{}, src[:36]...)
	withList = append(withList, list...)
	withList = append(withList, src[36:]...)

	info, err := ParseWAV(withList)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !info.Canonical() {
		t.Fatalf("expected canonical, got %+v", info)
	}
	if info.Duration() != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %v", info.Duration())
	}
	if _, err := ParseWAV([]byte("not a wav file")); err == nil {
		t.Fatalf("expected error for non wav")
	}
}

func TestIsCanonical(t *testing.T) {
	if !IsCanonical(sineWAV(t, 16000, 1, 100*time.Millisecond)) {
		t.Fatalf("16k mono should be canonical")
	}
	if IsCanonical(sineWAV(t, 8000, 1, 100*time.Millisecond)) {
		t.Fatalf("8k should not be canonical")
	}
	if IsCanonical(sineWAV(t, 16000, 2, 100*time.Millisecond)) {
		t.Fatalf("stereo should not be canonical")
	}
}

func TestNormalizePassThrough(t *testing.T) {
	codec := &fakeCodec{}
	n := NewNormalizer(codec, nil)
	in := sineWAV(t, CanonicalSampleRate, 1, 200*time.Millisecond)
	out, err := n.Normalize(context.Background(), in, "audio/wav")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("canonical input must be returned unchanged")
	}
	if codec.decodes != 0 {
		t.Fatalf("codec must not be called for canonical input")
	}
}

func TestNormalizeDecodes(t *testing.T) {
	canonical := sineWAV(t, CanonicalSampleRate, 1, 200*time.Millisecond)
	codec := &fakeCodec{decodeOut: canonical}
	n := NewNormalizer(codec, nil)
	out, err := n.Normalize(context.Background(), []byte("OggS-some-opus"), "audio/ogg")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !bytes.Equal(out, canonical) || codec.decodes != 1 {
		t.Fatalf("expected decoded output")
	}
}

func TestNormalizeFailures(t *testing.T) {
	cases := map[string]*fakeCodec{
		"decode error":      {decodeErr: errors.New("invalid data found when processing input")},
		"wrong rate output": {decodeOut: sineWAV(t, 8000, 1, 100*time.Millisecond)},
		"garbage output":    {decodeOut: []byte("nope")},
	}
	for name, codec := range cases {
		_, err := NewNormalizer(codec, nil).Normalize(context.Background(), []byte("\x00\x01\x02"), "")
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
	if _, err := NewNormalizer(&fakeCodec{}, nil).Normalize(context.Background(), nil, ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("empty input: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSplitSingleChunk(t *testing.T) {
	codec := &fakeCodec{}
	c := NewChunker(codec, LowBitrate, nil)
	in := []byte("OggS small payload")
	chunks, err := c.Split(context.Background(), in, FormatOGG, len(in))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 1 || !bytes.Equal(chunks[0].Data, in) {
		t.Fatalf("expected single identical chunk, got %d", len(chunks))
	}
	if chunks[0].ContentType != "audio/ogg" {
		t.Fatalf("unexpected content type %q", chunks[0].ContentType)
	}
	if len(codec.clips) != 0 {
		t.Fatalf("codec must not be called for small input")
	}
}

func TestSplitProportionalSegments(t *testing.T) {
	cases := []struct {
		size, max, want int
		total          time.Duration
	}{
		{2500, 1000, 3, 10 * time.Second},
		{3000, 1000, 3, 9 * time.Second},
		{1001, 1000, 2, 7 * time.Second},
		{10000, 999, 11, 1234 * time.Millisecond},
	}
	for _, tc := range cases {
		codec := &fakeCodec{duration: tc.total}
		c := NewChunker(codec, LowBitrate, nil)
		chunks, err := c.Split(context.Background(), make([]byte, tc.size), FormatOGG, tc.max)
		if err != nil {
			t.Fatalf("split %d/%d: %v", tc.size, tc.max, err)
		}
		if len(chunks) != tc.want {
			t.Fatalf("split %d/%d: expected %d chunks, got %d", tc.size, tc.max, tc.want, len(chunks))
		}
		var sum time.Duration
		var next time.Duration
		for i, ch := range chunks {
			if ch.Index != i {
				t.Fatalf("chunk %d has index %d", i, ch.Index)
			}
			if ch.Start != next {
				t.Fatalf("chunk %d starts at %v, want %v", i, ch.Start, next)
			}
			if ch.ContentType != "audio/mpeg" {
				t.Fatalf("unexpected content type %q", ch.ContentType)
			}
			next = ch.Start + ch.Length
			sum += ch.Length
		}
		if sum != tc.total {
			t.Fatalf("durations sum to %v, want %v", sum, tc.total)
		}
	}
}

func TestSplitSegmentFailure(t *testing.T) {
	codec := &fakeCodec{duration: 6 * time.Second, failAt: 2}
	c := NewChunker(codec, LowBitrate, nil)
	_, err := c.Split(context.Background(), make([]byte, 3000), FormatOGG, 1000)
	if !errors.Is(err, ErrChunkingFailed) {
		t.Fatalf("expected ErrChunkingFailed, got %v", err)
	}
}

func TestSplitProbeFailure(t *testing.T) {
	c := NewChunker(&fakeCodec{}, LowBitrate, nil)
	if _, err := c.Split(context.Background(), make([]byte, 3000), FormatOGG, 1000); !errors.Is(err, ErrChunkingFailed) {
		t.Fatalf("expected ErrChunkingFailed, got %v", err)
	}
	if _, err := c.Split(context.Background(), []byte("x"), FormatOGG, 0); !errors.Is(err, ErrChunkingFailed) {
		t.Fatalf("expected ErrChunkingFailed for zero limit, got %v", err)
	}
}

func TestSplitUsesNativeWAVDuration(t *testing.T) {
	codec := &fakeCodec{}
	c := NewChunker(codec, LowBitrate, nil)
	src := sineWAV(t, CanonicalSampleRate, 1, 2*time.Second)
	chunks, err := c.Split(context.Background(), src, FormatWAV, len(src)/2+1)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Start != time.Second || chunks[1].Length != time.Second {
		t.Fatalf("unexpected second chunk %v+%v", chunks[1].Start, chunks[1].Length)
	}
}
