package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Canonical transcription format: PCM, mono, 16 kHz, 16 bit.
const (
	CanonicalSampleRate    = 16000
	CanonicalChannels      = 1
	CanonicalBitsPerSample = 16
)

const wavFormatPCM = 1

var errNotWAV = errors.New("not a RIFF/WAVE stream")

// WAVInfo describes the fmt and data chunks of a WAV stream.
type WAVInfo struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
	DataOffset    int
	DataSize      int
}

// Duration is the playback length of the data chunk.
func (i WAVInfo) Duration() time.Duration {
	frame := int(i.Channels) * int(i.BitsPerSample) / 8
	if frame == 0 || i.SampleRate == 0 {
		return 0
	}
	frames := i.DataSize / frame
	return time.Duration(frames) * time.Second / time.Duration(i.SampleRate)
}

// Canonical reports whether the stream already is 16 kHz mono 16 bit PCM.
func (i WAVInfo) Canonical() bool {
	return i.AudioFormat == wavFormatPCM &&
		i.Channels == CanonicalChannels &&
		i.SampleRate == CanonicalSampleRate &&
		i.BitsPerSample == CanonicalBitsPerSample
}

// ParseWAV walks the RIFF chunks and returns the fmt/data description.
// Chunks other than fmt and data (LIST, fact, ...) are skipped.
func ParseWAV(data []byte) (WAVInfo, error) {
	var info WAVInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, errNotWAV
	}
	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return info, fmt.Errorf("wav: short fmt chunk (%d bytes)", size)
			}
			info.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return info, errors.New("wav: data chunk before fmt chunk")
			}
			// Streaming writers leave the size at 0 or 0xFFFFFFFF.
			if size == 0 || body+size > len(data) {
				size = len(data) - body
			}
			info.DataOffset = body
			info.DataSize = size
			return info, nil
		}
		pos = body + size + size%2
	}
	if !haveFmt {
		return info, errors.New("wav: missing fmt chunk")
	}
	return info, errors.New("wav: missing data chunk")
}

// IsCanonical reports whether data is a WAV stream in the transcription format.
func IsCanonical(data []byte) bool {
	info, err := ParseWAV(data)
	return err == nil && info.Canonical()
}

// EncodeWAV wraps little-endian 16 bit PCM samples in a WAV header.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if len(pcm)%(2*channels) != 0 {
		return nil, fmt.Errorf("pcm length %d is not a whole number of frames", len(pcm))
	}
	const bits = 16
	blockAlign := channels * bits / 8
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes(), nil
}
