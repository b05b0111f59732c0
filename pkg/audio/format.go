// Package audio converts user audio into the transcription format and
// compresses synthesized speech into transport sized attachments.
package audio

import (
	"bytes"
	"mime"
	"strings"
)

// Format is a container/codec family understood by the codec.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOGG     Format = "ogg"
	FormatFLAC    Format = "flac"
	FormatMP4     Format = "mp4"
	FormatWebM    Format = "webm"
	FormatAMR     Format = "amr"
	FormatAAC     Format = "aac"
)

var contentTypes = map[Format]string{
	FormatWAV:  "audio/wav",
	FormatMP3:  "audio/mpeg",
	FormatOGG:  "audio/ogg",
	FormatFLAC: "audio/flac",
	FormatMP4:  "audio/mp4",
	FormatWebM: "audio/webm",
	FormatAMR:  "audio/amr",
	FormatAAC:  "audio/aac",
}

var formatsByMediaType = map[string]Format{
	"audio/wav":       FormatWAV,
	"audio/wave":      FormatWAV,
	"audio/x-wav":     FormatWAV,
	"audio/vnd.wave":  FormatWAV,
	"audio/mpeg":      FormatMP3,
	"audio/mp3":       FormatMP3,
	"audio/mpeg3":     FormatMP3,
	"audio/x-mpeg-3":  FormatMP3,
	"audio/ogg":       FormatOGG,
	"audio/opus":      FormatOGG,
	"application/ogg": FormatOGG,
	"audio/flac":      FormatFLAC,
	"audio/x-flac":    FormatFLAC,
	"audio/mp4":       FormatMP4,
	"audio/m4a":       FormatMP4,
	"audio/x-m4a":     FormatMP4,
	"video/mp4":       FormatMP4,
	"audio/webm":      FormatWebM,
	"video/webm":      FormatWebM,
	"audio/amr":       FormatAMR,
	"audio/aac":       FormatAAC,
	"audio/x-aac":     FormatAAC,
}

// ContentType returns the MIME type used when sending this format.
func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Ext returns a file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatUnknown:
		return ".bin"
	case FormatMP4:
		return ".m4a"
	default:
		return "." + string(f)
	}
}

// IsAudioContentType reports whether ct names an audio payload we can try to decode.
func IsAudioContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(ct))
	}
	if strings.HasPrefix(mt, "audio/") {
		return true
	}
	_, ok := formatsByMediaType[mt]
	return ok
}

// FormatFromContentType maps a MIME type to a format.
func FormatFromContentType(ct string) Format {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(ct))
	}
	return formatsByMediaType[mt]
}

// Detect identifies the format from magic bytes, falling back to the content type.
func Detect(data []byte, contentType string) Format {
	if f := sniff(data); f != FormatUnknown {
		return f
	}
	return FormatFromContentType(contentType)
}

func sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOGG
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("#!AMR")):
		return FormatAMR
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatMP4
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xF6 == 0xF0:
		return FormatAAC
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}
