package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/sprachbot/pkg/logging"
)

// FFmpegConfig locates the ffmpeg tools and their scratch space.
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
	TempDir     string `mapstructure:"temp_dir"`
}

// FFmpeg implements Codec by running the ffmpeg and ffprobe binaries.
// Every call works in its own temporary directory which is removed on return.
type FFmpeg struct {
	cfg FFmpegConfig
	log *slog.Logger
}

func NewFFmpeg(cfg FFmpegConfig, log *slog.Logger) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &FFmpeg{cfg: cfg, log: logging.NewComponentLogger(log, "ffmpeg")}
}

// Available reports whether both binaries can be resolved.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.cfg.FFmpegPath); err != nil {
		return err
	}
	_, err := exec.LookPath(f.cfg.FFprobePath)
	return err
}

func (f *FFmpeg) Decode(ctx context.Context, data []byte, from Format) ([]byte, error) {
	var out []byte
	err := f.withScratch(data, from, func(dir, in string) error {
		dst := filepath.Join(dir, "out.wav")
		args := []string{"-hide_banner", "-loglevel", "error", "-y",
			"-i", in,
			"-vn", "-map_metadata", "-1", "-fflags", "+bitexact",
			"-ac", strconv.Itoa(CanonicalChannels),
			"-ar", strconv.Itoa(CanonicalSampleRate),
			"-c:a", "pcm_s16le",
			"-f", "wav", dst,
		}
		if _, err := f.run(ctx, f.cfg.FFmpegPath, args); err != nil {
			return err
		}
		b, err := os.ReadFile(dst)
		out = b
		return err
	})
	return out, err
}

func (f *FFmpeg) Encode(ctx context.Context, data []byte, from Format, to Profile, clip Clip) ([]byte, error) {
	codec, container, err := encoderFor(to.Format)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = f.withScratch(data, from, func(dir, in string) error {
		dst := filepath.Join(dir, "out"+to.Format.Ext())
		args := []string{"-hide_banner", "-loglevel", "error", "-y"}
		if clip.Start > 0 {
			args = append(args, "-ss", seconds(clip.Start))
		}
		args = append(args, "-i", in)
		if clip.Length > 0 {
			args = append(args, "-t", seconds(clip.Length))
		}
		args = append(args, "-vn", "-map_metadata", "-1", "-c:a", codec)
		if to.Channels > 0 {
			args = append(args, "-ac", strconv.Itoa(to.Channels))
		}
		if to.SampleRate > 0 {
			args = append(args, "-ar", strconv.Itoa(to.SampleRate))
		}
		if to.BitrateKbps > 0 {
			args = append(args, "-b:a", strconv.Itoa(to.BitrateKbps)+"k")
		}
		args = append(args, "-f", container, dst)
		if _, err := f.run(ctx, f.cfg.FFmpegPath, args); err != nil {
			return err
		}
		b, err := os.ReadFile(dst)
		out = b
		return err
	})
	return out, err
}

func (f *FFmpeg) Probe(ctx context.Context, data []byte, format Format) (time.Duration, error) {
	var d time.Duration
	err := f.withScratch(data, format, func(_, in string) error {
		args := []string{"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			in,
		}
		stdout, err := f.run(ctx, f.cfg.FFprobePath, args)
		if err != nil {
			return err
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(string(stdout)), 64)
		if err != nil {
			return fmt.Errorf("ffprobe duration %q: %w", strings.TrimSpace(string(stdout)), err)
		}
		d = time.Duration(secs * float64(time.Second))
		return nil
	})
	return d, err
}

func (f *FFmpeg) withScratch(data []byte, format Format, fn func(dir, in string) error) error {
	dir, err := os.MkdirTemp(f.cfg.TempDir, "sprachbot-audio-*")
	if err != nil {
		return fmt.Errorf("audio scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)
	in := filepath.Join(dir, "in"+format.Ext())
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return fmt.Errorf("audio scratch input: %w", err)
	}
	return fn(dir, in)
}

func (f *FFmpeg) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	f.log.Debug("audio_tool_run",
		slog.String("bin", filepath.Base(bin)),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil))
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return stdout.Bytes(), nil
}

func encoderFor(f Format) (codec, container string, err error) {
	switch f {
	case FormatMP3:
		return "libmp3lame", "mp3", nil
	case FormatOGG:
		return "libopus", "ogg", nil
	case FormatWAV:
		return "pcm_s16le", "wav", nil
	case FormatAAC, FormatMP4:
		return "aac", "ipod", nil
	}
	return "", "", fmt.Errorf("no encoder for format %q", f)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

var _ Codec = (*FFmpeg)(nil)
