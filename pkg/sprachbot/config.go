package sprachbot

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/harunnryd/sprachbot/pkg/audio"
	"github.com/harunnryd/sprachbot/pkg/configutil"
	"github.com/harunnryd/sprachbot/pkg/dialogue"
	"github.com/harunnryd/sprachbot/pkg/providers/keyword"
	"github.com/spf13/viper"
)

// Voice reply modes.
const (
	VoiceOff    = "off"
	VoiceMirror = "mirror"
	VoiceAlways = "always"
)

type Config struct {
	Environment string             `mapstructure:"environment"`
	LogLevel    string             `mapstructure:"log_level"`
	LogFormat   string             `mapstructure:"log_format"`
	Locale      string             `mapstructure:"locale"`
	Language    string             `mapstructure:"language"`
	Country     string             `mapstructure:"country"`
	Interview   InterviewConfig    `mapstructure:"interview"`
	Messages    dialogue.Messages  `mapstructure:"messages"`
	Voice       VoiceConfig        `mapstructure:"voice"`
	Audio       audio.FFmpegConfig `mapstructure:"audio"`
	Speech      SpeechConfig       `mapstructure:"speech"`
	Vendors     VendorsConfig      `mapstructure:"vendors"`
	Store       VendorConfig       `mapstructure:"store"`
	Transports  TransportsConfig   `mapstructure:"transports"`
	Engine      EngineConfig       `mapstructure:"engine"`
	Metrics     MetricsConfig      `mapstructure:"metrics"`
	Privacy     PrivacyConfig      `mapstructure:"privacy"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

// VendorsConfig selects the collaborators. An empty NLU provider uses the
// local keyword recognizer; an empty STT provider disables voice input.
type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	NLU VendorConfig `mapstructure:"nlu"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type InterviewConfig struct {
	Fields   []dialogue.FieldSpec `mapstructure:"fields"`
	Keywords keyword.Config       `mapstructure:"keywords"`
}

type VoiceConfig struct {
	Mode    string `mapstructure:"mode"`
	VoiceID string `mapstructure:"voice_id"`
	// MaxAttachmentBytes overrides the transport's attachment limit when set.
	MaxAttachmentBytes int `mapstructure:"max_attachment_bytes"`
	BitrateKbps        int `mapstructure:"bitrate"`
	SampleRate         int `mapstructure:"sample_rate"`
}

type SpeechConfig struct {
	Replacements map[string]string `mapstructure:"replacements"`
}

type EngineConfig struct {
	LaneQueueSize  int `mapstructure:"lane_queue_size"`
	TurnTimeoutMS  int `mapstructure:"turn_timeout_ms"`
	DrainTimeoutMS int `mapstructure:"drain_timeout_ms"`
}

type MetricsConfig struct {
	Addr           string `mapstructure:"addr"`
	Path           string `mapstructure:"path"`
	Namespace      string `mapstructure:"namespace"`
	TimelineDir    string `mapstructure:"timeline_dir"`
	RetentionHours int    `mapstructure:"retention_hours"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration LoadConfig starts from.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	kw := keyword.DefaultConfig()
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("locale", "de-DE")
	v.SetDefault("language", "de")
	v.SetDefault("country", "DE")
	v.SetDefault("interview.keywords.confirm", kw.Confirm)
	v.SetDefault("interview.keywords.reject", kw.Reject)
	v.SetDefault("interview.keywords.negators", kw.Negators)
	v.SetDefault("interview.keywords.postfix", kw.Postfix)
	v.SetDefault("interview.keywords.postfix_negators", kw.PostfixNegators)
	v.SetDefault("interview.keywords.fillers", kw.Fillers)
	v.SetDefault("voice.mode", VoiceMirror)
	v.SetDefault("voice.max_attachment_bytes", 0)
	v.SetDefault("voice.bitrate", audio.LowBitrate.BitrateKbps)
	v.SetDefault("voice.sample_rate", audio.LowBitrate.SampleRate)
	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.ffprobe_path", "ffprobe")
	v.SetDefault("store.provider", "memory")
	v.SetDefault("engine.lane_queue_size", 16)
	v.SetDefault("engine.turn_timeout_ms", 60000)
	v.SetDefault("engine.drain_timeout_ms", 20000)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "sprachbot")
	v.SetDefault("metrics.timeline_dir", "")
	v.SetDefault("metrics.retention_hours", 0)
	v.SetDefault("privacy.redact_pii", true)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if err := configutil.OneOf(strings.ToLower(c.Voice.Mode), "voice.mode", VoiceOff, VoiceMirror, VoiceAlways); err != nil {
		return err
	}
	if c.VoiceMode() != VoiceOff && strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required when voice.mode is %s", c.VoiceMode())
	}
	if strings.TrimSpace(c.Store.Provider) == "" {
		return fmt.Errorf("store.provider is required")
	}
	if c.Metrics.RetentionHours < 0 {
		return fmt.Errorf("metrics.retention_hours must not be negative, got %d", c.Metrics.RetentionHours)
	}
	if c.Voice.MaxAttachmentBytes < 0 {
		return fmt.Errorf("voice.max_attachment_bytes must not be negative, got %d", c.Voice.MaxAttachmentBytes)
	}
	if c.Engine.LaneQueueSize <= 0 {
		return fmt.Errorf("engine.lane_queue_size must be positive, got %d", c.Engine.LaneQueueSize)
	}
	if len(c.Interview.Keywords.Confirm) == 0 || len(c.Interview.Keywords.Reject) == 0 {
		return fmt.Errorf("interview.keywords needs confirm and reject phrases")
	}
	return nil
}

// VoiceMode returns the normalized voice.mode.
func (c Config) VoiceMode() string {
	return strings.ToLower(strings.TrimSpace(c.Voice.Mode))
}

// VoiceProfile is the encoding of outgoing voice attachments.
func (c Config) VoiceProfile() audio.Profile {
	p := audio.LowBitrate
	if c.Voice.BitrateKbps > 0 {
		p.BitrateKbps = c.Voice.BitrateKbps
	}
	if c.Voice.SampleRate > 0 {
		p.SampleRate = c.Voice.SampleRate
	}
	return p
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.NLU.Settings = expandSettings(cfg.Vendors.NLU.Settings)
	cfg.Store.Settings = expandSettings(cfg.Store.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

// expandValue expands ${VAR} in every string reachable from v. Message
// templates use {field} braces, which os.ExpandEnv leaves alone.
func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				expandValue(v.Field(i))
			}
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				v.SetMapIndex(key, reflect.ValueOf(os.ExpandEnv(val.String())).Convert(v.Type().Elem()))
			}
		}
	}
}
