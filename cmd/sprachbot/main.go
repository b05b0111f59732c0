package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/adapters/stt"
	"github.com/harunnryd/sprachbot/pkg/adapters/tts"
	"github.com/harunnryd/sprachbot/pkg/configutil"
	"github.com/harunnryd/sprachbot/pkg/dialogue"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/metrics"
	"github.com/harunnryd/sprachbot/pkg/providers/clu"
	"github.com/harunnryd/sprachbot/pkg/providers/deepgram"
	"github.com/harunnryd/sprachbot/pkg/providers/elevenlabs"
	"github.com/harunnryd/sprachbot/pkg/providers/keyword"
	"github.com/harunnryd/sprachbot/pkg/providers/mock"
	"github.com/harunnryd/sprachbot/pkg/sprachbot"
	"github.com/harunnryd/sprachbot/pkg/store"
	"github.com/harunnryd/sprachbot/pkg/transports"
	consoletransport "github.com/harunnryd/sprachbot/pkg/transports/console"
	mocktransport "github.com/harunnryd/sprachbot/pkg/transports/mock"
	twiliotransport "github.com/harunnryd/sprachbot/pkg/transports/twilio"
	webchattransport "github.com/harunnryd/sprachbot/pkg/transports/webchat"
	"github.com/joho/godotenv"
)

type mockSTTSettings struct {
	Transcripts []string `mapstructure:"transcripts"`
}

type mockTTSSettings struct {
	PerChar time.Duration `mapstructure:"per_char"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the configuration")
	invite := flag.String("invite", "", "conversation id to start an interview with, e.g. whatsapp:+4915123456789")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg, err := sprachbot.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger, *invite); err != nil {
		logger.Error("sprachbot_failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg sprachbot.Config, logger *slog.Logger, invite string) error {
	providers := sprachbot.NewProviderRegistry()
	registerProviders(providers)

	transport, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	var observer metrics.Observer
	var metricsServer *http.Server
	if addr := strings.TrimSpace(cfg.Metrics.Addr); addr != "" {
		prom := metrics.NewPrometheusObserver(cfg.Metrics.Namespace)
		observer = prom
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, prom.Handler())
		metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server_failed", slog.String("error", err.Error()))
			}
		}()
		logger.Info("metrics_listening", slog.String("addr", addr), slog.String("path", cfg.Metrics.Path))
	}

	app, err := sprachbot.NewEngine(sprachbot.EngineOptions{
		Config:    cfg,
		Providers: providers,
		Transport: transport,
		Observer:  observer,
		Logger:    logger,
		Banner:    os.Stdout,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	if invite != "" {
		if err := app.Invite(invite); err != nil {
			logger.Error("invite_failed", slog.String("conversation_id", invite), slog.String("error", err.Error()))
		} else {
			logger.Info("invite_sent", slog.String("conversation_id", invite))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	err = app.Stop()
	if metricsServer != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(sctx)
		scancel()
	}
	return err
}

func registerProviders(reg *sprachbot.ProviderRegistry) {
	reg.RegisterSTT("deepgram", func(cfg sprachbot.Config) (stt.Transcriber, error) {
		var settings deepgram.Config
		if err := configutil.Decode("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "smart_format", "max_retries", "backoff", "timeout"},
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(settings)
	})

	reg.RegisterSTT("mock", func(cfg sprachbot.Config) (stt.Transcriber, error) {
		var settings mockSTTSettings
		if err := configutil.Decode("vendors.stt.settings", cfg.Vendors.STT.Settings, configutil.Schema{
			Optional: []string{"transcripts"},
		}, &settings); err != nil {
			return nil, err
		}
		return mock.NewSTT(mock.STTConfig{Transcripts: settings.Transcripts}), nil
	})

	reg.RegisterTTS("elevenlabs", func(cfg sprachbot.Config) (tts.Synthesizer, error) {
		var settings elevenlabs.Config
		if err := configutil.Decode("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"voice_id", "model_id", "base_url", "stability", "similarity_boost", "timeout", "max_retries"},
		}, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.VoiceID == "" {
			settings.VoiceID = cfg.Voice.VoiceID
		}
		if err := configutil.RequireString(settings.VoiceID, "voice.voice_id"); err != nil {
			return nil, err
		}
		return elevenlabs.New(settings)
	})

	reg.RegisterTTS("mock", func(cfg sprachbot.Config) (tts.Synthesizer, error) {
		var settings mockTTSSettings
		if err := configutil.Decode("vendors.tts.settings", cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"per_char"},
		}, &settings); err != nil {
			return nil, err
		}
		return mock.NewTTS(mock.TTSConfig{PerChar: settings.PerChar}), nil
	})

	reg.RegisterNLU("clu", func(cfg sprachbot.Config) (nlu.Recognizer, error) {
		var settings clu.Config
		if err := configutil.Decode("vendors.nlu.settings", cfg.Vendors.NLU.Settings, configutil.Schema{
			Required: []string{"endpoint", "api_key", "project", "deployment"},
			Optional: []string{"api_version", "max_retries", "backoff"},
		}, &settings); err != nil {
			return nil, err
		}
		return clu.NewAdapter(settings)
	})

	reg.RegisterNLU("keyword", func(cfg sprachbot.Config) (nlu.Recognizer, error) {
		if err := validateSettings("vendors.nlu.settings", cfg.Vendors.NLU.Settings, configutil.Schema{}); err != nil {
			return nil, err
		}
		return keyword.New(cfg.Interview.Keywords), nil
	})

	reg.RegisterStore("memory", func(cfg sprachbot.Config) (dialogue.Persister, error) {
		return store.NewMemory(), nil
	})

	reg.RegisterStore("supabase", func(cfg sprachbot.Config) (dialogue.Persister, error) {
		var settings store.SupabaseConfig
		if err := configutil.Decode("store.settings", cfg.Store.Settings, configutil.Schema{
			Required: []string{"url", "key"},
			Optional: []string{"table", "created_at_column"},
		}, &settings); err != nil {
			return nil, err
		}
		return store.NewSupabase(settings)
	})
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	if err := configutil.ValidateSettings(input, schema); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func buildTransport(cfg sprachbot.Config) (transports.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transports.Provider)) {
	case "twilio":
		var settings twiliotransport.Config
		if err := configutil.Decode("transports.settings", cfg.Transports.Settings, configutil.Schema{
			Required: []string{"account_sid", "auth_token", "from"},
			Optional: []string{"public_url", "server_addr", "webhook_path", "media_path", "media_ttl", "max_attachment_bytes", "max_media_bytes"},
		}, &settings); err != nil {
			return nil, err
		}
		for path, v := range map[string]string{
			"transports.settings.account_sid": settings.AccountSID,
			"transports.settings.auth_token":  settings.AuthToken,
			"transports.settings.from":        settings.From,
		} {
			if err := configutil.RequireString(v, path); err != nil {
				return nil, err
			}
		}
		return twiliotransport.New(settings), nil
	case "webchat":
		var settings webchattransport.Config
		if err := configutil.Decode("transports.settings", cfg.Transports.Settings, configutil.Schema{
			Optional: []string{"server_addr", "path", "allow_any_origin", "allowed_origins", "max_attachment_bytes", "max_message_bytes"},
		}, &settings); err != nil {
			return nil, err
		}
		return webchattransport.New(settings), nil
	case "console":
		var settings consoletransport.Config
		if err := configutil.Decode("transports.settings", cfg.Transports.Settings, configutil.Schema{
			Optional: []string{"output_dir", "prompt"},
		}, &settings); err != nil {
			return nil, err
		}
		return consoletransport.New(settings, os.Stdin, os.Stdout), nil
	case "mock":
		return mocktransport.New(), nil
	default:
		return nil, fmt.Errorf("unsupported transport provider: %s", cfg.Transports.Provider)
	}
}
