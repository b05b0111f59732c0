// Package sprachbot wires a chat transport to the interview: inbound audio
// is normalized and transcribed, utterances are recognized and fed to the
// dialogue controller, and its replies go out through the reply dispatcher.
package sprachbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/adapters/stt"
	"github.com/harunnryd/sprachbot/pkg/audio"
	"github.com/harunnryd/sprachbot/pkg/dialogue"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/metrics"
	"github.com/harunnryd/sprachbot/pkg/providers/keyword"
	"github.com/harunnryd/sprachbot/pkg/redact"
	"github.com/harunnryd/sprachbot/pkg/reply"
	"github.com/harunnryd/sprachbot/pkg/runner"
	"github.com/harunnryd/sprachbot/pkg/speechtext"
	"github.com/harunnryd/sprachbot/pkg/transports"
	"github.com/harunnryd/sprachbot/pkg/validate"
)

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Transport transports.Transport
	// Codec defaults to ffmpeg as configured under audio.
	Codec audio.Codec
	// Checker defaults to the validator for the configured country.
	Checker  dialogue.Checker
	Observer metrics.Observer
	Logger   *slog.Logger
	// Banner receives the startup banner; nil disables it.
	Banner    io.Writer
	Listeners []dialogue.StateListener
	Now       func() time.Time
}

type Engine struct {
	cfg         Config
	log         *slog.Logger
	transport   transports.Transport
	controller  *dialogue.Controller
	sessions    *dialogue.Registry
	dispatcher  *reply.Dispatcher
	normalizer  *audio.Normalizer
	transcriber stt.Transcriber
	recognizer  nlu.Recognizer
	fallback    *keyword.Recognizer
	obs         *metrics.AsyncObserver
	lanes       *lanes
	runner      *runner.LifecycleRunner
	turnTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	if opts.Transport == nil {
		return nil, errors.New("sprachbot: transport is required")
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)
	log := logging.NewComponentLogger(opts.Logger, "engine")

	log.Info("sprachbot_init",
		slog.String("environment", cfg.Environment),
		slog.String("locale", cfg.Locale),
		slog.String("stt_provider", cfg.Vendors.STT.Provider),
		slog.String("tts_provider", cfg.Vendors.TTS.Provider),
		slog.String("nlu_provider", nluName(cfg)),
		slog.String("store_provider", cfg.Store.Provider),
		slog.String("transport", opts.Transport.Name()),
		slog.String("voice_mode", cfg.VoiceMode()))

	var timeline *metrics.TimelineObserver
	if dir := strings.TrimSpace(cfg.Metrics.TimelineDir); dir != "" {
		retention := time.Duration(cfg.Metrics.RetentionHours) * time.Hour
		if n, err := metrics.PurgeTimelines(dir, retention); err != nil {
			log.Warn("timeline_purge_failed", slog.String("dir", dir), slog.String("error", err.Error()))
		} else if n > 0 {
			log.Info("timeline_purged", slog.String("dir", dir), slog.Int("removed", n))
		}
		timeline = metrics.NewTimelineObserver(dir)
	}
	sinks := []metrics.Observer{
		metrics.NewLoggerObserver(logging.NewComponentLogger(opts.Logger, "metrics")),
		opts.Observer,
	}
	if timeline != nil {
		sinks = append(sinks, timeline)
	}
	obs := metrics.NewAsyncObserver(metrics.NewMultiObserver(sinks...), 2048)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}
	transcriber, err := providers.BuildSTT(cfg.Vendors.STT.Provider, cfg)
	if err != nil {
		return nil, err
	}
	recognizer, err := providers.BuildNLU(cfg.Vendors.NLU.Provider, cfg)
	if err != nil {
		return nil, err
	}
	store, err := providers.BuildStore(cfg.Store.Provider, cfg)
	if err != nil {
		return nil, err
	}
	var dispatchOpts reply.Options
	if cfg.VoiceMode() != VoiceOff {
		synth, err := providers.BuildTTS(cfg.Vendors.TTS.Provider, cfg)
		if err != nil {
			return nil, err
		}
		dispatchOpts.Synthesizer = synth
	}

	checker := opts.Checker
	if checker == nil {
		v, err := validate.New(validate.Options{Country: cfg.Country, Language: cfg.Language, Now: opts.Now})
		if err != nil {
			return nil, err
		}
		checker = v
	}

	codec := opts.Codec
	if codec == nil {
		ff := audio.NewFFmpeg(cfg.Audio, opts.Logger)
		if err := ff.Available(); err != nil {
			log.Warn("ffmpeg_unavailable", slog.String("error", err.Error()))
		}
		codec = ff
	}

	listeners := append([]dialogue.StateListener{modeRecorder(obs)}, opts.Listeners...)
	controller, err := dialogue.NewController(dialogue.Options{
		Fields:    cfg.Interview.Fields,
		Checker:   checker,
		Messages:  cfg.Messages,
		Store:     store,
		Observer:  obs,
		Logger:    opts.Logger,
		Listeners: listeners,
		Now:       opts.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("interview: %w", err)
	}

	limit := cfg.Voice.MaxAttachmentBytes
	if limit == 0 {
		limit = transports.AttachmentLimit(opts.Transport)
	}
	dispatchOpts.Codec = codec
	dispatchOpts.Speech = speechtext.New(cfg.Speech.Replacements)
	dispatchOpts.Profile = cfg.VoiceProfile()
	dispatchOpts.Limit = limit
	dispatchOpts.Locale = cfg.Locale
	dispatchOpts.Voice = cfg.Voice.VoiceID
	dispatchOpts.Notice = controller.Messages().VoiceUnavailable
	dispatchOpts.Observer = obs
	dispatchOpts.Logger = opts.Logger

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:         cfg,
		log:         log,
		transport:   opts.Transport,
		controller:  controller,
		dispatcher:  reply.New(opts.Transport, dispatchOpts),
		normalizer:  audio.NewNormalizer(codec, opts.Logger),
		transcriber: transcriber,
		recognizer:  recognizer,
		fallback:    keyword.New(cfg.Interview.Keywords),
		obs:         obs,
		lanes:       newLanes(cfg.Engine.LaneQueueSize),
		turnTimeout: time.Duration(cfg.Engine.TurnTimeoutMS) * time.Millisecond,
		ctx:         ctx,
		cancel:      cancel,
	}
	e.sessions = dialogue.NewRegistry(controller.NewSession)

	hooks := runner.Hooks{
		OnStart: func() {
			fields := []any{"message", "Sprachbot Ready"}
			if rr, ok := opts.Transport.(transports.ReadyReporter); ok {
				for k, v := range rr.ReadyFields() {
					fields = append(fields, k, v)
				}
			}
			log.Info("engine_ready", fields...)
		},
		OnStop: func() {
			obs.Close()
			if timeline != nil {
				if err := timeline.Close(); err != nil {
					log.Warn("timeline_close_failed", slog.String("error", err.Error()))
				}
			}
			log.Info("shutdown", "goroutines", runtime.NumGoroutine(), "active_sessions", e.sessions.Count())
		},
	}
	e.runner = runner.NewLifecycleRunner(runner.Options{
		Drainer: runner.DrainerFunc(e.drain),
		Hooks:   hooks,
		Timeout: time.Duration(cfg.Engine.DrainTimeoutMS) * time.Millisecond,
		Banner:  opts.Banner,
		Logger:  opts.Logger,
	})
	return e, nil
}

func nluName(cfg Config) string {
	if strings.TrimSpace(cfg.Vendors.NLU.Provider) == "" {
		return "keyword"
	}
	return cfg.Vendors.NLU.Provider
}

func modeRecorder(obs metrics.Observer) dialogue.StateListener {
	return dialogue.StateListenerFunc(func(ev dialogue.StateChange) {
		obs.RecordEvent(metrics.NewEvent(metrics.EventModeChanged, 0, map[string]string{
			metrics.TagConversation: ev.SessionKey,
			"field":                 ev.Field,
			"from":                  ev.FromMode.String(),
			"to":                    ev.ToMode.String(),
			"reason":                ev.Reason,
		}))
	})
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.transport.Start(ctx); err != nil {
		return err
	}
	go e.routeTransport()
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

// Stop drains the engine and cancels whatever is still running.
func (e *Engine) Stop() error {
	err := e.runner.Stop()
	e.cancel()
	return err
}

// drain stops intake, lets queued turns finish and waits for saves.
func (e *Engine) drain(ctx context.Context) error {
	_ = e.transport.Stop()
	if err := e.lanes.close(ctx); err != nil {
		return fmt.Errorf("turns: %w", err)
	}
	if err := e.controller.Wait(ctx); err != nil {
		return fmt.Errorf("records: %w", err)
	}
	return nil
}

// Invite starts an interview proactively, as if the user had opened the
// conversation.
func (e *Engine) Invite(conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("conversation id is required")
	}
	return e.enqueue(transports.Turn{
		ConversationID: conversationID,
		Kind:           transports.TurnStart,
		ReceivedAt:     time.Now(),
	})
}

func (e *Engine) routeTransport() {
	for turn := range e.transport.Recv() {
		if turn.ConversationID == "" {
			continue
		}
		if err := e.enqueue(turn); err != nil {
			e.log.Warn("turn_dropped",
				slog.String("conversation_id", turn.ConversationID),
				slog.String("kind", turn.Kind.String()),
				slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) enqueue(turn transports.Turn) error {
	return e.lanes.submit(turn.ConversationID, func() { e.handleTurn(turn) })
}

func (e *Engine) handleTurn(turn transports.Turn) {
	key := turn.ConversationID
	log := e.log.With(slog.String("conversation_id", key))
	if turn.TraceID != "" {
		log = log.With(slog.String("trace_id", turn.TraceID))
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("turn_panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()

	ctx, cancel := e.turnContext()
	defer cancel()
	start := time.Now()

	var (
		sess    *dialogue.Session
		replies []string
	)
	switch turn.Kind {
	case transports.TurnEnd:
		if e.sessions.Remove(key) {
			log.Info("conversation_closed")
		}
		return
	case transports.TurnStart:
		if e.sessions.Remove(key) {
			log.Info("interview_restarted")
		}
		sess, _ = e.sessions.GetOrCreate(key)
		replies = e.controller.Begin(sess)
	default:
		var created bool
		sess, created = e.sessions.GetOrCreate(key)
		if created {
			// A channel without start events opens with the user's first
			// message; it only starts the interview.
			sess.Voice = hasAudio(turn)
			replies = e.controller.Begin(sess)
		} else {
			replies = e.processMessage(ctx, sess, turn, log)
		}
	}

	conv := reply.Conversation{ID: key, Voice: e.wantVoice(sess)}
	if err := e.dispatcher.Dispatch(ctx, conv, replies...); err != nil {
		log.Error("reply_failed", slog.String("error", err.Error()), slog.String("reason_code", string(errorsx.Reason(err))))
	}
	if sess.Done() {
		e.sessions.Remove(key)
	}
	e.obs.RecordEvent(metrics.NewEvent(metrics.EventTurnProcessed, time.Since(start).Seconds(), map[string]string{
		metrics.TagConversation: key,
		"kind":                  turn.Kind.String(),
	}))
	log.Debug("turn_processed",
		slog.String("kind", turn.Kind.String()),
		slog.Int("replies", len(replies)),
		slog.Duration("elapsed", time.Since(start)))
}

func (e *Engine) turnContext() (context.Context, context.CancelFunc) {
	if e.turnTimeout > 0 {
		return context.WithTimeout(e.ctx, e.turnTimeout)
	}
	return context.WithCancel(e.ctx)
}

func (e *Engine) processMessage(ctx context.Context, sess *dialogue.Session, turn transports.Turn, log *slog.Logger) []string {
	msgs := e.controller.Messages()
	text := strings.TrimSpace(turn.Text)
	if att, ok := audioAttachment(turn); ok {
		sess.Voice = true
		transcript, err := e.transcribe(ctx, att, log)
		if err != nil {
			if errors.Is(err, audio.ErrUnsupportedFormat) {
				return []string{msgs.AudioUnsupported}
			}
			return []string{msgs.TranscriptionFailed}
		}
		text = transcript
	} else if text == "" {
		if len(turn.Attachments) > 0 {
			return []string{msgs.AudioUnsupported}
		}
		return nil
	}
	res := e.recognize(ctx, text, log)
	return e.controller.ProcessTurn(ctx, sess, res, text)
}

func (e *Engine) transcribe(ctx context.Context, att transports.Attachment, log *slog.Logger) (string, error) {
	fail := func(stage string, err error) (string, error) {
		e.obs.RecordEvent(metrics.NewEvent(metrics.EventTranscriptionError, 0, map[string]string{"stage": stage}))
		log.Warn("transcription_failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))))
		return "", err
	}
	if e.transcriber == nil {
		return fail("config", errorsx.Wrap(fmt.Errorf("%w: no transcriber configured", stt.ErrTranscriptionFailed), errorsx.ReasonSTTTranscribe))
	}
	data, err := e.fetch(ctx, att)
	if err != nil {
		return fail("fetch", err)
	}
	wav, err := e.normalizer.Normalize(ctx, data, att.ContentType)
	if err != nil {
		return fail("normalize", err)
	}
	start := time.Now()
	text, err := e.transcriber.Transcribe(ctx, wav, e.cfg.Locale)
	if err != nil {
		return fail("transcribe", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fail("transcribe", errorsx.Wrap(fmt.Errorf("%w: empty transcript", stt.ErrTranscriptionFailed), errorsx.ReasonSTTTranscribe))
	}
	e.obs.RecordEvent(metrics.NewEvent(metrics.EventTranscribed, time.Since(start).Seconds(), map[string]string{"provider": e.transcriber.Name()}))
	log.Debug("transcribed", slog.String("text", redact.Text(text)))
	return text, nil
}

func (e *Engine) fetch(ctx context.Context, att transports.Attachment) ([]byte, error) {
	if mf, ok := e.transport.(transports.MediaFetcher); ok {
		return mf.FetchMedia(ctx, att)
	}
	return transports.FetchMedia(ctx, att, transports.FetchOptions{})
}

// recognize asks the configured NLU and falls back to the keyword
// recognizer when there is none or it fails.
func (e *Engine) recognize(ctx context.Context, text string, log *slog.Logger) nlu.Result {
	if e.recognizer != nil {
		res, err := e.recognizer.Recognize(ctx, text, e.cfg.Locale)
		if err == nil {
			return res
		}
		e.obs.RecordEvent(metrics.NewEvent(metrics.EventNLUFallback, 0, map[string]string{"provider": e.recognizer.Name()}))
		log.Warn("nlu_fallback",
			slog.String("provider", e.recognizer.Name()),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))))
	}
	res, _ := e.fallback.Recognize(ctx, text, e.cfg.Locale)
	return res
}

func (e *Engine) wantVoice(sess *dialogue.Session) bool {
	switch e.cfg.VoiceMode() {
	case VoiceAlways:
		return true
	case VoiceMirror:
		return sess != nil && sess.Voice
	default:
		return false
	}
}

func audioAttachment(turn transports.Turn) (transports.Attachment, bool) {
	for _, att := range turn.Attachments {
		if audio.IsAudioContentType(att.ContentType) {
			return att, true
		}
		if att.ContentType == "" && audio.Detect(att.Data, "") != audio.FormatUnknown {
			return att, true
		}
	}
	return transports.Attachment{}, false
}

func hasAudio(turn transports.Turn) bool {
	_, ok := audioAttachment(turn)
	return ok
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Transport() transports.Transport { return e.transport }

// ActiveSessions returns the number of unfinished interviews.
func (e *Engine) ActiveSessions() int64 { return e.sessions.Count() }

func (e *Engine) State() runner.State { return e.runner.State() }
