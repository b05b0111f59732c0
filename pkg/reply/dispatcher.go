// Package reply delivers the bot's texts and, in voice conversations, a
// spoken version as ordered audio attachments.
package reply

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/sprachbot/pkg/adapters/tts"
	"github.com/harunnryd/sprachbot/pkg/audio"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/metrics"
	"github.com/harunnryd/sprachbot/pkg/speechtext"
	"github.com/harunnryd/sprachbot/pkg/transports"
)

// Sender is the outbound half of a transport.
type Sender interface {
	Send(ctx context.Context, conversationID string, msg transports.Message) error
}

// Conversation addresses one reply.
type Conversation struct {
	ID    string
	Voice bool
}

type Options struct {
	Synthesizer tts.Synthesizer
	Codec       audio.Codec
	Speech      *speechtext.Preprocessor
	// Profile is the encoding of voice attachments; zero selects audio.LowBitrate.
	Profile audio.Profile
	// Limit is the per-attachment size limit; zero means unlimited.
	Limit  int
	Locale string
	Voice  string
	// Notice is sent once when a voice reply cannot be produced.
	Notice   string
	Observer metrics.Observer
	Logger   *slog.Logger
}

type Dispatcher struct {
	out     Sender
	synth   tts.Synthesizer
	codec   audio.Codec
	chunker *audio.Chunker
	speech  *speechtext.Preprocessor
	profile audio.Profile
	limit   int
	locale  string
	voice   string
	notice  string
	obs     metrics.Observer
	log     *slog.Logger
}

func New(out Sender, opts Options) *Dispatcher {
	if opts.Profile.Format == audio.FormatUnknown {
		opts.Profile = audio.LowBitrate
	}
	if opts.Speech == nil {
		opts.Speech = speechtext.New(nil)
	}
	log := logging.NewComponentLogger(opts.Logger, "reply")
	d := &Dispatcher{
		out:     out,
		synth:   opts.Synthesizer,
		codec:   opts.Codec,
		speech:  opts.Speech,
		profile: opts.Profile,
		limit:   opts.Limit,
		locale:  opts.Locale,
		voice:   opts.Voice,
		notice:  opts.Notice,
		obs:     metrics.OrNoop(opts.Observer),
		log:     log,
	}
	if opts.Codec != nil {
		d.chunker = audio.NewChunker(opts.Codec, opts.Profile, opts.Logger)
	}
	return d
}

// VoiceCapable reports whether voice replies can be produced at all.
func (d *Dispatcher) VoiceCapable() bool {
	return d.synth != nil && d.codec != nil
}

// Dispatch sends each text in order. For voice conversations the texts are
// then spoken as one reply. Voice failures produce a single notice; only a
// failure to deliver the texts is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, conv Conversation, texts ...string) error {
	var spoken []string
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := d.out.Send(ctx, conv.ID, transports.Message{Text: text}); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonTransportSend)
		}
		spoken = append(spoken, text)
	}
	if !conv.Voice || len(spoken) == 0 {
		return nil
	}
	if err := d.sendVoice(ctx, conv, strings.Join(spoken, " ")); err != nil {
		d.obs.RecordEvent(metrics.NewEvent(metrics.EventSynthesisError, 0, map[string]string{"reason": string(errorsx.Reason(err))}))
		d.log.Warn("voice_reply_failed",
			slog.String("conversation_id", conv.ID),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.Reason(err))))
		if d.notice != "" {
			if nerr := d.out.Send(ctx, conv.ID, transports.Message{Text: d.notice}); nerr != nil {
				d.log.Error("voice_notice_failed", slog.String("conversation_id", conv.ID), slog.String("error", nerr.Error()))
			}
		}
	}
	return nil
}

func (d *Dispatcher) sendVoice(ctx context.Context, conv Conversation, text string) error {
	if !d.VoiceCapable() {
		return errorsx.Wrap(fmt.Errorf("%w: no synthesizer or codec configured", tts.ErrSynthesisFailed), errorsx.ReasonTTSSynthesize)
	}
	wav, err := d.synth.Synthesize(ctx, d.speech.Expand(text), d.locale, d.voice)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
	}
	encoded, err := d.codec.Encode(ctx, wav, audio.FormatWAV, d.profile, audio.Clip{})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonAudioEncode)
	}
	chunks := []audio.Chunk{{Data: encoded, ContentType: d.profile.Format.ContentType()}}
	if d.limit > 0 && len(encoded) > d.limit {
		chunks, err = d.chunker.Split(ctx, encoded, d.profile.Format, d.limit)
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonAudioChunking)
		}
	}
	d.obs.RecordEvent(metrics.NewEvent(metrics.EventAudioChunks, float64(len(chunks)), nil))
	for i, c := range chunks {
		att := &transports.Attachment{
			Name:        fmt.Sprintf("antwort-%d%s", i+1, d.profile.Format.Ext()),
			ContentType: c.ContentType,
			Data:        c.Data,
		}
		if err := d.out.Send(ctx, conv.ID, transports.Message{Attachment: att}); err != nil {
			return errorsx.Wrapf(err, errorsx.ReasonTransportSend, "voice attachment %d/%d", i+1, len(chunks))
		}
	}
	d.log.Debug("voice_reply_sent",
		slog.String("conversation_id", conv.ID),
		slog.Int("bytes", len(encoded)),
		slog.Int("attachments", len(chunks)))
	return nil
}
