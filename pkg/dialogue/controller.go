// Package dialogue drives the field-by-field interview: it asks for each
// field, validates the answer, asks for confirmation and commits it.
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/metrics"
	"github.com/harunnryd/sprachbot/pkg/redact"
	"github.com/harunnryd/sprachbot/pkg/validate"
)

// Checker validates a raw answer for a field.
type Checker interface {
	Check(rule validate.Rule, field, raw string) (string, error)
}

// Options configures a Controller.
type Options struct {
	Fields         []FieldSpec
	Checker        Checker
	Messages       Messages
	Store          Persister
	Observer       metrics.Observer
	Logger         *slog.Logger
	Listeners      []StateListener
	PersistTimeout time.Duration
	Now            func() time.Time
}

// Controller implements the interview state machine. It holds no per
// conversation state; all of it lives in Session.
type Controller struct {
	fields         []FieldSpec
	checker        Checker
	msgs           Messages
	store          Persister
	obs            metrics.Observer
	log            *slog.Logger
	listeners      []StateListener
	persistTimeout time.Duration
	now            func() time.Time

	persisting sync.WaitGroup
}

func NewController(opts Options) (*Controller, error) {
	if opts.Checker == nil {
		return nil, errors.New("dialogue: checker is required")
	}
	fields := opts.Fields
	if len(fields) == 0 {
		fields = DefaultFields()
	}
	var known func(validate.Rule) bool
	if k, ok := opts.Checker.(interface{ Known(validate.Rule) bool }); ok {
		known = k.Known
	}
	if err := checkFields(fields, known); err != nil {
		return nil, err
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		fields:         fields,
		checker:        opts.Checker,
		msgs:           opts.Messages.WithDefaults(),
		store:          opts.Store,
		obs:            metrics.OrNoop(opts.Observer),
		log:            logging.NewComponentLogger(opts.Logger, "dialogue"),
		listeners:      opts.Listeners,
		persistTimeout: opts.PersistTimeout,
		now:            opts.Now,
	}, nil
}

// Messages returns the effective message set.
func (c *Controller) Messages() Messages { return c.msgs }

// NewSession creates the interview state for a conversation.
func (c *Controller) NewSession(key string) *Session {
	return newSession(key, c.fields, c.now())
}

// Begin greets the user and asks for the first field.
func (c *Controller) Begin(s *Session) []string {
	c.obs.RecordEvent(metrics.NewEvent(metrics.EventInterviewStarted, 0, nil))
	c.log.Info("interview_started", slog.String("conversation_id", s.Key), slog.Int("fields", len(s.Pending)))
	out := []string{c.msgs.Welcome}
	field, _ := s.Current()
	return append(out, c.msgs.ask(field))
}

// ProcessTurn applies one recognized user turn and returns the replies.
func (c *Controller) ProcessTurn(ctx context.Context, s *Session, res nlu.Result, raw string) []string {
	field, ok := s.Current()
	if !ok {
		return []string{c.msgs.Completed}
	}
	log := c.log.With(
		slog.String("conversation_id", s.Key),
		slog.String("field", field.Name),
		slog.String("intent", res.TopIntent),
		slog.String("mode", s.Mode.String()))
	log.Debug("turn_received", slog.String("text", redact.Text(raw)))

	switch res.TopIntent {
	case nlu.IntentConfirmation:
		return c.handleConfirmation(ctx, s, field, res, log)
	case nlu.IntentEnterInformation:
		return c.handleInformation(s, field, res, raw, log)
	default:
		log.Info("intent_not_understood")
		out := []string{c.msgs.NotUnderstood}
		if value, ok := s.PendingValue(); ok && s.Mode == AwaitingConfirmation {
			return append(out, c.msgs.repeat(field, value))
		}
		return append(out, c.msgs.ask(field))
	}
}

func (c *Controller) handleConfirmation(ctx context.Context, s *Session, field FieldSpec, res nlu.Result, log *slog.Logger) []string {
	value, ok := s.PendingValue()
	if s.Mode != AwaitingConfirmation || !ok {
		log.Debug("confirmation_out_of_turn")
		return []string{c.msgs.ClarifyConfirmation}
	}
	switch {
	case res.Has(nlu.EntityConfirm):
		s.Record.Values[field.Name] = value
		s.Pending = s.Pending[1:]
		s.pendingValue, s.hasPending = "", false
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventFieldConfirmed, 0, map[string]string{"field": field.Name}))
		log.Info("field_confirmed", slog.String("value", redact.Value(value)), slog.Int("remaining", len(s.Pending)))
		out := []string{c.msgs.Saved}
		return append(out, c.askNext(ctx, s, "confirmed "+field.Name)...)
	case res.Has(nlu.EntityReject):
		s.pendingValue, s.hasPending = "", false
		c.setMode(s, field, AwaitingInformation, "rejected")
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventFieldRejected, 0, map[string]string{"field": field.Name}))
		log.Info("field_rejected")
		return []string{c.msgs.ask(field)}
	default:
		log.Debug("confirmation_without_polarity")
		return []string{c.msgs.ClarifyConfirmation}
	}
}

func (c *Controller) handleInformation(s *Session, field FieldSpec, res nlu.Result, raw string, log *slog.Logger) []string {
	if s.Mode != AwaitingInformation {
		log.Debug("information_while_confirming")
		return []string{c.msgs.ClarifyConfirmation}
	}
	candidate := extractValue(field, res, raw)
	value, err := c.checker.Check(field.Rule, field.Name, candidate)
	if err != nil {
		if !errors.Is(err, validate.ErrValidationFailed) {
			log.Warn("validation_error", slog.String("error", err.Error()), slog.String("reason_code", string(errorsx.Reason(err))))
		}
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventValidationFailed, 0, map[string]string{"field": field.Name, "rule": string(field.Rule)}))
		log.Debug("validation_failed", slog.String("value", redact.Value(candidate)))
		return []string{c.msgs.clarify(field)}
	}
	s.pendingValue, s.hasPending = value, true
	c.setMode(s, field, AwaitingConfirmation, "validated")
	return []string{c.msgs.repeat(field, value)}
}

// askNext asks for the next field or finishes the interview.
func (c *Controller) askNext(ctx context.Context, s *Session, reason string) []string {
	field, ok := s.Current()
	if !ok {
		c.setMode(s, FieldSpec{}, AwaitingInformation, "completed")
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventInterviewCompleted, c.now().Sub(s.Created).Seconds(), nil))
		c.log.Info("interview_completed", slog.String("conversation_id", s.Key), slog.Int("fields", len(s.Record.Values)))
		c.persist(ctx, s)
		return []string{c.msgs.Completed}
	}
	c.setMode(s, field, AwaitingInformation, reason)
	return []string{c.msgs.ask(field)}
}

func (c *Controller) setMode(s *Session, field FieldSpec, to Mode, reason string) {
	from := s.Mode
	if !transitionValid(from, to) {
		err := &InvalidTransitionError{From: from, To: to}
		c.log.Error("mode_transition_rejected", slog.String("conversation_id", s.Key), slog.String("error", err.Error()))
		return
	}
	s.Mode = to
	if from == to {
		return
	}
	ev := StateChange{
		SessionKey: s.Key,
		Field:      field.Name,
		FromMode:   from,
		ToMode:     to,
		Timestamp:  c.now(),
		Reason:     reason,
	}
	for _, l := range c.listeners {
		l.OnStateChange(ev)
	}
}

// persist hands the record to the store without blocking the turn. The
// save outlives the turn context.
func (c *Controller) persist(ctx context.Context, s *Session) {
	rec := s.Record.Clone()
	key := s.Key
	if c.store == nil {
		c.log.Warn("record_not_persisted", slog.String("conversation_id", key), slog.String("reason", "no store configured"))
		return
	}
	c.persisting.Add(1)
	go func() {
		defer c.persisting.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
		defer cancel()
		start := time.Now()
		if err := c.store.Save(pctx, rec); err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonPersistence)
			c.obs.RecordEvent(metrics.NewEvent(metrics.EventPersistFailed, 0, nil))
			c.log.Error("record_persist_failed",
				slog.String("conversation_id", key),
				slog.String("error", err.Error()),
				slog.String("reason_code", string(errorsx.Reason(err))))
			return
		}
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventRecordPersisted, time.Since(start).Seconds(), nil))
		c.log.Info("record_persisted", slog.String("conversation_id", key))
	}()
}

// Wait blocks until all background saves have finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.persisting.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// extractValue prefers the entity matching the field and falls back to the
// whole utterance.
func extractValue(field FieldSpec, res nlu.Result, raw string) string {
	if e, ok := res.Find(field.entityCategory()); ok && strings.TrimSpace(e.Text) != "" {
		return e.Text
	}
	return raw
}
