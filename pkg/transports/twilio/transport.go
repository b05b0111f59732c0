// Package twilio is the SMS/MMS/WhatsApp channel: inbound messages arrive
// on a signed webhook, replies go out through the Messages REST API.
package twilio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/transports"
	twilioclient "github.com/twilio/twilio-go/client"
)

const defaultAttachmentLimit = 5 << 20

type Config struct {
	ServerAddr  string `mapstructure:"server_addr"`
	PublicURL   string `mapstructure:"public_url"`
	AuthToken   string `mapstructure:"auth_token"`
	AccountSID  string `mapstructure:"account_sid"`
	From        string `mapstructure:"from"`
	WebhookPath string `mapstructure:"webhook_path"`
	MediaPath   string `mapstructure:"media_path"`
	// MediaTTL is how long hosted reply audio stays downloadable.
	MediaTTL           time.Duration `mapstructure:"media_ttl"`
	MaxAttachmentBytes int           `mapstructure:"max_attachment_bytes"`
	MaxMediaBytes      int           `mapstructure:"max_media_bytes"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.WebhookPath == "" {
		c.WebhookPath = "/messages"
	}
	if c.MediaPath == "" {
		c.MediaPath = "/media/"
	}
	if !strings.HasSuffix(c.MediaPath, "/") {
		c.MediaPath += "/"
	}
	if c.MediaTTL <= 0 {
		c.MediaTTL = 15 * time.Minute
	}
	if c.MaxAttachmentBytes <= 0 {
		c.MaxAttachmentBytes = defaultAttachmentLimit
	}
	if c.MaxMediaBytes <= 0 {
		c.MaxMediaBytes = transports.DefaultMaxMediaBytes
	}
	return c
}

type Transport struct {
	cfg    Config
	server *http.Server
	recvCh chan transports.Turn
	media  *mediaStore
	logger *slog.Logger

	messages   messageCreator
	clientOnce sync.Once
	httpClient *http.Client

	draining atomic.Bool
	stopped  atomic.Bool
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	return &Transport{
		cfg:        cfg,
		recvCh:     make(chan transports.Turn, 512),
		media:      newMediaStore(cfg.MediaTTL),
		logger:     logging.NewComponentLogger(slog.Default(), "twilio_transport"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Transport) Name() string { return "twilio" }

func (t *Transport) Recv() <-chan transports.Turn { return t.recvCh }

func (t *Transport) AttachmentLimit() int { return t.cfg.MaxAttachmentBytes }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"webhook_url": t.publicURL(t.cfg.WebhookPath),
		"media_url":   t.publicURL(t.cfg.MediaPath),
		"from":        t.cfg.From,
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return errors.New("missing twilio credentials")
	}
	if t.cfg.From == "" {
		return errors.New("twilio sender number (from) is required")
	}
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go t.media.sweepLoop(ctx, time.Minute)
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Handler exposes the webhook and media routes.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.WebhookPath, t.handleMessage)
	mux.HandleFunc(t.cfg.MediaPath, t.handleMedia)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (t *Transport) Stop() error {
	if !t.stopped.CompareAndSwap(false, true) {
		return nil
	}
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	close(t.recvCh)
	return nil
}

func (t *Transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !t.validateTwilioRequest(r) {
		t.logger.Warn("twilio_invalid_signature", "reason_code", string(errorsx.ReasonTransportInvalidSignature))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	turn, err := parseInbound(r)
	if err != nil {
		t.logger.Warn("twilio_inbound_rejected", "error", err.Error())
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	select {
	case t.recvCh <- turn:
	default:
		t.logger.Warn("twilio_inbound_dropped", "conversation_id", turn.ConversationID, "reason", "queue_full")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}

// parseInbound maps the webhook form to a Turn. The sender address is the
// conversation id so every number gets its own interview.
func parseInbound(r *http.Request) (transports.Turn, error) {
	from := strings.TrimSpace(r.PostFormValue("From"))
	if from == "" {
		return transports.Turn{}, errors.New("missing From")
	}
	traceID := r.PostFormValue("MessageSid")
	if traceID == "" {
		traceID = uuid.NewString()
	}
	turn := transports.Turn{
		ConversationID: from,
		TraceID:        traceID,
		Kind:           transports.TurnMessage,
		Text:           strings.TrimSpace(r.PostFormValue("Body")),
		ReceivedAt:     time.Now(),
	}
	n, _ := strconv.Atoi(r.PostFormValue("NumMedia"))
	for i := 0; i < n; i++ {
		u := r.PostFormValue(fmt.Sprintf("MediaUrl%d", i))
		if u == "" {
			continue
		}
		turn.Attachments = append(turn.Attachments, transports.Attachment{
			URL:         u,
			ContentType: r.PostFormValue(fmt.Sprintf("MediaContentType%d", i)),
		})
	}
	return turn, nil
}

// FetchMedia downloads an inbound attachment with the account credentials.
func (t *Transport) FetchMedia(ctx context.Context, att transports.Attachment) ([]byte, error) {
	return transports.FetchMedia(ctx, att, transports.FetchOptions{
		Client:   t.httpClient,
		MaxBytes: t.cfg.MaxMediaBytes,
		Username: t.cfg.AccountSID,
		Password: t.cfg.AuthToken,
	})
}

func (t *Transport) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, t.cfg.MediaPath)
	item, ok := t.media.get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", item.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(item.data)))
	w.Header().Set("Cache-Control", "private, max-age=60")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(item.data)
}

func (t *Transport) validateTwilioRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if t.cfg.AuthToken == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	return validator.ValidateBody(t.requestURL(r), body, signature)
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		base := strings.TrimRight(t.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(t.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (t *Transport) publicURL(path string) string {
	if t.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(t.cfg.PublicURL) + path
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + path
}

func normalizePublicURL(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	return strings.TrimRight(v, "/")
}

var _ transports.Transport = (*Transport)(nil)
