// Package webchat serves the interview to browsers over a websocket. Every
// connection is one conversation.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/logging"
	"github.com/harunnryd/sprachbot/pkg/transports"
)

const defaultAttachmentLimit = 1 << 20

type Config struct {
	ServerAddr         string   `mapstructure:"server_addr"`
	Path               string   `mapstructure:"path"`
	AllowAnyOrigin     bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	MaxAttachmentBytes int      `mapstructure:"max_attachment_bytes"`
	MaxMessageBytes    int64    `mapstructure:"max_message_bytes"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8081"
	}
	if c.Path == "" {
		c.Path = "/chat"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	if c.MaxAttachmentBytes <= 0 {
		c.MaxAttachmentBytes = defaultAttachmentLimit
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 16 << 20
	}
	return c
}

// Activity is the JSON frame exchanged with the browser.
type Activity struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Text           string          `json:"text,omitempty"`
	Attachments    []ActivityMedia `json:"attachments,omitempty"`
}

type ActivityMedia struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl"`
}

type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	recvCh   chan transports.Turn
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	draining atomic.Bool
	stopped  atomic.Bool
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		recvCh:   make(chan transports.Turn, 512),
		logger:   logging.NewComponentLogger(slog.Default(), "webchat_transport"),
		sessions: make(map[string]*session),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "webchat" }

func (t *Transport) Recv() <-chan transports.Turn { return t.recvCh }

func (t *Transport) AttachmentLimit() int { return t.cfg.MaxAttachmentBytes }

func (t *Transport) ReadyFields() map[string]any {
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return map[string]any{"websocket_url": "ws://" + addr + t.cfg.Path}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
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
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("webchat_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(t.cfg.Path, t)
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
	t.mu.Lock()
	for _, sess := range t.sessions {
		_ = sess.close()
	}
	t.sessions = make(map[string]*session)
	t.mu.Unlock()
	close(t.recvCh)
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(t.cfg.MaxMessageBytes)

	id := "webchat:" + uuid.NewString()
	sess := t.attach(id, conn)
	defer t.detach(id)

	_ = sess.enqueue(Activity{Type: "conversation", ConversationID: id})
	t.emit(transports.Turn{ConversationID: id, TraceID: uuid.NewString(), Kind: transports.TurnStart, ReceivedAt: time.Now()})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		turn, ok, err := parseActivity(id, raw)
		if err != nil {
			t.logger.Debug("webchat_activity_ignored", "conversation_id", id, "error", err.Error())
			continue
		}
		if ok {
			t.emit(turn)
		}
	}
	t.emit(transports.Turn{ConversationID: id, TraceID: uuid.NewString(), Kind: transports.TurnEnd, ReceivedAt: time.Now()})
}

// parseActivity turns a browser frame into a Turn; ok is false for frames
// that carry nothing to process.
func parseActivity(id string, raw []byte) (transports.Turn, bool, error) {
	var act Activity
	if err := json.Unmarshal(raw, &act); err != nil {
		return transports.Turn{}, false, err
	}
	if act.Type != "" && act.Type != "message" {
		return transports.Turn{}, false, nil
	}
	turn := transports.Turn{
		ConversationID: id,
		TraceID:        uuid.NewString(),
		Kind:           transports.TurnMessage,
		Text:           strings.TrimSpace(act.Text),
		ReceivedAt:     time.Now(),
	}
	for _, a := range act.Attachments {
		if a.ContentURL == "" {
			continue
		}
		turn.Attachments = append(turn.Attachments, transports.Attachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			URL:         a.ContentURL,
		})
	}
	if turn.Text == "" && len(turn.Attachments) == 0 {
		return transports.Turn{}, false, nil
	}
	return turn, true, nil
}

// Send renders attachments as data: URLs.
func (t *Transport) Send(ctx context.Context, conversationID string, msg transports.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess := t.session(conversationID)
	if sess == nil {
		return errorsx.Wrap(fmt.Errorf("webchat conversation %s is not connected", conversationID), errorsx.ReasonTransportSend)
	}
	act := Activity{Type: "message", Text: msg.Text}
	if att := msg.Attachment; att != nil {
		if len(att.Data) > t.cfg.MaxAttachmentBytes {
			return errorsx.Wrap(fmt.Errorf("attachment %s is %d bytes, limit %d", att.Name, len(att.Data), t.cfg.MaxAttachmentBytes), errorsx.ReasonTransportSend)
		}
		act.Attachments = []ActivityMedia{{
			Name:        att.Name,
			ContentType: att.ContentType,
			ContentURL:  transports.EncodeDataURL(att.ContentType, att.Data),
		}}
	}
	if err := sess.enqueue(act); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return nil
}

func (t *Transport) emit(turn transports.Turn) {
	if t.stopped.Load() {
		return
	}
	select {
	case t.recvCh <- turn:
	default:
		t.logger.Warn("webchat_inbound_dropped", "conversation_id", turn.ConversationID, "kind", turn.Kind.String())
	}
}

func (t *Transport) attach(id string, conn *websocket.Conn) *session {
	sess := &session{conn: conn, sendCh: make(chan []byte, 64)}
	t.mu.Lock()
	t.sessions[id] = sess
	t.mu.Unlock()
	go sess.loop()
	return sess
}

func (t *Transport) detach(id string) {
	t.mu.Lock()
	sess := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()
	if sess != nil {
		_ = sess.close()
	}
}

func (t *Transport) session(id string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[id]
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

type session struct {
	conn   *websocket.Conn
	sendCh chan []byte
	mu     sync.Mutex
	closed atomic.Bool
}

var errSessionClosed = errors.New("webchat session closed")

func (s *session) enqueue(act Activity) error {
	b, err := json.Marshal(act)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errSessionClosed
	}
	select {
	case s.sendCh <- b:
		return nil
	default:
		return errors.New("webchat send buffer full")
	}
}

func (s *session) loop() {
	for msg := range s.sendCh {
		_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *session) close() error {
	s.mu.Lock()
	if s.closed.CompareAndSwap(false, true) {
		close(s.sendCh)
	}
	s.mu.Unlock()
	return s.conn.Close()
}

var _ transports.Transport = (*Transport)(nil)
