// Package console runs one interview on stdin/stdout. A line of the form
// "/audio <file>" sends the file as a voice message.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/sprachbot/pkg/transports"
)

const ConversationID = "console"

type Config struct {
	// OutputDir receives audio replies; empty drops them.
	OutputDir string `mapstructure:"output_dir"`
	Prompt    string `mapstructure:"prompt"`
}

type Transport struct {
	cfg    Config
	in     io.Reader
	out    io.Writer
	outMu  sync.Mutex
	recvCh chan transports.Turn
	closed atomic.Bool
	mu     sync.Mutex
}

func New(cfg Config, in io.Reader, out io.Writer) *Transport {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Transport{cfg: cfg, in: in, out: out, recvCh: make(chan transports.Turn, 64)}
}

func (t *Transport) Name() string { return "console" }

func (t *Transport) Recv() <-chan transports.Turn { return t.recvCh }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if t.cfg.OutputDir != "" {
		if err := os.MkdirAll(t.cfg.OutputDir, 0o755); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	go t.readLoop()
	return nil
}

func (t *Transport) readLoop() {
	t.emit(transports.Turn{Kind: transports.TurnStart})
	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		turn, err := parseLine(line)
		if err != nil {
			t.printf("! %v\n", err)
			continue
		}
		t.emit(turn)
	}
	t.emit(transports.Turn{Kind: transports.TurnEnd})
}

func parseLine(line string) (transports.Turn, error) {
	path, ok := strings.CutPrefix(line, "/audio ")
	if !ok {
		return transports.Turn{Kind: transports.TurnMessage, Text: line}, nil
	}
	path = strings.TrimSpace(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return transports.Turn{}, err
	}
	return transports.Turn{
		Kind: transports.TurnMessage,
		Attachments: []transports.Attachment{{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		}},
	}, nil
}

func (t *Transport) emit(turn transports.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	turn.ConversationID = ConversationID
	turn.TraceID = uuid.NewString()
	turn.ReceivedAt = time.Now()
	select {
	case t.recvCh <- turn:
	default:
		t.printf("! busy, input dropped\n")
	}
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.recvCh)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Send(ctx context.Context, conversationID string, msg transports.Message) error {
	if msg.Text != "" {
		t.printf("bot> %s\n", msg.Text)
	}
	att := msg.Attachment
	if att == nil {
		return nil
	}
	if t.cfg.OutputDir == "" {
		t.printf("bot> [%s, %d bytes]\n", att.Name, len(att.Data))
		return nil
	}
	path := filepath.Join(t.cfg.OutputDir, filepath.Base(att.Name))
	if err := os.WriteFile(path, att.Data, 0o644); err != nil {
		return err
	}
	t.printf("bot> [%s]\n", path)
	return nil
}

func (t *Transport) printf(format string, args ...any) {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	_, _ = fmt.Fprintf(t.out, format, args...)
}

var _ transports.Transport = (*Transport)(nil)
