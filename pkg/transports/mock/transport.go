package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/sprachbot/pkg/transports"
)

// Sent is one outbound message captured by the mock.
type Sent struct {
	ConversationID string
	Message        transports.Message
}

// Transport is an in-memory transport for local testing and integration.
// It implements the transports.Transport interface without any network dependency.
type Transport struct {
	recvCh chan transports.Turn
	sentCh chan Sent
	closed atomic.Bool
	mu     sync.Mutex

	// Limit is reported as the attachment limit.
	Limit int
	// SendErr, when set, fails every Send.
	SendErr error
}

func New() *Transport {
	return &Transport{
		recvCh: make(chan transports.Turn, 256),
		sentCh: make(chan Sent, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.recvCh)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Recv() <-chan transports.Turn { return t.recvCh }

func (t *Transport) AttachmentLimit() int { return t.Limit }

func (t *Transport) Send(ctx context.Context, conversationID string, msg transports.Message) error {
	if t.SendErr != nil {
		return t.SendErr
	}
	if t.closed.Load() {
		return errors.New("mock transport closed")
	}
	select {
	case t.sentCh <- Sent{ConversationID: conversationID, Message: msg}:
	default:
	}
	return nil
}

// Push injects an inbound turn into the transport.
func (t *Transport) Push(turn transports.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	if turn.ReceivedAt.IsZero() {
		turn.ReceivedAt = time.Now()
	}
	select {
	case t.recvCh <- turn:
	default:
	}
}

// Sent exposes outbound messages for inspection.
func (t *Transport) Sent() <-chan Sent { return t.sentCh }

var _ transports.Transport = (*Transport)(nil)
