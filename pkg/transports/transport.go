package transports

import (
	"context"
	"time"
)

// TurnKind distinguishes conversation lifecycle events from user messages.
type TurnKind int

const (
	// TurnMessage carries user text and/or attachments.
	TurnMessage TurnKind = iota
	// TurnStart is sent by channels that know when a conversation opens.
	TurnStart
	// TurnEnd is sent when the channel closes the conversation.
	TurnEnd
)

func (k TurnKind) String() string {
	switch k {
	case TurnStart:
		return "start"
	case TurnEnd:
		return "end"
	default:
		return "message"
	}
}

// Attachment is a file exchanged with the user. Inbound attachments carry a
// URL (http(s) or data:); outbound ones carry Data.
type Attachment struct {
	Name        string
	ContentType string
	URL         string
	Data        []byte
}

// Turn is one inbound event of a conversation.
type Turn struct {
	ConversationID string
	TraceID        string
	Kind           TurnKind
	Text           string
	Attachments    []Attachment
	ReceivedAt     time.Time
}

// Message is one outbound message. A message holds text, an attachment or both.
type Message struct {
	Text       string
	Attachment *Attachment
}

// Transport defines a vendor-agnostic chat channel.
// Implementations are responsible for their own network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan Turn
	Send(ctx context.Context, conversationID string, msg Message) error
}

// AttachmentLimiter reports the largest outbound attachment in bytes the
// channel accepts. Zero means no limit.
type AttachmentLimiter interface {
	AttachmentLimit() int
}

// MediaFetcher downloads inbound attachments for channels that need
// credentials to do so.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, att Attachment) ([]byte, error)
}

// ReadyReporter allows transports to expose readiness metadata (e.g., webhook URLs).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}

// AttachmentLimit returns the limit of t, or 0.
func AttachmentLimit(t Transport) int {
	if l, ok := t.(AttachmentLimiter); ok {
		return l.AttachmentLimit()
	}
	return 0
}
