package dialogue

import (
	"context"
	"time"
)

// Record is the collected answer set of one interview.
type Record struct {
	Values    map[string]string
	CreatedAt time.Time
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Record{Values: values, CreatedAt: r.CreatedAt}
}

// Persister stores completed records.
type Persister interface {
	Save(ctx context.Context, rec Record) error
}

// Session is the interview state of one conversation. A session is not
// safe for concurrent use; callers serialize turns per conversation.
type Session struct {
	Key     string
	Pending []FieldSpec
	Mode    Mode
	Record  Record
	// Voice is set once the user has sent audio in this conversation.
	Voice   bool
	Created time.Time

	pendingValue string
	hasPending   bool
}

func newSession(key string, fields []FieldSpec, now time.Time) *Session {
	pending := make([]FieldSpec, len(fields))
	copy(pending, fields)
	return &Session{
		Key:     key,
		Pending: pending,
		Mode:    AwaitingInformation,
		Record:  Record{Values: make(map[string]string, len(fields)), CreatedAt: now},
		Created: now,
	}
}

// Current returns the field being asked for.
func (s *Session) Current() (FieldSpec, bool) {
	if len(s.Pending) == 0 {
		return FieldSpec{}, false
	}
	return s.Pending[0], true
}

// PendingValue returns the validated value awaiting confirmation.
func (s *Session) PendingValue() (string, bool) {
	return s.pendingValue, s.hasPending
}

// Done reports whether every field has been confirmed.
func (s *Session) Done() bool {
	return len(s.Pending) == 0
}
