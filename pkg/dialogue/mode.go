package dialogue

import "time"

// Mode is the interview state of a session.
type Mode int

const (
	AwaitingInformation Mode = iota
	AwaitingConfirmation
)

func (m Mode) String() string {
	switch m {
	case AwaitingInformation:
		return "AWAITING_INFORMATION"
	case AwaitingConfirmation:
		return "AWAITING_CONFIRMATION"
	default:
		return "UNKNOWN"
	}
}

var validTransitions = map[Mode][]Mode{
	AwaitingInformation:  {AwaitingInformation, AwaitingConfirmation},
	AwaitingConfirmation: {AwaitingInformation},
}

func transitionValid(from, to Mode) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StateChange represents a mode transition of one session.
type StateChange struct {
	SessionKey string
	Field      string
	FromMode   Mode
	ToMode     Mode
	Timestamp  time.Time
	Reason     string
}

// StateListener observes mode changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(StateChange)

func (f StateListenerFunc) OnStateChange(event StateChange) { f(event) }

// InvalidTransitionError represents an invalid mode transition attempt.
type InvalidTransitionError struct {
	From Mode
	To   Mode
}

func (e *InvalidTransitionError) Error() string {
	return "invalid mode transition from " + e.From.String() + " to " + e.To.String()
}
