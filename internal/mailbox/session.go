package mailbox

import (
	"context"
	"fmt"
	"time"
)

// SessionState is one phase of the mail-retrieval protocol.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnected
	StateMailboxOpen
	StateSearching
	StateFetching
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateMailboxOpen:
		return "mailbox-open"
	case StateSearching:
		return "searching"
	case StateFetching:
		return "fetching"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Session is the stateful protocol surface the reader drives through
// Disconnected → Connected → MailboxOpen → Searching → Fetching →
// Closing → Disconnected. Implementations must never mutate
// server-side read/unseen flags.
type Session interface {
	// Connect dials and authenticates.
	Connect(ctx context.Context) error

	// Open selects the inbox read-only.
	Open(ctx context.Context) error

	// Search returns the UIDs of messages received since the given
	// time whose From header matches any of the sender addresses.
	Search(ctx context.Context, since time.Time, senders []string) ([]string, error)

	// Fetch streams the raw bodies of the given UIDs, invoking fn for
	// each. fn may hand work to other goroutines; Fetch itself only
	// guarantees delivery, not processing.
	Fetch(ctx context.Context, uids []string, fn func(RawMessage)) error

	// Close logs out and drops the connection.
	Close() error

	// State reports the current protocol phase.
	State() SessionState
}

// stateMachine tracks and validates protocol phase transitions.
type stateMachine struct {
	state SessionState
}

func (m *stateMachine) transition(from, to SessionState) error {
	if m.state != from {
		return fmt.Errorf("mailbox: cannot move to %s from %s (want %s)", to, m.state, from)
	}
	m.state = to
	return nil
}

func (m *stateMachine) force(to SessionState) {
	m.state = to
}

func (m *stateMachine) State() SessionState {
	return m.state
}
