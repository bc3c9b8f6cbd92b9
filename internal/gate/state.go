package gate

import "errors"

var (
	// ErrNotIdle is returned by Begin when a check is running or a verdict is held.
	ErrNotIdle = errors.New("availability check not idle")
	// ErrExhausted is returned by Begin when the attempt budget is spent.
	ErrExhausted = errors.New("availability check attempts exhausted")
)

// Status is the availability verdict of the email field.
type Status uint8

const (
	StatusIdle Status = iota
	StatusChecking
	StatusExists
	StatusAvailable
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusChecking:
		return "checking"
	case StatusExists:
		return "exists"
	case StatusAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// Ticket identifies one in-flight lookup.
type Ticket struct {
	ID    uint64
	Email string
}

// State is an immutable snapshot; every transition returns a new value.
type State struct {
	status   Status
	email    string
	ticket   uint64
	attempts int
	max      int
	seq      uint64
}

// New returns an idle state allowing maxAttempts checks.
func New(maxAttempts int) State {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return State{max: maxAttempts}
}

func (s State) Status() Status   { return s.status }
func (s State) Attempts() int    { return s.attempts }
func (s State) MaxAttempts() int { return s.max }

// Email is the normalized address the current check or verdict belongs to.
func (s State) Email() string { return s.email }

// Exhausted reports whether no further check may be issued before a reset.
func (s State) Exhausted() bool { return s.attempts >= s.max }

// VerdictFor reports the status as seen by the given normalized email: anything
// bound to another address reads as idle.
func (s State) VerdictFor(email string) Status {
	if s.status == StatusIdle || s.email != email {
		return StatusIdle
	}
	return s.status
}

// Begin moves idle to checking for email and spends one attempt.
func (s State) Begin(email string) (State, Ticket, error) {
	if s.status != StatusIdle {
		return s, Ticket{}, ErrNotIdle
	}
	if s.Exhausted() {
		return s, Ticket{}, ErrExhausted
	}

	s.seq++
	s.status = StatusChecking
	s.email = email
	s.ticket = s.seq
	s.attempts++
	return s, Ticket{ID: s.ticket, Email: email}, nil
}

// Resolve applies a lookup verdict. The second result is false, and the state is
// unchanged, when t no longer describes the running check.
func (s State) Resolve(t Ticket, exists bool) (State, bool) {
	if !s.owns(t) {
		return s, false
	}
	if exists {
		s.status = StatusExists
	} else {
		s.status = StatusAvailable
	}
	s.ticket = 0
	return s, true
}

// Fail returns a running check to idle. The attempt stays spent.
func (s State) Fail(t Ticket) (State, bool) {
	if !s.owns(t) {
		return s, false
	}
	return s.idle(), true
}

// Edited drops whatever check or verdict was held because the input changed.
func (s State) Edited() State {
	return s.idle()
}

// Reset returns to the initial state with a fresh attempt budget. The ticket
// sequence survives so tickets from before the reset never match again.
func (s State) Reset() State {
	return State{max: s.max, seq: s.seq}
}

func (s State) owns(t Ticket) bool {
	return s.status == StatusChecking && t.ID != 0 && s.ticket == t.ID && s.email == t.Email
}

func (s State) idle() State {
	s.status = StatusIdle
	s.email = ""
	s.ticket = 0
	return s
}
