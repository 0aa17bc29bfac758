// Package cancel implements cooperative, advisory cancellation: a Source
// owned by the dispatcher for one incoming request, and a Token handed to
// the handler running that request. Cancellation is sticky — once
// requested it stays requested — and handlers must poll it; nothing here
// interrupts a running handler.
package cancel

import "sync/atomic"

type state struct {
	cancelled atomic.Bool
}

// Source requests cancellation of the request it was created for.
type Source struct {
	state *state
}

// Token lets a running handler observe cancellation requested on its Source.
type Token struct {
	state *state
}

// New creates a fresh, not-yet-cancelled Source/Token pair.
func New() (Source, Token) {
	s := &state{}
	return Source{state: s}, Token{state: s}
}

// Cancel marks the associated request as cancelled. Idempotent.
func (s Source) Cancel() {
	if s.state == nil {
		return
	}
	s.state.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called.
func (s Source) IsCancelled() bool {
	return s.state != nil && s.state.cancelled.Load()
}

// Token returns the token paired with this source.
func (s Source) Token() Token {
	return Token{state: s.state}
}

// IsCancelled reports whether the paired Source's Cancel has been called.
func (t Token) IsCancelled() bool {
	return t.state != nil && t.state.cancelled.Load()
}
