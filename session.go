// Buzzbox session state.
//
// A Session owns the three structures behind one live round: the participant
// registry, the current round configuration, and the ordered reaction ledger.
// It is plain state with no locking of its own; the owning Hub calls into it
// from a single dispatch goroutine, so every mutation runs to completion
// before the next inbound message is handled. Arrival order at the dispatch
// queue is what assigns reaction positions.

package main

import (
	"time"
)

// Mode enumerates the round configurations a host can select.
type Mode string

const (
	// ModeWaiting is the initial state before the host starts any round.
	ModeWaiting Mode = "waiting"
	// ModeBuzzer treats a reaction as a single press with no payload.
	ModeBuzzer Mode = "buzzer"
	// ModeAnswer treats a reaction as a free-text submission.
	ModeAnswer Mode = "answer"
)

func parseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeBuzzer, ModeAnswer:
		return Mode(s), true
	}
	return ModeWaiting, false
}

// Participant is a registry entry. ID is the persistent identity minted by
// the participant's browser and reused across reconnects; SessionID is the
// identity of the current live connection and changes on every reconnect.
type Participant struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
}

// Reaction is one recorded buzz or answer. Position is the 1-based rank by
// arrival order within the current round. Text is empty in buzzer mode.
type Reaction struct {
	PlayerID  string    `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text,omitempty"`
}

// Session holds the registry, round state, and ledger for one live session.
// Construct one per Hub; tests construct their own to run many sessions in
// a single process.
type Session struct {
	participants []*Participant
	mode         Mode
	reactions    []Reaction
}

func newSession() *Session {
	return &Session{
		mode: ModeWaiting,
	}
}

// Login binds a connection to a persistent identity. A later login with a
// known player ID supersedes the stored connection and name in place, so a
// reconnect never produces a second registry entry. The participant's
// enablement is preserved across reconnects; a participant that already
// reacted this round stays disabled after rejoining.
func (s *Session) Login(sessionID, playerID, name string) (participant *Participant, rejoined bool) {
	for _, p := range s.participants {
		if p.ID == playerID {
			p.SessionID = sessionID
			p.Name = name
			return p, true
		}
	}

	p := &Participant{
		ID:        playerID,
		SessionID: sessionID,
		Name:      name,
		Enabled:   true,
	}
	s.participants = append(s.participants, p)

	return p, false
}

// Disconnect removes the registry entry bound to the given connection.
// Connections that never completed a login have no entry, so a miss is a
// silent no-op; disconnects race with incomplete logins by design.
func (s *Session) Disconnect(sessionID string) (*Participant, bool) {
	for i, p := range s.participants {
		if p.SessionID == sessionID {
			s.participants = append(s.participants[:i], s.participants[i+1:]...)
			return p, true
		}
	}
	return nil, false
}

// Lookup resolves a persistent identity to its registry entry. A miss is
// recoverable; reactions can arrive for participants the registry already
// evicted.
func (s *Session) Lookup(playerID string) (*Participant, bool) {
	for _, p := range s.participants {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

// React appends a reaction for the given participant if they are registered
// and still enabled. Acceptance flips the participant's enablement in the
// same step, which is what makes a repeat buzz a no-op regardless of how
// stale the client's own view is.
func (s *Session) React(playerID, text string) (*Participant, *Reaction, bool) {
	p, ok := s.Lookup(playerID)
	if !ok || !p.Enabled {
		return nil, nil, false
	}

	p.Enabled = false

	reaction := Reaction{
		PlayerID:  p.ID,
		Name:      p.Name,
		Position:  len(s.reactions) + 1,
		Timestamp: time.Now(),
		Text:      text,
	}
	s.reactions = append(s.reactions, reaction)

	return p, &reaction, true
}

// NewRound sets the mode, clears the ledger, and re-enables every registered
// participant. Starting a round and switching modes are the same transition.
func (s *Session) NewRound(mode Mode) {
	s.mode = mode
	s.Reset()
}

// Reset clears the ledger and re-enables everyone without changing the mode.
func (s *Session) Reset() {
	s.reactions = nil
	for _, p := range s.participants {
		p.Enabled = true
	}
}

func (s *Session) Mode() Mode {
	return s.mode
}

// Locked reports whether any reaction has been recorded since the last
// round transition.
func (s *Session) Locked() bool {
	return len(s.reactions) > 0
}

// Participants returns a snapshot of the registry in login order.
func (s *Session) Participants() []Participant {
	snapshot := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		snapshot = append(snapshot, *p)
	}
	return snapshot
}

// Reactions returns a snapshot of the ledger in arrival order.
func (s *Session) Reactions() []Reaction {
	snapshot := make([]Reaction, len(s.reactions))
	copy(snapshot, s.reactions)
	return snapshot
}
