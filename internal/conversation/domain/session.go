// Package domain holds the conversation engine's core types. A Session is the
// full state of one phone call; everything in it is JSON-serializable so the
// registry can persist it in Redis without translation.
package domain

import (
	"time"

	"github.com/isaacasamoah/piano-move-ai/internal/quote"
)

// State is the lifecycle phase of a session.
type State string

const (
	// StateActive means the engine is still collecting fields.
	StateActive State = "ACTIVE"
	// StateComplete means every field is confirmed and a quote was produced.
	StateComplete State = "COMPLETE"
	// StateEscalated means the call has been handed to a human. Terminal: no
	// later turn can move the session back to ACTIVE.
	StateEscalated State = "ESCALATED"
)

// TranscriptEntry is one line of the call transcript.
type TranscriptEntry struct {
	Role string    `json:"role"` // "customer" or "agent"
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is the complete state of one call.
type Session struct {
	ID               string            `json:"id"`
	BusinessID       string            `json:"businessId"`
	CallerNumber     string            `json:"callerNumber"`
	State            State             `json:"state"`
	Fields           map[string]string `json:"fields"`
	Attempts         map[string]int    `json:"attempts"`
	CurrentField     string            `json:"currentField"`
	Transcript       []TranscriptEntry `json:"transcript"`
	EscalationReason string            `json:"escalationReason,omitempty"`
	Quote            *quote.Breakdown  `json:"quote,omitempty"`
	StartedAt        time.Time         `json:"startedAt"`
}

// NewSession creates an active session with empty collection state.
func NewSession(id, businessID, callerNumber string) *Session {
	return &Session{
		ID:           id,
		BusinessID:   businessID,
		CallerNumber: callerNumber,
		State:        StateActive,
		Fields:       make(map[string]string),
		Attempts:     make(map[string]int),
		StartedAt:    time.Now(),
	}
}

// Confirm records a confirmed field value and clears its attempt counter.
// A field once confirmed stays confirmed; later turns can refine the value but
// never remove it.
func (s *Session) Confirm(field, value string) {
	s.Fields[field] = value
	delete(s.Attempts, field)
}

// RecordAttempt bumps the clarification counter for a field and reports the
// new count.
func (s *Session) RecordAttempt(field string) int {
	s.Attempts[field]++
	return s.Attempts[field]
}

// MissingFields returns the schema fields not yet confirmed, in the given
// declaration order.
func (s *Session) MissingFields(order []string) []string {
	missing := make([]string, 0, len(order))
	for _, name := range order {
		if _, ok := s.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// AppendTurn adds one transcript line.
func (s *Session) AppendTurn(role, text string) {
	if text == "" {
		return
	}
	s.Transcript = append(s.Transcript, TranscriptEntry{Role: role, Text: text, At: time.Now()})
}

// TurnResult is what the engine returns to the transport layer for one turn.
type TurnResult struct {
	Reply         string
	State         State
	Complete      bool
	Escalated     bool
	ShouldEndCall bool
	// NextField names the field the reply is asking about, empty once the
	// session is terminal.
	NextField string
	Quote     *quote.Breakdown
}
