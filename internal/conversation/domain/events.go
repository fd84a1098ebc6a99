package domain

import (
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/quote"
)

// Event names for subscribers.
const (
	EventQuoteReady       = "conversation.quote_ready"
	EventSessionEscalated = "conversation.session_escalated"
)

// QuoteReady is published exactly once per session, when the last field is
// confirmed and the quote has been computed. Delivery collaborators (SMS,
// email) subscribe to it.
type QuoteReady struct {
	events.BaseEvent
	CallID       string
	BusinessID   string
	CallerNumber string
	Values       map[string]string
	Quote        quote.Breakdown
}

// EventName implements events.Event.
func (e QuoteReady) EventName() string { return EventQuoteReady }

// SessionEscalated is published when a session transitions to ESCALATED,
// whether by explicit request, out-of-scope detection, or exhausted
// clarification attempts.
type SessionEscalated struct {
	events.BaseEvent
	CallID       string
	BusinessID   string
	CallerNumber string
	Reason       string
	Values       map[string]string
}

// EventName implements events.Event.
func (e SessionEscalated) EventName() string { return EventSessionEscalated }
