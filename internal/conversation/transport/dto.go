// Package transport defines the request and response shapes for the call
// webhook endpoints.
package transport

import (
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/internal/quote"
)

// StartCallRequest is the payload the telephony provider sends when a call
// connects.
type StartCallRequest struct {
	CallID string `json:"callId" binding:"required"`
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
}

// TurnRequest carries one transcribed customer utterance. An empty utterance
// is valid: silence still counts as a turn.
type TurnRequest struct {
	Utterance string `json:"utterance"`
}

// TurnResponse tells the telephony provider what to say and whether to keep
// the call open.
type TurnResponse struct {
	Reply         string           `json:"reply"`
	State         string           `json:"state"`
	Complete      bool             `json:"complete"`
	Escalated     bool             `json:"escalated"`
	ShouldEndCall bool             `json:"shouldEndCall"`
	NextFieldHint string           `json:"nextFieldHint,omitempty"`
	Quote         *quote.Breakdown `json:"quote,omitempty"`
}

// FromTurnResult maps an engine result to the wire shape.
func FromTurnResult(r domain.TurnResult) TurnResponse {
	return TurnResponse{
		Reply:         r.Reply,
		State:         string(r.State),
		Complete:      r.Complete,
		Escalated:     r.Escalated,
		ShouldEndCall: r.ShouldEndCall,
		NextFieldHint: r.NextField,
		Quote:         r.Quote,
	}
}

// StatsResponse reports live session counts.
type StatsResponse struct {
	ActiveCalls int `json:"activeCalls"`
}
