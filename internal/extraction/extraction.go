// Package extraction turns free-form utterances into structured field values.
// Two strategies implement the same contract: a model-backed extractor and a
// deterministic keyword matcher used whenever the model is unavailable.
//
// Both strategies honor one hard rule: an ambiguous value is surfaced as a
// clarification, never silently promoted to a confirmed value.
package extraction

import (
	"context"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
)

// Turn is one transcript entry passed as extractor context.
type Turn struct {
	Role string `json:"role"` // "customer" or "agent"
	Text string `json:"text"`
}

// Request carries everything a strategy needs for one extraction pass.
type Request struct {
	Utterance  string
	Business   *bizconfig.Business
	Known      map[string]string // field name -> confirmed canonical value
	AskedField string            // the field the previous reply asked about, if any
	Transcript []Turn
}

// FieldResult is the outcome for a single field in one turn.
type FieldResult struct {
	// Value is the canonical value when confirmed (enum slug, strconv forms
	// for integers and booleans, verbatim text for addresses).
	Value string
	// Ambiguous marks the field as needing clarification; Value is then at
	// most a provisional hint and must not be treated as confirmed.
	Ambiguous bool
	// Reason explains why the field is ambiguous.
	Reason string
}

// EscalationKind classifies why a strategy wants a human.
type EscalationKind string

const (
	EscalationOutOfScope     EscalationKind = "out_of_scope"
	EscalationHumanRequested EscalationKind = "human_requested"
)

// Escalation is an explicit handoff signal from a strategy.
type Escalation struct {
	Kind   EscalationKind
	Reason string
}

// Result is the contract both strategies produce.
type Result struct {
	// Fields holds per-field outcomes; absent fields were untouched this turn.
	Fields map[string]FieldResult
	// Reply is the natural-language response to speak next.
	Reply string
	// Escalate is non-nil when the strategy wants a human takeover.
	Escalate *Escalation
}

// Extractor is the strategy contract.
type Extractor interface {
	Extract(ctx context.Context, req Request) (Result, error)
}
