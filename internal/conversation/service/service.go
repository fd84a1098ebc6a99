// Package service implements the conversation engine: the turn loop that
// drives a call from greeting to a delivered quote or a human handoff.
package service

import (
	"context"
	"fmt"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/registry"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	"github.com/isaacasamoah/piano-move-ai/internal/quote"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
	"github.com/isaacasamoah/piano-move-ai/platform/phone"
)

const (
	roleCustomer = "customer"
	roleAgent    = "agent"
)

// Service is the conversation engine. It owns no session state itself; every
// turn loads from the registry, works on the copy, and saves back.
type Service struct {
	registry          registry.Registry
	catalog           BusinessCatalog
	primary           extraction.Extractor // nil when no model is configured
	fallback          extraction.Extractor
	distance          DistanceResolver
	bus               events.Bus
	log               *logger.Logger
	defaultBusinessID string
	attemptLimit      int
}

// New wires the engine. primary may be nil; fallback must not be.
func New(
	reg registry.Registry,
	catalog BusinessCatalog,
	primary, fallback extraction.Extractor,
	distance DistanceResolver,
	bus events.Bus,
	engineCfg config.EngineConfig,
	bizCfg config.BusinessConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		registry:          reg,
		catalog:           catalog,
		primary:           primary,
		fallback:          fallback,
		distance:          distance,
		bus:               bus,
		log:               log,
		defaultBusinessID: bizCfg.GetDefaultBusinessID(),
		attemptLimit:      engineCfg.GetClarificationLimit(),
	}
}

// Begin registers a new call and returns the greeting. The dialed number
// selects the tenant; unclaimed numbers land on the default business.
func (s *Service) Begin(ctx context.Context, callID, from, to string) (domain.TurnResult, error) {
	businessID := s.catalog.ResolvePhone(to)
	if businessID == "" {
		businessID = s.defaultBusinessID
	}

	biz, err := s.catalog.Load(businessID)
	if err != nil {
		return domain.TurnResult{}, err
	}

	session := domain.NewSession(callID, businessID, phone.NormalizeE164(from))
	if len(biz.Fields) > 0 {
		session.CurrentField = biz.Fields[0].Name
	}
	session.AppendTurn(roleAgent, biz.Persona.Greeting)

	if err := s.registry.Create(ctx, session); err != nil {
		return domain.TurnResult{}, err
	}

	s.log.WithCallID(callID).Info("session started", "business_id", businessID)
	return domain.TurnResult{
		Reply:     biz.Persona.Greeting,
		State:     domain.StateActive,
		NextField: session.CurrentField,
	}, nil
}

// Advance processes one customer utterance and returns what to say next.
func (s *Service) Advance(ctx context.Context, callID, utterance string) (domain.TurnResult, error) {
	session, err := s.registry.Get(ctx, callID)
	if err != nil {
		return domain.TurnResult{}, err
	}

	biz, err := s.catalog.Load(session.BusinessID)
	if err != nil {
		return domain.TurnResult{}, err
	}

	// Terminal states answer without running extraction. Escalation is
	// sticky: nothing the customer says can reactivate the session.
	switch session.State {
	case domain.StateEscalated:
		return domain.TurnResult{
			Reply:         biz.Persona.EscalationMessage,
			State:         domain.StateEscalated,
			Escalated:     true,
			ShouldEndCall: true,
		}, nil
	case domain.StateComplete:
		reply := biz.Persona.CompletionMessage
		if session.Quote != nil {
			reply = quote.SpokenSummary(*session.Quote)
		}
		return domain.TurnResult{
			Reply:         reply,
			State:         domain.StateComplete,
			Complete:      true,
			Quote:         session.Quote,
			ShouldEndCall: true,
		}, nil
	}

	session.AppendTurn(roleCustomer, utterance)

	res, err := s.extract(ctx, session, biz, utterance)
	if err != nil {
		return domain.TurnResult{}, err
	}

	priorState := session.State
	reply := s.apply(ctx, session, biz, res)
	session.AppendTurn(roleAgent, reply)

	// Save before publishing: a session removed mid-turn (caller hung up and
	// the call was ended) discards this turn's results entirely, events
	// included.
	if err := s.registry.Save(ctx, session); err != nil {
		return domain.TurnResult{}, err
	}

	if session.State != priorState {
		s.log.StateTransition(callID, string(priorState), string(session.State))
		s.publishTransition(ctx, session)
	}

	return domain.TurnResult{
		Reply:         reply,
		State:         session.State,
		Complete:      session.State == domain.StateComplete,
		Escalated:     session.State == domain.StateEscalated,
		ShouldEndCall: session.State != domain.StateActive,
		NextField:     session.CurrentField,
		Quote:         session.Quote,
	}, nil
}

// End removes the session. Ending an unknown or already-ended call is
// harmless; telephony providers deliver hangup webhooks at least once.
func (s *Service) End(ctx context.Context, callID string) error {
	if err := s.registry.Remove(ctx, callID); err != nil {
		return err
	}
	s.log.WithCallID(callID).Info("session ended")
	return nil
}

// ActiveCalls reports the number of live sessions.
func (s *Service) ActiveCalls(ctx context.Context) (int, error) {
	return s.registry.Len(ctx)
}

// extract runs the primary strategy and falls back to the deterministic one
// on any failure: timeout, transport error, or a malformed model response.
// The caller always gets a usable result.
func (s *Service) extract(ctx context.Context, session *domain.Session, biz *bizconfig.Business, utterance string) (extraction.Result, error) {
	req := extraction.Request{
		Utterance:  utterance,
		Business:   biz,
		Known:      session.Fields,
		AskedField: session.CurrentField,
		Transcript: toTurns(session.Transcript),
	}

	if s.primary != nil {
		res, err := s.primary.Extract(ctx, req)
		if err == nil {
			return res, nil
		}
		s.log.WithCallID(session.ID).CollaboratorError("extractor", err)
	}

	res, err := s.fallback.Extract(ctx, req)
	if err != nil {
		return extraction.Result{}, apperr.Wrap(apperr.KindInternal, "extraction failed", err)
	}
	return res, nil
}

// apply merges one extraction result into the session and returns the reply.
// Confirmed fields are monotonic: an ambiguous answer never removes a value
// that was confirmed on an earlier turn.
func (s *Service) apply(ctx context.Context, session *domain.Session, biz *bizconfig.Business, res extraction.Result) string {
	if res.Escalate != nil {
		reason := res.Escalate.Reason
		if reason == "" {
			reason = string(res.Escalate.Kind)
		}
		s.escalate(session, reason)
		return biz.Persona.EscalationMessage
	}

	limit := s.attemptLimit
	if biz.ClarificationLimit > 0 {
		limit = biz.ClarificationLimit
	}

	for _, field := range biz.Fields {
		fr, ok := res.Fields[field.Name]
		if !ok {
			continue
		}
		if fr.Ambiguous {
			if _, confirmed := session.Fields[field.Name]; confirmed {
				continue
			}
			if session.RecordAttempt(field.Name) >= limit {
				s.escalate(session, fmt.Sprintf("could not clarify %s after %d attempts", field.Name, limit))
				return biz.Persona.EscalationMessage
			}
			continue
		}
		session.Confirm(field.Name, fr.Value)
	}

	missing := session.MissingFields(biz.FieldNames())
	if len(missing) == 0 {
		return s.complete(ctx, session, biz)
	}

	session.CurrentField = missing[0]
	return res.Reply
}

// complete computes the quote and transitions to COMPLETE. Runs at most once
// per session because COMPLETE is handled before extraction on later turns.
func (s *Service) complete(ctx context.Context, session *domain.Session, biz *bizconfig.Business) string {
	var origin, destination string
	if f, ok := biz.FieldByRole(bizconfig.RoleOrigin); ok {
		origin = session.Fields[f.Name]
	}
	if f, ok := biz.FieldByRole(bizconfig.RoleDestination); ok {
		destination = session.Fields[f.Name]
	}

	km := s.distance.Resolve(ctx, origin, destination)

	breakdown, err := quote.Compute(session.Fields, biz, km)
	if err != nil {
		// A confirmed session that cannot be priced means a schema/config
		// defect. Hand off rather than stall the caller.
		s.log.WithCallID(session.ID).Error("quote computation failed", "error", err)
		s.escalate(session, "quote computation failed")
		return biz.Persona.EscalationMessage
	}

	session.Quote = &breakdown
	session.State = domain.StateComplete
	session.CurrentField = ""

	reply := quote.SpokenSummary(breakdown)
	if biz.Persona.CompletionMessage != "" {
		reply = biz.Persona.CompletionMessage + " " + reply
	}
	return reply
}

func (s *Service) escalate(session *domain.Session, reason string) {
	session.State = domain.StateEscalated
	session.EscalationReason = reason
	session.CurrentField = ""
}

// publishTransition emits the event for a state change after the session has
// been durably saved.
func (s *Service) publishTransition(ctx context.Context, session *domain.Session) {
	switch session.State {
	case domain.StateComplete:
		if session.Quote == nil {
			return
		}
		s.bus.Publish(ctx, domain.QuoteReady{
			BaseEvent:    events.NewBaseEvent(),
			CallID:       session.ID,
			BusinessID:   session.BusinessID,
			CallerNumber: session.CallerNumber,
			Values:       session.Fields,
			Quote:        *session.Quote,
		})
	case domain.StateEscalated:
		s.bus.Publish(ctx, domain.SessionEscalated{
			BaseEvent:    events.NewBaseEvent(),
			CallID:       session.ID,
			BusinessID:   session.BusinessID,
			CallerNumber: session.CallerNumber,
			Reason:       session.EscalationReason,
			Values:       session.Fields,
		})
	}
}

func toTurns(transcript []domain.TranscriptEntry) []extraction.Turn {
	turns := make([]extraction.Turn, 0, len(transcript))
	for _, entry := range transcript {
		turns = append(turns, extraction.Turn{Role: entry.Role, Text: entry.Text})
	}
	return turns
}
