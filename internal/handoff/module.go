package handoff

import (
	"context"
	"fmt"

	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

// Transferrer requests a human takeover. Implemented by Client.
type Transferrer interface {
	Transfer(ctx context.Context, callID, businessID, callerNumber, reason string, collected map[string]string) error
}

// Module subscribes the transfer client to escalation events. A failed
// notification is logged and dropped; the caller already heard the escalation
// message and the call-side transfer does not depend on this notice arriving.
type Module struct {
	transferrer Transferrer
	log         *logger.Logger
}

func NewModule(bus events.Bus, transferrer Transferrer, log *logger.Logger) *Module {
	m := &Module{transferrer: transferrer, log: log}
	bus.Subscribe(domain.EventSessionEscalated, events.HandlerFunc(m.onEscalated))
	return m
}

func (m *Module) Name() string {
	return "handoff"
}

func (m *Module) onEscalated(ctx context.Context, event events.Event) error {
	e, ok := event.(domain.SessionEscalated)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	if m.transferrer == nil {
		return nil
	}

	if err := m.transferrer.Transfer(ctx, e.CallID, e.BusinessID, e.CallerNumber, e.Reason, e.Values); err != nil {
		m.log.WithCallID(e.CallID).CollaboratorError("handoff", err)
	}
	return nil
}
