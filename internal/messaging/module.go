// Package messaging delivers the finished quote: a text to the caller and a
// notification email to the business mailbox. It reacts to engine events and
// never blocks or fails a conversation turn; delivery problems are logged and
// dropped.
package messaging

import (
	"context"
	"fmt"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/quote"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

// BusinessLoader serves tenant configs. Implemented by bizconfig.Loader.
type BusinessLoader interface {
	Load(businessID string) (*bizconfig.Business, error)
}

// TextMessenger sends one text message. Implemented by sms.Client.
type TextMessenger interface {
	Send(ctx context.Context, to, message string) error
}

// EmailSender sends one plain-text email. Implemented by email.Sender.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Module subscribes quote delivery to the event bus.
type Module struct {
	catalog BusinessLoader
	texts   TextMessenger
	emails  EmailSender
	log     *logger.Logger
}

// NewModule wires delivery and subscribes to QuoteReady. Either collaborator
// may be nil when not configured.
func NewModule(bus events.Bus, catalog BusinessLoader, texts TextMessenger, emails EmailSender, log *logger.Logger) *Module {
	m := &Module{catalog: catalog, texts: texts, emails: emails, log: log}
	bus.Subscribe(domain.EventQuoteReady, events.HandlerFunc(m.onQuoteReady))
	return m
}

func (m *Module) Name() string {
	return "messaging"
}

func (m *Module) onQuoteReady(ctx context.Context, event events.Event) error {
	e, ok := event.(domain.QuoteReady)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	biz, err := m.catalog.Load(e.BusinessID)
	if err != nil {
		return fmt.Errorf("load business %s: %w", e.BusinessID, err)
	}

	body := quote.FormatSummary(biz, e.Values, e.Quote)
	log := m.log.WithCallID(e.CallID)

	if m.texts != nil && e.CallerNumber != "" {
		if err := m.texts.Send(ctx, e.CallerNumber, body); err != nil {
			log.CollaboratorError("sms", err)
		}
	}

	if m.emails != nil && biz.NotifyEmail != "" {
		subject := fmt.Sprintf("%s quote for %s: $%.2f", biz.DisplayName, e.CallerNumber, e.Quote.Total)
		if err := m.emails.Send(ctx, biz.NotifyEmail, subject, body); err != nil {
			log.CollaboratorError("email", err)
		}
	}

	return nil
}
