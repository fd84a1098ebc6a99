package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/domain"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/registry"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

func testBusiness() *bizconfig.Business {
	return &bizconfig.Business{
		ID:          "piano_moving_001",
		DisplayName: "PianoMove AI",
		Persona: bizconfig.Persona{
			AgentName:         "Sandra",
			Greeting:          "Hi! What type of piano are you moving?",
			EscalationMessage: "Let me transfer you to the team.",
			CompletionMessage: "Great, I have everything I need.",
		},
		Fields: []bizconfig.FieldSpec{
			{
				Name: "item_type", Type: bizconfig.FieldTypeEnum, Role: bizconfig.RoleBaseRate,
				Prompt: "What type of piano are you moving?",
				Values: []bizconfig.EnumValue{
					{Value: "upright"}, {Value: "baby_grand"}, {Value: "grand"},
				},
			},
			{
				Name: "pickup_address", Type: bizconfig.FieldTypeAddress, Role: bizconfig.RoleOrigin,
				Prompt: "Where are we picking it up from?",
			},
			{
				Name: "delivery_address", Type: bizconfig.FieldTypeAddress, Role: bizconfig.RoleDestination,
				Prompt: "What's the delivery address?",
			},
			{
				Name: "obstacle_count", Type: bizconfig.FieldTypeInteger, Role: bizconfig.RoleUnitSurcharge,
				Prompt: "Are there any stairs? If yes, how many steps?", Min: 0, Max: 200,
			},
			{
				Name: "wants_protection", Type: bizconfig.FieldTypeBoolean, Role: bizconfig.RoleProtection,
				Prompt: "Would you like insurance cover for the move?",
			},
		},
		Pricing: bizconfig.Pricing{
			Base:              map[string]float64{"upright": 200, "baby_grand": 350, "grand": 500},
			DistanceRatePerKm: 1.5,
			UnitSurchargeRate: 15,
			ProtectionRate:    0.15,
		},
	}
}

type stubCatalog struct{ biz *bizconfig.Business }

func (c stubCatalog) Load(string) (*bizconfig.Business, error) { return c.biz, nil }

func (c stubCatalog) ResolvePhone(number string) string {
	if number == "+12299223706" {
		return c.biz.ID
	}
	return ""
}

type stubExtractor struct {
	fn func(req extraction.Request) (extraction.Result, error)
}

func (s *stubExtractor) Extract(_ context.Context, req extraction.Request) (extraction.Result, error) {
	return s.fn(req)
}

type fixedDistance float64

func (d fixedDistance) Resolve(context.Context, string, string) float64 { return float64(d) }

type eventSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *eventSink) Handle(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *eventSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type harness struct {
	svc      *Service
	bus      *events.InMemoryBus
	reg      registry.Registry
	quotes   *eventSink
	handoffs *eventSink
}

func newHarness(t *testing.T, primary, fallback extraction.Extractor) *harness {
	t.Helper()

	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	quotes := &eventSink{}
	handoffs := &eventSink{}
	bus.Subscribe(domain.EventQuoteReady, quotes)
	bus.Subscribe(domain.EventSessionEscalated, handoffs)

	reg := registry.NewMemory()
	cfg := &config.Config{ClarificationLimit: 2, DefaultBusinessID: "piano_moving_001"}

	svc := New(reg, stubCatalog{biz: testBusiness()}, primary, fallback, fixedDistance(100), bus, cfg, cfg, log)
	return &harness{svc: svc, bus: bus, reg: reg, quotes: quotes, handoffs: handoffs}
}

func confirmAll() *stubExtractor {
	return &stubExtractor{fn: func(extraction.Request) (extraction.Result, error) {
		return extraction.Result{
			Fields: map[string]extraction.FieldResult{
				"item_type":        {Value: "baby_grand"},
				"pickup_address":   {Value: "123 Oak St, Springfield"},
				"delivery_address": {Value: "456 Elm St, Shelbyville"},
				"obstacle_count":   {Value: "10"},
				"wants_protection": {Value: "true"},
			},
			Reply: "Got it.",
		}, nil
	}}
}

func ambiguousFor(field string) *stubExtractor {
	return &stubExtractor{fn: func(extraction.Request) (extraction.Result, error) {
		return extraction.Result{
			Fields: map[string]extraction.FieldResult{
				field: {Ambiguous: true, Reason: "unclear"},
			},
			Reply: "Sorry, could you repeat that?",
		}, nil
	}}
}

func TestBegin_ReturnsGreetingAndRegistersSession(t *testing.T) {
	h := newHarness(t, nil, confirmAll())
	ctx := context.Background()

	res, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if res.Reply != "Hi! What type of piano are you moving?" {
		t.Fatalf("unexpected greeting: %q", res.Reply)
	}
	if res.State != domain.StateActive {
		t.Fatalf("expected ACTIVE, got %s", res.State)
	}

	n, err := h.svc.ActiveCalls(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 active call, got %d (%v)", n, err)
	}
}

func TestBegin_DuplicateCallIDConflicts(t *testing.T) {
	h := newHarness(t, nil, confirmAll())
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	_, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAdvance_BatchConfirmationCompletesWithQuote(t *testing.T) {
	h := newHarness(t, nil, confirmAll())
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	res, err := h.svc.Advance(ctx, "call-1", "baby grand, 123 Oak St Springfield to 456 Elm St Shelbyville, 10 steps, yes")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !res.Complete || res.State != domain.StateComplete {
		t.Fatalf("expected COMPLETE, got %+v", res)
	}
	if !res.ShouldEndCall {
		t.Fatal("a completed call should be ended after the summary")
	}
	if res.Quote == nil {
		t.Fatal("expected a quote breakdown")
	}
	// base 350 + 100km * 1.50 + 10 * 15 = 650; protection 15% = 97.50
	if res.Quote.Total != 747.50 {
		t.Fatalf("expected total 747.50, got %.2f", res.Quote.Total)
	}

	h.bus.Wait()
	if h.quotes.count() != 1 {
		t.Fatalf("expected exactly one QuoteReady, got %d", h.quotes.count())
	}
}

func TestAdvance_QuoteReadyPublishedExactlyOnce(t *testing.T) {
	h := newHarness(t, nil, confirmAll())
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.svc.Advance(ctx, "call-1", "everything at once"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// The customer keeps talking after completion; no new quote, no new event.
	res, err := h.svc.Advance(ctx, "call-1", "thanks, what was the total again?")
	if err != nil {
		t.Fatalf("advance after complete: %v", err)
	}
	if !res.Complete || !res.ShouldEndCall {
		t.Fatalf("expected terminal COMPLETE result, got %+v", res)
	}
	if res.Reply == "" {
		t.Fatal("expected the summary to be repeated")
	}

	h.bus.Wait()
	if h.quotes.count() != 1 {
		t.Fatalf("expected exactly one QuoteReady, got %d", h.quotes.count())
	}
}

func TestAdvance_SecondFailedClarificationEscalates(t *testing.T) {
	h := newHarness(t, nil, ambiguousFor("item_type"))
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	res, err := h.svc.Advance(ctx, "call-1", "mumble")
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if res.Escalated {
		t.Fatal("first failed attempt must not escalate")
	}
	if res.Reply != "Sorry, could you repeat that?" {
		t.Fatalf("expected clarification reply, got %q", res.Reply)
	}

	res, err = h.svc.Advance(ctx, "call-1", "mumble mumble")
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if !res.Escalated || res.State != domain.StateEscalated {
		t.Fatalf("second failed attempt must escalate, got %+v", res)
	}
	if res.Reply != "Let me transfer you to the team." {
		t.Fatalf("expected escalation message, got %q", res.Reply)
	}

	h.bus.Wait()
	if h.handoffs.count() != 1 {
		t.Fatalf("expected one SessionEscalated, got %d", h.handoffs.count())
	}
}

func TestAdvance_EscalationIsSticky(t *testing.T) {
	h := newHarness(t, nil, &stubExtractor{fn: func(extraction.Request) (extraction.Result, error) {
		return extraction.Result{
			Escalate: &extraction.Escalation{Kind: extraction.EscalationHumanRequested, Reason: "human_requested"},
			Reply:    "One moment.",
		}, nil
	}})
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.svc.Advance(ctx, "call-1", "give me a human"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// Even a perfectly clear answer afterwards cannot reactivate the session.
	res, err := h.svc.Advance(ctx, "call-1", "actually it's an upright piano")
	if err != nil {
		t.Fatalf("advance after escalation: %v", err)
	}
	if !res.Escalated || !res.ShouldEndCall {
		t.Fatalf("escalation must be sticky, got %+v", res)
	}

	h.bus.Wait()
	if h.handoffs.count() != 1 {
		t.Fatalf("expected one SessionEscalated, got %d", h.handoffs.count())
	}
}

func TestAdvance_ConfirmedFieldSurvivesLaterAmbiguity(t *testing.T) {
	turn := 0
	ext := &stubExtractor{fn: func(extraction.Request) (extraction.Result, error) {
		turn++
		if turn == 1 {
			return extraction.Result{
				Fields: map[string]extraction.FieldResult{"item_type": {Value: "upright"}},
				Reply:  "Got it. Where are we picking it up from?",
			}, nil
		}
		// A later turn mentions pianos again, unclearly.
		return extraction.Result{
			Fields: map[string]extraction.FieldResult{
				"item_type":      {Ambiguous: true, Reason: "mentioned again"},
				"pickup_address": {Value: "123 Oak St, Springfield"},
			},
			Reply: "And the delivery address?",
		}, nil
	}}

	h := newHarness(t, nil, ext)
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.svc.Advance(ctx, "call-1", "an upright"); err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if _, err := h.svc.Advance(ctx, "call-1", "from 123 Oak St Springfield, the piano one"); err != nil {
		t.Fatalf("second advance: %v", err)
	}

	session, err := h.reg.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Fields["item_type"] != "upright" {
		t.Fatalf("confirmed value lost: %+v", session.Fields)
	}
	if session.Attempts["item_type"] != 0 {
		t.Fatalf("confirmed field must not accrue attempts: %+v", session.Attempts)
	}
}

func TestAdvance_PrimaryFailureFallsBack(t *testing.T) {
	primary := &stubExtractor{fn: func(extraction.Request) (extraction.Result, error) {
		return extraction.Result{}, errors.New("model unavailable")
	}}
	h := newHarness(t, primary, confirmAll())
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	res, err := h.svc.Advance(ctx, "call-1", "everything")
	if err != nil {
		t.Fatalf("advance must survive a primary failure: %v", err)
	}
	if !res.Complete {
		t.Fatalf("fallback result must be applied, got %+v", res)
	}
}

func TestAdvance_AsksFieldsInSchemaOrder(t *testing.T) {
	ext := &stubExtractor{fn: func(req extraction.Request) (extraction.Result, error) {
		return extraction.Result{
			Fields: map[string]extraction.FieldResult{"item_type": {Value: "upright"}},
			Reply:  "next question",
		}, nil
	}}
	h := newHarness(t, nil, ext)
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.svc.Advance(ctx, "call-1", "an upright"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	session, err := h.reg.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.CurrentField != "pickup_address" {
		t.Fatalf("expected next field pickup_address, got %q", session.CurrentField)
	}
}

func TestEnd_IsIdempotent(t *testing.T) {
	h := newHarness(t, nil, confirmAll())
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := h.svc.End(ctx, "call-1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := h.svc.End(ctx, "call-1"); err != nil {
		t.Fatalf("second end must be harmless: %v", err)
	}

	if _, err := h.svc.Advance(ctx, "call-1", "hello?"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("advance after end must be not found, got %v", err)
	}
}

func TestAdvance_TurnDiscardedWhenCallEndsMidExtraction(t *testing.T) {
	var h *harness
	ext := &stubExtractor{fn: func(extraction.Request) (extraction.Result, error) {
		// The caller hangs up while the extractor is running.
		if err := h.svc.End(context.Background(), "call-1"); err != nil {
			return extraction.Result{}, err
		}
		return extraction.Result{
			Fields: map[string]extraction.FieldResult{"item_type": {Value: "upright"}},
			Reply:  "Got it.",
		}, nil
	}}
	h = newHarness(t, nil, ext)
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err := h.svc.Advance(ctx, "call-1", "an upright"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected the turn to be discarded, got %v", err)
	}

	h.bus.Wait()
	if h.quotes.count() != 0 || h.handoffs.count() != 0 {
		t.Fatal("no events may be published for a discarded turn")
	}
}

func TestAdvance_BusinessOverridesClarificationLimit(t *testing.T) {
	h := newHarness(t, nil, ambiguousFor("item_type"))
	// Raise the per-business limit above the global default of 2.
	h.svc.catalog.(stubCatalog).biz.ClarificationLimit = 3
	ctx := context.Background()

	if _, err := h.svc.Begin(ctx, "call-1", "+61400000001", "+12299223706"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	for i := 1; i <= 2; i++ {
		res, err := h.svc.Advance(ctx, "call-1", "mumble")
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if res.Escalated {
			t.Fatalf("attempt %d must not escalate with limit 3", i)
		}
	}

	res, err := h.svc.Advance(ctx, "call-1", "mumble")
	if err != nil {
		t.Fatalf("third advance: %v", err)
	}
	if !res.Escalated {
		t.Fatal("third failed attempt must escalate with limit 3")
	}
}
