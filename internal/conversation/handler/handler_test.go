package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/registry"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/service"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/transport"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	"github.com/isaacasamoah/piano-move-ai/internal/http/middleware"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

type stubCatalog struct{ biz *bizconfig.Business }

func (c stubCatalog) Load(string) (*bizconfig.Business, error) { return c.biz, nil }
func (c stubCatalog) ResolvePhone(string) string               { return c.biz.ID }

type fixedDistance float64

func (d fixedDistance) Resolve(context.Context, string, string) float64 { return float64(d) }

func testBusiness() *bizconfig.Business {
	return &bizconfig.Business{
		ID:          "piano_moving_001",
		DisplayName: "PianoMove AI",
		Persona: bizconfig.Persona{
			AgentName:         "Sandra",
			Greeting:          "Hi! What type of piano are you moving?",
			EscalationMessage: "Let me transfer you to the team.",
		},
		Fields: []bizconfig.FieldSpec{
			{Name: "item_type", Type: bizconfig.FieldTypeEnum, Role: bizconfig.RoleBaseRate,
				Prompt: "What type of piano are you moving?",
				Values: []bizconfig.EnumValue{{Value: "upright"}, {Value: "baby_grand"}, {Value: "grand"}}},
			{Name: "pickup_address", Type: bizconfig.FieldTypeAddress, Role: bizconfig.RoleOrigin,
				Prompt: "Where are we picking it up from?"},
			{Name: "delivery_address", Type: bizconfig.FieldTypeAddress, Role: bizconfig.RoleDestination,
				Prompt: "What's the delivery address?"},
		},
		Pricing: bizconfig.Pricing{
			Base:              map[string]float64{"upright": 200, "baby_grand": 350, "grand": 500},
			DistanceRatePerKm: 1.5,
		},
	}
}

const secret = "test-secret"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("development")
	cfg := &config.Config{ClarificationLimit: 2, DefaultBusinessID: "piano_moving_001"}
	svc := service.New(
		registry.NewMemory(),
		stubCatalog{biz: testBusiness()},
		nil,
		extraction.NewFallback(),
		fixedDistance(100),
		events.NewInMemoryBus(log),
		cfg, cfg, log,
	)

	engine := gin.New()
	group := engine.Group("/api/v1")
	group.Use(middleware.WebhookAuth(secret, log))
	New(svc).RegisterRoutes(group.Group("/calls"))
	return engine
}

func do(t *testing.T, engine *gin.Engine, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set(middleware.WebhookSecretHeader, secret)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestStartCall_ReturnsGreeting(t *testing.T) {
	engine := newRouter(t)

	rec := do(t, engine, http.MethodPost, "/api/v1/calls",
		`{"callId":"call-1","from":"+61400000001","to":"+12299223706"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var res transport.TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Reply != "Hi! What type of piano are you moving?" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
	if res.State != "ACTIVE" {
		t.Fatalf("unexpected state: %q", res.State)
	}
}

func TestStartCall_MissingFieldsIsBadRequest(t *testing.T) {
	engine := newRouter(t)

	rec := do(t, engine, http.MethodPost, "/api/v1/calls", `{"callId":"call-1"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartCall_DuplicateIsConflict(t *testing.T) {
	engine := newRouter(t)
	body := `{"callId":"call-1","from":"+61400000001","to":"+12299223706"}`

	if rec := do(t, engine, http.MethodPost, "/api/v1/calls", body, true); rec.Code != http.StatusCreated {
		t.Fatalf("first start: %d", rec.Code)
	}
	if rec := do(t, engine, http.MethodPost, "/api/v1/calls", body, true); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestTurn_AdvancesConversation(t *testing.T) {
	engine := newRouter(t)

	do(t, engine, http.MethodPost, "/api/v1/calls",
		`{"callId":"call-1","from":"+61400000001","to":"+12299223706"}`, true)

	rec := do(t, engine, http.MethodPost, "/api/v1/calls/call-1/turns",
		`{"utterance":"it's an upright piano"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res transport.TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Complete || res.Escalated {
		t.Fatalf("one answer must not finish the call: %+v", res)
	}
	if res.Reply == "" {
		t.Fatal("expected a next question")
	}
}

func TestTurn_UnknownCallIsNotFound(t *testing.T) {
	engine := newRouter(t)

	rec := do(t, engine, http.MethodPost, "/api/v1/calls/ghost/turns", `{"utterance":"hi"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestEndCall_IsIdempotent(t *testing.T) {
	engine := newRouter(t)

	do(t, engine, http.MethodPost, "/api/v1/calls",
		`{"callId":"call-1","from":"+61400000001","to":"+12299223706"}`, true)

	if rec := do(t, engine, http.MethodDelete, "/api/v1/calls/call-1", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, engine, http.MethodDelete, "/api/v1/calls/call-1", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("second delete must be 204, got %d", rec.Code)
	}
}

func TestWebhookAuth_RejectsMissingSecret(t *testing.T) {
	engine := newRouter(t)

	rec := do(t, engine, http.MethodPost, "/api/v1/calls",
		`{"callId":"call-1","from":"+61400000001","to":"+12299223706"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestStats_ReportsActiveCalls(t *testing.T) {
	engine := newRouter(t)

	do(t, engine, http.MethodPost, "/api/v1/calls",
		`{"callId":"call-1","from":"+61400000001","to":"+12299223706"}`, true)

	rec := do(t, engine, http.MethodGet, "/api/v1/calls/stats", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var res transport.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.ActiveCalls != 1 {
		t.Fatalf("expected 1 active call, got %d", res.ActiveCalls)
	}
}
