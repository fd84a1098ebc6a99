package extraction

import (
	"context"
	"testing"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
)

func testBusiness() *bizconfig.Business {
	return &bizconfig.Business{
		ID:          "piano_moving_001",
		DisplayName: "PianoMove AI",
		Persona: bizconfig.Persona{
			AgentName:         "Sandra",
			Greeting:          "Hi! What type of piano are you moving?",
			EscalationMessage: "Let me transfer you to the team.",
			CompletionMessage: "Let me calculate that for you now.",
		},
		Fields: []bizconfig.FieldSpec{
			{
				Name: "item_type", Type: bizconfig.FieldTypeEnum, Role: bizconfig.RoleBaseRate,
				Prompt: "What type of piano are you moving?",
				Values: []bizconfig.EnumValue{
					{Value: "upright", Synonyms: []string{"upright piano"}},
					{Value: "baby_grand", Synonyms: []string{"baby grand", "baby grand piano"}},
					{Value: "grand", Synonyms: []string{"grand piano"}},
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

func extract(t *testing.T, req Request) Result {
	t.Helper()
	res, err := NewFallback().Extract(context.Background(), req)
	if err != nil {
		t.Fatalf("fallback must never fail: %v", err)
	}
	return res
}

func TestFallback_BatchUtteranceExtractsMultipleFields(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "baby grand piano, 123 Oak St Springfield to 456 Elm St Shelbyville, 10 steps, yes to protection",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "item_type",
	})

	if got := res.Fields["item_type"]; got.Ambiguous || got.Value != "baby_grand" {
		t.Fatalf("expected item_type baby_grand, got %+v", got)
	}
	if got := res.Fields["obstacle_count"]; got.Ambiguous || got.Value != "10" {
		t.Fatalf("expected obstacle_count 10, got %+v", got)
	}
	if got := res.Fields["wants_protection"]; got.Ambiguous || got.Value != "true" {
		t.Fatalf("expected wants_protection true, got %+v", got)
	}
}

func TestFallback_GrandDoesNotShadowBabyGrand(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "it's a grand piano",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "item_type",
	})
	if got := res.Fields["item_type"]; got.Value != "grand" {
		t.Fatalf("expected grand, got %+v", got)
	}

	res = extract(t, Request{
		Utterance:  "a baby grand",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "item_type",
	})
	if got := res.Fields["item_type"]; got.Value != "baby_grand" {
		t.Fatalf("expected baby_grand, got %+v", got)
	}
}

func TestFallback_BarePlaceNameIsAmbiguous(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "Springfield",
		Business:   testBusiness(),
		Known:      map[string]string{"item_type": "upright"},
		AskedField: "pickup_address",
	})

	got, ok := res.Fields["pickup_address"]
	if !ok {
		t.Fatal("expected a result for pickup_address")
	}
	if !got.Ambiguous {
		t.Fatalf("bare place name must be ambiguous, got %+v", got)
	}
}

func TestFallback_StructuredAddressConfirmed(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "123 Oak St, Springfield",
		Business:   testBusiness(),
		Known:      map[string]string{"item_type": "upright"},
		AskedField: "pickup_address",
	})

	got := res.Fields["pickup_address"]
	if got.Ambiguous || got.Value != "123 Oak St, Springfield" {
		t.Fatalf("expected confirmed address, got %+v", got)
	}
}

func TestFallback_NoStairsMeansZero(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "no stairs at all",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "obstacle_count",
	})
	if got := res.Fields["obstacle_count"]; got.Ambiguous || got.Value != "0" {
		t.Fatalf("expected 0, got %+v", got)
	}

	// "no" answering the stairs question must not leak into the protection field.
	if _, ok := res.Fields["wants_protection"]; ok {
		t.Fatal("wants_protection must not be set from a stairs answer")
	}
}

func TestFallback_OutOfRangeCountIsAmbiguous(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "about 9999 steps",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "obstacle_count",
	})
	if got := res.Fields["obstacle_count"]; !got.Ambiguous {
		t.Fatalf("expected ambiguous for out-of-range count, got %+v", got)
	}
}

func TestFallback_EmptyUtteranceCountsAgainstAskedField(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "item_type",
	})

	got, ok := res.Fields["item_type"]
	if !ok || !got.Ambiguous {
		t.Fatalf("silence must register as a failed attempt, got %+v", res.Fields)
	}
	if res.Reply == "" {
		t.Fatal("expected a clarification reply")
	}
}

func TestFallback_HumanRequestSignalsEscalation(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "can I just speak to a human please",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "item_type",
	})

	if res.Escalate == nil || res.Escalate.Kind != EscalationHumanRequested {
		t.Fatalf("expected human_requested escalation, got %+v", res.Escalate)
	}
}

func TestFallback_AsksForNextMissingField(t *testing.T) {
	res := extract(t, Request{
		Utterance:  "it's an upright",
		Business:   testBusiness(),
		Known:      map[string]string{},
		AskedField: "item_type",
	})

	if got := res.Fields["item_type"]; got.Value != "upright" {
		t.Fatalf("expected upright, got %+v", got)
	}
	if res.Reply != "Got it. Where are we picking it up from?" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
}
