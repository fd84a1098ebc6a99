package quote

import (
	"testing"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/platform/apperr"
)

func testBusiness() *bizconfig.Business {
	return &bizconfig.Business{
		ID:          "piano_moving_001",
		DisplayName: "PianoMove AI",
		Fields: []bizconfig.FieldSpec{
			{Name: "item_type", Type: bizconfig.FieldTypeEnum, Role: bizconfig.RoleBaseRate, Values: []bizconfig.EnumValue{
				{Value: "upright"}, {Value: "baby_grand"}, {Value: "grand"},
			}},
			{Name: "pickup_address", Type: bizconfig.FieldTypeAddress, Role: bizconfig.RoleOrigin},
			{Name: "delivery_address", Type: bizconfig.FieldTypeAddress, Role: bizconfig.RoleDestination},
			{Name: "obstacle_count", Type: bizconfig.FieldTypeInteger, Role: bizconfig.RoleUnitSurcharge, Min: 0, Max: 200},
			{Name: "wants_protection", Type: bizconfig.FieldTypeBoolean, Role: bizconfig.RoleProtection},
		},
		Pricing: bizconfig.Pricing{
			Currency:          "AUD",
			Base:              map[string]float64{"upright": 200, "baby_grand": 350, "grand": 500},
			DistanceRatePerKm: 1.5,
			UnitSurchargeRate: 15,
			ProtectionRate:    0.15,
		},
	}
}

func completeValues() map[string]string {
	return map[string]string{
		"item_type":        "baby_grand",
		"pickup_address":   "123 Oak St, Springfield",
		"delivery_address": "456 Elm St, Shelbyville",
		"obstacle_count":   "10",
		"wants_protection": "true",
	}
}

func TestCompute_ReferenceQuote(t *testing.T) {
	b, err := Compute(completeValues(), testBusiness(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.BaseAmount != 350 {
		t.Fatalf("expected base 350, got %v", b.BaseAmount)
	}
	if b.DistanceCharge != 150 {
		t.Fatalf("expected distance charge 150, got %v", b.DistanceCharge)
	}
	if b.UnitCharge != 150 {
		t.Fatalf("expected unit charge 150, got %v", b.UnitCharge)
	}
	if !b.ProtectionApplied {
		t.Fatal("expected protection applied")
	}
	if b.ProtectionCharge != 97.50 {
		t.Fatalf("expected protection charge 97.50, got %v", b.ProtectionCharge)
	}
	if b.Total != 747.50 {
		t.Fatalf("expected total 747.50, got %v", b.Total)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	first, err := Compute(completeValues(), testBusiness(), 37.33)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Compute(completeValues(), testBusiness(), 37.33)
		if err != nil {
			t.Fatalf("unexpected error on run %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("breakdown changed between identical runs: %+v vs %+v", first, again)
		}
	}
}

func TestCompute_NoProtectionSkipsMultiplier(t *testing.T) {
	values := completeValues()
	values["wants_protection"] = "false"

	b, err := Compute(values, testBusiness(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ProtectionApplied || b.ProtectionCharge != 0 {
		t.Fatalf("expected no protection charge, got %+v", b)
	}
	if b.Total != 650 {
		t.Fatalf("expected total 650, got %v", b.Total)
	}
}

func TestCompute_MissingFieldIsInternalError(t *testing.T) {
	values := completeValues()
	delete(values, "item_type")

	_, err := Compute(values, testBusiness(), 100)
	if err == nil {
		t.Fatal("expected error for unset field")
	}
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error kind, got %v", err)
	}
}

func TestCompute_OutOfBoundsCountRejected(t *testing.T) {
	values := completeValues()
	values["obstacle_count"] = "9999"

	if _, err := Compute(values, testBusiness(), 100); err == nil {
		t.Fatal("expected error for out-of-bounds count")
	}
}

func TestCompute_RoundsOnceAtEnd(t *testing.T) {
	values := completeValues()
	values["wants_protection"] = "true"

	// 350 + 0.333*1.5 + 150 = 500.4995; *1.15 = 575.574425 -> 575.57
	b, err := Compute(values, testBusiness(), 0.333)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Total != 575.57 {
		t.Fatalf("expected total 575.57, got %v", b.Total)
	}
}
