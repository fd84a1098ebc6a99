// Package bizconfig loads per-business conversation configuration: the field
// schema the engine collects, the price table the calculator consumes, and the
// agent persona used for replies. Configs are read-only for the lifetime of a
// session.
package bizconfig

// FieldType classifies how a field is extracted and validated.
type FieldType string

const (
	FieldTypeEnum    FieldType = "enum"
	FieldTypeAddress FieldType = "address"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
)

// FieldRole ties a schema field to its place in the pricing formula. The
// engine and calculator only ever reference roles, never field names, so the
// same code serves any business domain.
type FieldRole string

const (
	// RoleBaseRate selects the base amount from the price table (enum fields).
	RoleBaseRate FieldRole = "base_rate"
	// RoleOrigin is the pickup side of the distance calculation.
	RoleOrigin FieldRole = "origin"
	// RoleDestination is the delivery side of the distance calculation.
	RoleDestination FieldRole = "destination"
	// RoleUnitSurcharge multiplies the field's count by the unit rate.
	RoleUnitSurcharge FieldRole = "unit_surcharge"
	// RoleProtection applies the protection multiplier when true.
	RoleProtection FieldRole = "protection"
)

// EnumValue is one allowed value of an enum field plus spoken variants.
type EnumValue struct {
	Value    string   `yaml:"value" validate:"required"`
	Synonyms []string `yaml:"synonyms"`
}

// FieldSpec describes one required piece of information to collect.
type FieldSpec struct {
	Name   string      `yaml:"name" validate:"required"`
	Type   FieldType   `yaml:"type" validate:"required,oneof=enum address integer boolean"`
	Role   FieldRole   `yaml:"role" validate:"omitempty,oneof=base_rate origin destination unit_surcharge protection"`
	Prompt string      `yaml:"prompt" validate:"required"`
	Values []EnumValue `yaml:"values" validate:"required_if=Type enum,dive"`
	Min    int         `yaml:"min"`
	Max    int         `yaml:"max"`
}

// AllowedValues returns the canonical enum values for an enum field.
func (f FieldSpec) AllowedValues() []string {
	values := make([]string, 0, len(f.Values))
	for _, v := range f.Values {
		values = append(values, v.Value)
	}
	return values
}

// Pricing holds the rate card consumed by the quote calculator.
type Pricing struct {
	Currency          string             `yaml:"currency"`
	Base              map[string]float64 `yaml:"base" validate:"required,min=1"`
	DistanceRatePerKm float64            `yaml:"distance_rate_per_km" validate:"gte=0"`
	UnitSurchargeRate float64            `yaml:"unit_surcharge_rate" validate:"gte=0"`
	ProtectionRate    float64            `yaml:"protection_rate" validate:"gte=0"`
}

// Persona configures the spoken voice of the agent.
type Persona struct {
	AgentName         string `yaml:"agent_name" validate:"required"`
	Greeting          string `yaml:"greeting" validate:"required"`
	EscalationMessage string `yaml:"escalation_message" validate:"required"`
	CompletionMessage string `yaml:"completion_message"`
}

// Business is the full configuration for one tenant.
type Business struct {
	ID                 string      `yaml:"id" validate:"required"`
	DisplayName        string      `yaml:"display_name" validate:"required"`
	PhoneNumbers       []string    `yaml:"phone_numbers"`
	NotifyEmail        string      `yaml:"notify_email" validate:"omitempty,email"`
	Persona            Persona     `yaml:"persona" validate:"required"`
	Fields             []FieldSpec `yaml:"fields" validate:"required,min=1,dive"`
	Pricing            Pricing     `yaml:"pricing" validate:"required"`
	ClarificationLimit int         `yaml:"clarification_limit" validate:"gte=0"`
}

// Field looks up a field spec by name.
func (b *Business) Field(name string) (FieldSpec, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldByRole looks up a field spec by its pricing role.
func (b *Business) FieldByRole(role FieldRole) (FieldSpec, bool) {
	for _, f := range b.Fields {
		if f.Role == role {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the schema's field names in declaration order.
func (b *Business) FieldNames() []string {
	names := make([]string, 0, len(b.Fields))
	for _, f := range b.Fields {
		names = append(names, f.Name)
	}
	return names
}
