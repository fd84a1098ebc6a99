package quote

import (
	"fmt"
	"strings"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
)

// SpokenSummary is the short version read back to the customer over the call.
func SpokenSummary(b Breakdown) string {
	return fmt.Sprintf(
		"Your total comes to $%.2f. That covers a base of $%.2f, $%.2f for the %.0f kilometre trip, and $%.2f for stairs or access.",
		b.Total, b.BaseAmount, b.DistanceCharge, b.DistanceKm, b.UnitCharge,
	)
}

// FormatSummary renders the itemized quote text delivered by SMS or email.
func FormatSummary(biz *bizconfig.Business, values map[string]string, b Breakdown) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s Quote\n\n", biz.DisplayName)

	if baseField, ok := biz.FieldByRole(bizconfig.RoleBaseRate); ok {
		fmt.Fprintf(&sb, "Item: %s\n", titleize(values[baseField.Name]))
	}
	fmt.Fprintf(&sb, "Route: %.0fkm\n", b.DistanceKm)
	if b.UnitCount > 0 {
		fmt.Fprintf(&sb, "Stairs/access: %d\n", b.UnitCount)
	}
	fmt.Fprintf(&sb, "Protection: %s\n\n", yesNo(b.ProtectionApplied))

	sb.WriteString("BREAKDOWN:\n")
	fmt.Fprintf(&sb, "Base: $%.2f\n", b.BaseAmount)
	fmt.Fprintf(&sb, "Distance: $%.2f\n", b.DistanceCharge)
	if b.UnitCharge > 0 {
		fmt.Fprintf(&sb, "Access: $%.2f\n", b.UnitCharge)
	}
	if b.ProtectionApplied {
		fmt.Fprintf(&sb, "Protection: $%.2f\n", b.ProtectionCharge)
	}
	fmt.Fprintf(&sb, "\nTOTAL: $%.2f\n\nValid for 7 days. Reply to this message with any questions.\n", b.Total)

	return sb.String()
}

func titleize(v string) string {
	parts := strings.Split(strings.ReplaceAll(v, "_", " "), " ")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
