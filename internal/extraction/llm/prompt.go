package llm

import (
	"fmt"
	"strings"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
)

// behavioralPolicy is the fixed policy layer composed into every prompt,
// independent of business domain. The field schema and conversation state are
// appended at runtime.
const behavioralPolicy = `## RULES

1. NEVER ASSUME. Do not fill in missing information or expand a partial
   answer into a full one. A bare suburb or city name is NOT a full address.
   Anything unclear goes in "ambiguous", never in "extracted".
2. CONFIRM CRITICAL DETAILS. Addresses and measurements drive the price;
   only treat them as extracted when the customer has stated them completely.
   An address needs a street number, street name, and suburb or city.
3. KEEP IT SHORT. This is a phone call. At most 3 sentences per reply.
4. STAY IN YOUR LANE. You gather quote information only. Booking, complaints,
   damage claims, and policy questions are out of scope: set "escalate" with
   reason "out_of_scope". If the customer asks for a person, set "escalate"
   with reason "human_requested".
5. FAIL GRACEFULLY. If you cannot interpret an answer, ask again in different
   words. Do not loop on the same phrasing.
6. EXTRACT EVERYTHING OFFERED. If the customer volunteers several fields in
   one sentence, extract them all in this turn.`

const responseContract = `## RESPONSE FORMAT

Return ONLY a JSON object, no prose and no code fences:

{
  "reply": "what to say to the customer next (1-3 sentences)",
  "extracted": {"field_name": value},
  "ambiguous": {"field_name": "why clarification is needed"},
  "escalate": false,
  "escalation_reason": ""
}

"extracted" holds only values stated clearly THIS turn: enum fields use the
exact listed value, integers are numbers, booleans are true/false, addresses
are the complete text. "escalate" is true only for out-of-scope requests or
an explicit request for a person; "escalation_reason" must then be
"out_of_scope" or "human_requested".`

// composePrompt builds the system instruction from the policy layer, the
// business schema, and the current session state.
func composePrompt(req extraction.Request) string {
	biz := req.Business
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, a voice assistant for %s. You are on a live phone call gathering the details needed for a quote.\n\n",
		biz.Persona.AgentName, biz.DisplayName)

	sb.WriteString("## FIELDS TO COLLECT\n\n")
	for _, f := range biz.Fields {
		fmt.Fprintf(&sb, "- %s (%s)", f.Name, f.Type)
		if f.Type == bizconfig.FieldTypeEnum {
			fmt.Fprintf(&sb, ", one of: %s", strings.Join(f.AllowedValues(), ", "))
		}
		if f.Type == bizconfig.FieldTypeInteger && f.Max > 0 {
			fmt.Fprintf(&sb, ", between %d and %d", f.Min, f.Max)
		}
		fmt.Fprintf(&sb, " — ask: %q\n", f.Prompt)
	}

	sb.WriteString("\n## COLLECTED SO FAR\n\n")
	if len(req.Known) == 0 {
		sb.WriteString("(nothing yet)\n")
	}
	for _, f := range biz.Fields {
		if v, ok := req.Known[f.Name]; ok {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Name, v)
		}
	}
	if req.AskedField != "" {
		fmt.Fprintf(&sb, "\nThe previous question asked about: %s\n", req.AskedField)
	}

	if len(req.Transcript) > 0 {
		sb.WriteString("\n## CONVERSATION SO FAR\n\n")
		for _, turn := range req.Transcript {
			fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Text)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(behavioralPolicy)
	sb.WriteString("\n\n")
	sb.WriteString(responseContract)

	return sb.String()
}
