package extraction

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
)

// Fallback is the deterministic strategy: keyword and pattern matching per
// field type. It never fails, so the engine can always complete a turn even
// when the model is down.
type Fallback struct{}

// NewFallback creates the deterministic extractor.
func NewFallback() *Fallback {
	return &Fallback{}
}

var (
	numberRe  = regexp.MustCompile(`\d+`)
	yesWords  = tokenSet("yes", "yeah", "yep", "sure", "ok", "okay", "definitely", "absolutely", "correct")
	noWords   = tokenSet("no", "nope", "nah", "not")
	zeroWords = []string{"no stairs", "no steps", "none", "zero"}
	// Words from prompts that carry no field identity.
	stopWords = tokenSet("what", "where", "when", "which", "there", "either",
		"would", "like", "your", "please", "give", "full", "from", "going",
		"many", "that", "this", "have", "they", "with", "about", "location")
)

var humanPhrases = []string{
	"speak to a human", "talk to a human", "speak to a person", "real person",
	"speak to someone", "talk to someone", "human being", "an operator",
	"a representative", "speak with someone",
}

// Extract applies per-type pattern matching across all still-missing fields.
// A single utterance may confirm several fields at once.
func (f *Fallback) Extract(_ context.Context, req Request) (Result, error) {
	utterance := strings.TrimSpace(req.Utterance)
	lowered := strings.ToLower(utterance)
	tokens := strings.Fields(strings.Map(stripPunct, lowered))

	result := Result{Fields: make(map[string]FieldResult)}

	if wantsHuman(lowered) {
		result.Escalate = &Escalation{
			Kind:   EscalationHumanRequested,
			Reason: "customer asked for a person",
		}
		return result, nil
	}

	for _, spec := range req.Business.Fields {
		if _, known := req.Known[spec.Name]; known {
			continue
		}
		asked := req.AskedField == spec.Name

		switch spec.Type {
		case bizconfig.FieldTypeEnum:
			if v, ok := matchEnum(lowered, spec); ok {
				result.Fields[spec.Name] = FieldResult{Value: v}
			}
		case bizconfig.FieldTypeInteger:
			if v, ok := matchCount(lowered, tokens, spec, asked); ok {
				if v < spec.Min || (spec.Max > 0 && v > spec.Max) {
					result.Fields[spec.Name] = FieldResult{
						Ambiguous: true,
						Reason:    "count out of the accepted range",
					}
				} else {
					result.Fields[spec.Name] = FieldResult{Value: strconv.Itoa(v)}
				}
			}
		case bizconfig.FieldTypeBoolean:
			if v, ok := matchYesNo(tokens, spec, asked); ok {
				result.Fields[spec.Name] = FieldResult{Value: strconv.FormatBool(v)}
			}
		case bizconfig.FieldTypeAddress:
			if asked && utterance != "" {
				if AddressComplete(utterance) {
					result.Fields[spec.Name] = FieldResult{Value: utterance}
				} else {
					result.Fields[spec.Name] = FieldResult{
						Ambiguous: true,
						Reason:    "address is missing a street number, street, or suburb",
						Value:     utterance,
					}
				}
			}
		}
	}

	// Nothing usable and a question was pending: that counts as a failed
	// attempt on the asked field, including silent turns.
	if len(result.Fields) == 0 && req.AskedField != "" {
		result.Fields[req.AskedField] = FieldResult{
			Ambiguous: true,
			Reason:    "could not interpret the response",
		}
	}

	result.Reply = f.composeReply(req, result)
	return result, nil
}

// composeReply acknowledges progress and asks for the next missing field.
func (f *Fallback) composeReply(req Request, result Result) string {
	confirmedThisTurn := false
	askedAmbiguous := false
	for name, fr := range result.Fields {
		if fr.Ambiguous {
			if name == req.AskedField {
				askedAmbiguous = true
			}
			continue
		}
		confirmedThisTurn = true
	}

	for _, spec := range req.Business.Fields {
		if _, known := req.Known[spec.Name]; known {
			continue
		}
		if fr, ok := result.Fields[spec.Name]; ok && !fr.Ambiguous {
			continue
		}

		prompt := spec.Prompt
		switch {
		case spec.Name == req.AskedField && askedAmbiguous:
			return "Sorry, I didn't quite catch that. " + prompt
		case confirmedThisTurn:
			return "Got it. " + prompt
		default:
			return prompt
		}
	}

	if msg := req.Business.Persona.CompletionMessage; msg != "" {
		return msg
	}
	return "Let me calculate that for you now."
}

// matchEnum scans for the longest matching value phrase or synonym, so
// "baby grand" wins over "grand".
func matchEnum(lowered string, spec bizconfig.FieldSpec) (string, bool) {
	type candidate struct {
		phrase string
		value  string
	}

	candidates := make([]candidate, 0, len(spec.Values)*2)
	for _, v := range spec.Values {
		candidates = append(candidates, candidate{
			phrase: strings.ReplaceAll(v.Value, "_", " "),
			value:  v.Value,
		})
		for _, syn := range v.Synonyms {
			candidates = append(candidates, candidate{phrase: strings.ToLower(syn), value: v.Value})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i].phrase) > len(candidates[j].phrase)
	})

	for _, c := range candidates {
		if strings.Contains(lowered, c.phrase) {
			return c.value, true
		}
	}
	return "", false
}

// matchCount extracts a bounded integer. When the field was not directly
// asked about, the number must sit next to one of the field's keywords to
// avoid stealing digits from addresses mentioned in the same utterance.
func matchCount(lowered string, tokens []string, spec bizconfig.FieldSpec, asked bool) (int, bool) {
	keywords := fieldKeywords(spec)

	for _, phrase := range zeroWords {
		if strings.Contains(lowered, phrase) && (asked || containsAnyKeyword(lowered, keywords)) {
			return 0, true
		}
	}

	for i, tok := range tokens {
		if !numberRe.MatchString(tok) {
			continue
		}
		n, err := strconv.Atoi(numberRe.FindString(tok))
		if err != nil {
			continue
		}
		if nearKeyword(tokens, i, keywords) {
			return n, true
		}
	}

	if asked {
		if m := numberRe.FindString(lowered); m != "" {
			n, err := strconv.Atoi(m)
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// matchYesNo extracts a boolean. When the field was not directly asked about,
// a keyword for the field must appear alongside the yes/no word.
func matchYesNo(tokens []string, spec bizconfig.FieldSpec, asked bool) (bool, bool) {
	if !asked && !containsAnyKeywordTokens(tokens, fieldKeywords(spec)) {
		return false, false
	}

	for _, tok := range tokens {
		if yesWords[tok] {
			return true, true
		}
	}
	for _, tok := range tokens {
		if noWords[tok] {
			return false, true
		}
	}
	return false, false
}

// fieldKeywords derives identifying words from the schema itself (field name
// segments plus prompt content words), keeping the matcher free of
// domain-specific vocabulary.
func fieldKeywords(spec bizconfig.FieldSpec) map[string]bool {
	keywords := make(map[string]bool)
	for _, part := range strings.Split(spec.Name, "_") {
		if len(part) >= 4 && !stopWords[part] {
			keywords[part] = true
		}
	}
	for _, word := range strings.Fields(strings.Map(stripPunct, strings.ToLower(spec.Prompt))) {
		if len(word) >= 4 && !stopWords[word] {
			keywords[word] = true
		}
	}
	return keywords
}

func nearKeyword(tokens []string, idx int, keywords map[string]bool) bool {
	lo := idx - 2
	if lo < 0 {
		lo = 0
	}
	hi := idx + 3
	if hi > len(tokens) {
		hi = len(tokens)
	}
	for _, tok := range tokens[lo:hi] {
		if keywords[tok] {
			return true
		}
	}
	return false
}

func containsAnyKeyword(lowered string, keywords map[string]bool) bool {
	for kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func containsAnyKeywordTokens(tokens []string, keywords map[string]bool) bool {
	for _, tok := range tokens {
		if keywords[tok] {
			return true
		}
	}
	return false
}

func wantsHuman(lowered string) bool {
	for _, phrase := range humanPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func tokenSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

func stripPunct(r rune) rune {
	switch r {
	case ',', '.', '?', '!', ';', ':':
		return ' '
	}
	return r
}

var _ Extractor = (*Fallback)(nil)
