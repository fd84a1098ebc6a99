package extraction

import (
	"strings"
	"unicode"
)

// Street-type tokens a downstream geocoder can anchor on.
var streetTypes = map[string]bool{
	"st": true, "street": true, "rd": true, "road": true, "ave": true,
	"avenue": true, "ln": true, "lane": true, "dr": true, "drive": true,
	"ct": true, "court": true, "blvd": true, "boulevard": true, "way": true,
	"hwy": true, "highway": true, "pl": true, "place": true, "cres": true,
	"crescent": true, "terrace": true, "parade": true, "esplanade": true,
}

// AddressComplete reports whether free text carries enough structure for a
// geocoder to resolve it uniquely: a house number, a street-type token, and a
// locality after the street. A bare place name ("Springfield") fails.
func AddressComplete(text string) bool {
	tokens := addressTokens(text)
	if len(tokens) < 4 {
		return false
	}

	numberIdx := -1
	for i, tok := range tokens {
		if startsWithDigit(tok) {
			numberIdx = i
			break
		}
	}
	if numberIdx < 0 {
		return false
	}

	streetIdx := -1
	for i := numberIdx + 1; i < len(tokens); i++ {
		if streetTypes[tokens[i]] {
			streetIdx = i
			break
		}
	}
	if streetIdx < 0 {
		return false
	}

	// Locality: at least one non-numeric token after the street type.
	for _, tok := range tokens[streetIdx+1:] {
		if !startsWithDigit(tok) {
			return true
		}
	}
	return false
}

func addressTokens(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == '.' {
			return ' '
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Fields(cleaned)
}

func startsWithDigit(tok string) bool {
	return len(tok) > 0 && tok[0] >= '0' && tok[0] <= '9'
}
