// Package llm implements the model-backed extraction strategy using the
// Gemini API. A response that cannot be parsed into the contract yields
// ErrMalformedResponse, which the engine treats as a signal to fall back to
// the deterministic strategy for that turn.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

// ErrMalformedResponse marks a model response that did not match the
// expected JSON contract.
var ErrMalformedResponse = errors.New("malformed model response")

// generateFunc abstracts the model call so tests can stub it.
type generateFunc func(ctx context.Context, system, user string) (string, error)

// Extractor is the Gemini-backed strategy.
type Extractor struct {
	model    string
	timeout  time.Duration
	log      *logger.Logger
	generate generateFunc
}

// New creates the model-backed extractor. The context is only used for
// client construction.
func New(ctx context.Context, cfg config.ExtractorConfig, log *logger.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	e := &Extractor{
		model:   cfg.GetGeminiModel(),
		timeout: cfg.GetExtractorTimeout(),
		log:     log,
	}
	e.generate = func(ctx context.Context, system, user string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, e.model, genai.Text(user), &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr(float32(0.3)),
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return e, nil
}

// modelResponse mirrors the JSON contract the prompt demands.
type modelResponse struct {
	Reply            string                     `json:"reply"`
	Extracted        map[string]json.RawMessage `json:"extracted"`
	Ambiguous        map[string]string          `json:"ambiguous"`
	Escalate         bool                       `json:"escalate"`
	EscalationReason string                     `json:"escalation_reason"`
}

// Extract runs one model turn under the configured timeout. A timeout is
// reported as an ordinary error so the engine falls back without hanging the
// call.
func (e *Extractor) Extract(ctx context.Context, req extraction.Request) (extraction.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	userInput := req.Utterance
	if strings.TrimSpace(userInput) == "" {
		userInput = "(the customer said nothing)"
	}

	raw, err := e.generate(ctx, composePrompt(req), userInput)
	if err != nil {
		return extraction.Result{}, fmt.Errorf("model call failed: %w", err)
	}

	result, err := e.parse(raw, req)
	if err != nil {
		e.log.Error("model response rejected", "error", err)
		return extraction.Result{}, err
	}
	return result, nil
}

// parse validates the raw model output against the contract and the schema.
// A value that fails schema validation is demoted to ambiguous rather than
// trusted: the model is never allowed to guess on the customer's behalf.
func (e *Extractor) parse(raw string, req extraction.Request) (extraction.Result, error) {
	trimmed := stripFences(raw)

	var mr modelResponse
	if err := json.Unmarshal([]byte(trimmed), &mr); err != nil {
		return extraction.Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if mr.Reply == "" {
		return extraction.Result{}, fmt.Errorf("%w: missing reply", ErrMalformedResponse)
	}

	result := extraction.Result{
		Reply:  mr.Reply,
		Fields: make(map[string]extraction.FieldResult),
	}

	for name, rawValue := range mr.Extracted {
		spec, ok := req.Business.Field(name)
		if !ok {
			// Unknown field names are dropped, not errors: the reply is
			// still usable.
			continue
		}
		value, err := canonicalize(rawValue, spec)
		if err != nil {
			result.Fields[name] = extraction.FieldResult{
				Ambiguous: true,
				Reason:    err.Error(),
			}
			continue
		}
		result.Fields[name] = extraction.FieldResult{Value: value}
	}

	for name, reason := range mr.Ambiguous {
		if _, ok := req.Business.Field(name); !ok {
			continue
		}
		if fr, exists := result.Fields[name]; exists && !fr.Ambiguous {
			// The model contradicted itself; trust the cautious signal.
			result.Fields[name] = extraction.FieldResult{Ambiguous: true, Reason: reason}
			continue
		}
		result.Fields[name] = extraction.FieldResult{Ambiguous: true, Reason: reason}
	}

	if mr.Escalate {
		kind := extraction.EscalationOutOfScope
		if mr.EscalationReason == string(extraction.EscalationHumanRequested) {
			kind = extraction.EscalationHumanRequested
		}
		result.Escalate = &extraction.Escalation{Kind: kind, Reason: mr.EscalationReason}
	}

	return result, nil
}

// canonicalize converts a model-supplied JSON value into the canonical string
// form for its field type, enforcing schema validity.
func canonicalize(raw json.RawMessage, spec bizconfig.FieldSpec) (string, error) {
	switch spec.Type {
	case bizconfig.FieldTypeEnum:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%s must be a string", spec.Name)
		}
		for _, allowed := range spec.AllowedValues() {
			if s == allowed {
				return s, nil
			}
		}
		return "", fmt.Errorf("%q is not an allowed value for %s", s, spec.Name)

	case bizconfig.FieldTypeAddress:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%s must be a string", spec.Name)
		}
		if !extraction.AddressComplete(s) {
			return "", fmt.Errorf("address lacks a street number, street, or suburb")
		}
		return s, nil

	case bizconfig.FieldTypeInteger:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%s must be a number", spec.Name)
		}
		i := int(n)
		if float64(i) != n {
			return "", fmt.Errorf("%s must be a whole number", spec.Name)
		}
		if i < spec.Min || (spec.Max > 0 && i > spec.Max) {
			return "", fmt.Errorf("%s out of range", spec.Name)
		}
		return strconv.Itoa(i), nil

	case bizconfig.FieldTypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return "", fmt.Errorf("%s must be a boolean", spec.Name)
		}
		return strconv.FormatBool(b), nil
	}

	return "", fmt.Errorf("unsupported field type %q", spec.Type)
}

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}

var _ extraction.Extractor = (*Extractor)(nil)
