// Package completion talks to an external text-completion service. The
// pipeline uses it for two things: enriching placeholder schemas with labels,
// types, and dependency candidates, and optionally rewriting raw values into
// polished text during assembly. Every call is bounded and every failure is
// absorbable: callers fall back to local inference or the raw value.
package completion

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable reports that the service could not be reached within
	// the retry budget. Never fatal to the pipeline.
	ErrUnavailable = errors.New("completion: service unavailable")
	// ErrMalformedResponse reports a reply that could not be parsed into the
	// requested shape.
	ErrMalformedResponse = errors.New("completion: malformed response")
)

// SchemaRequest asks for schema enrichment of a single placeholder.
type SchemaRequest struct {
	// Placeholder is the token identifier needing enrichment.
	Placeholder string
	// Context is the surrounding document text.
	Context string
	// Known lists the other placeholder names, so suggested dependency rules
	// can only reference fields that exist.
	Known []string
}

// RuleSuggestion is a candidate dependency rule. It is provisional: the
// schema builder validates it against the template invariants before use.
type RuleSuggestion struct {
	DependsOn string `json:"depends_on"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	Effect    string `json:"effect"`
}

// SchemaSuggestion is the parsed enrichment for one placeholder.
type SchemaSuggestion struct {
	Label   string           `json:"label"`
	Type    string           `json:"type"`
	Default string           `json:"default"`
	Choices []string         `json:"choices"`
	Rules   []RuleSuggestion `json:"rules"`
}

// FieldsRequest asks which placeholders the document is missing.
type FieldsRequest struct {
	Context string
	Known   []string
}

// SuggestedField names a placeholder the service thinks the document should
// have. These enter the schema unconfirmed.
type SuggestedField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// TextRequest asks for an expanded rewrite of a raw field value.
type TextRequest struct {
	Field   string
	Value   string
	Context string
}

// Service is the completion collaborator boundary. Implementations must obey
// the supplied context for cancellation and deadlines.
type Service interface {
	SuggestSchema(ctx context.Context, req SchemaRequest) (SchemaSuggestion, error)
	SuggestFields(ctx context.Context, req FieldsRequest) ([]SuggestedField, error)
	GenerateText(ctx context.Context, req TextRequest) (string, error)
}

// FallbackSuggestion folds a primary result and its error into the
// suggestion to actually use. Pure, so degradation is testable without a
// live service: any error yields the plain-text no-rules suggestion.
func FallbackSuggestion(primary SchemaSuggestion, err error) SchemaSuggestion {
	if err == nil {
		return primary
	}
	return SchemaSuggestion{Type: "text"}
}

// FallbackText folds a rewrite result and its error into the text to
// substitute: on any error the raw value is used verbatim.
func FallbackText(raw, generated string, err error) string {
	if err != nil || generated == "" {
		return raw
	}
	return generated
}
