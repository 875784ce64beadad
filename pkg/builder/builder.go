// Package builder turns extracted placeholders into a typed template.
// Local name heuristics run first; placeholders they cannot classify are
// optionally enriched through the completion service. Everything the service
// returns is provisional: rules are re-validated against the template
// invariants and anything unusable is dropped, never fatal.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/goliatone/go-docfill/pkg/completion"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/placeholder"
	"github.com/goliatone/go-docfill/pkg/template"
)

const (
	defaultConcurrency  = 4
	defaultContextChars = 4000
)

// ErrAmbiguousSchema reports a local-inference collision: the same name
// resolved to two different types. Placeholder identity is by name, so this
// guards against extractor bugs rather than user input.
var ErrAmbiguousSchema = errors.New("builder: ambiguous schema")

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Option customises the builder configuration.
type Option func(*Builder)

// WithCompletion attaches a completion service used to enrich placeholders
// the local heuristics cannot classify. Without it the builder is fully
// offline.
func WithCompletion(svc completion.Service) Option {
	return func(b *Builder) {
		b.svc = svc
	}
}

// WithEnrichAll asks the service about every placeholder, not just the
// unclassified ones.
func WithEnrichAll() Option {
	return func(b *Builder) {
		b.enrichAll = true
	}
}

// WithFieldSuggestions additionally asks the service which placeholders the
// document is missing. Suggested fields enter the template unconfirmed.
func WithFieldSuggestions() Option {
	return func(b *Builder) {
		b.suggestFields = true
	}
}

// WithConcurrency caps how many enrichment requests run at once.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger attaches a logger for dropped-rule and fallback events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithLabeler overrides how field labels are derived from names.
func WithLabeler(labeler func(string) string) Option {
	return func(b *Builder) {
		if labeler != nil {
			b.labeler = labeler
		}
	}
}

// Builder assembles templates from placeholders.
type Builder struct {
	svc           completion.Service
	enrichAll     bool
	suggestFields bool
	concurrency   int
	contextChars  int
	logger        *slog.Logger
	labeler       func(string) string
}

// New creates a Builder with the supplied options.
func New(options ...Option) *Builder {
	b := &Builder{
		concurrency:  defaultConcurrency,
		contextChars: defaultContextChars,
		labeler:      DefaultLabeler,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(b)
	}
	return b
}

// Build converts the extracted placeholders into a Template. The document
// supplies surrounding text for enrichment prompts; it is never modified.
func (b *Builder) Build(ctx context.Context, doc document.Document, placeholders []placeholder.Placeholder) (*template.Template, error) {
	if len(placeholders) == 0 {
		return nil, errors.New("builder: no placeholders to build from")
	}

	fields, pending, err := b.inferFields(placeholders)
	if err != nil {
		return nil, err
	}

	var rules []template.Rule
	if b.svc != nil {
		docContext := document.Flatten(doc, b.contextChars)
		known := fieldNames(fields)

		suggestions := b.enrich(ctx, pending, docContext, known)
		rules = b.merge(fields, suggestions)

		if b.suggestFields {
			fields = b.appendSuggestedFields(ctx, fields, docContext)
		}
	}

	return b.assemble(fields, rules)
}

// inferFields runs local heuristics and reports which placeholders still
// need enrichment.
func (b *Builder) inferFields(placeholders []placeholder.Placeholder) ([]template.Field, []string, error) {
	fields := make([]template.Field, 0, len(placeholders))
	inferred := make(map[string]template.FieldType, len(placeholders))
	var pending []string

	for _, ph := range placeholders {
		fieldType, confident := inferType(ph.Name)
		if prior, seen := inferred[ph.Name]; seen {
			if prior != fieldType {
				return nil, nil, fmt.Errorf("%w: %q inferred as both %q and %q", ErrAmbiguousSchema, ph.Name, prior, fieldType)
			}
			continue
		}
		inferred[ph.Name] = fieldType

		fields = append(fields, template.Field{
			Name:      ph.Name,
			Type:      fieldType,
			Label:     b.labeler(ph.Name),
			Source:    template.SourceExtracted,
			Confirmed: true,
		})
		if !confident || b.enrichAll {
			pending = append(pending, ph.Name)
		}
	}
	return fields, pending, nil
}

type enrichResult struct {
	name       string
	suggestion completion.SchemaSuggestion
}

// enrich fans enrichment requests out to the service under the concurrency
// cap. Failures degrade per placeholder through FallbackSuggestion; the
// build never aborts because the service misbehaved.
func (b *Builder) enrich(ctx context.Context, names []string, docContext string, known []string) []enrichResult {
	if len(names) == 0 {
		return nil
	}

	results := make([]enrichResult, len(names))
	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func(slot int, placeholderName string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			suggestion, err := b.svc.SuggestSchema(ctx, completion.SchemaRequest{
				Placeholder: placeholderName,
				Context:     docContext,
				Known:       known,
			})
			if err != nil && b.logger != nil {
				b.logger.WarnContext(ctx, "schema enrichment degraded to plain text",
					"placeholder", placeholderName,
					"error", err)
			}
			results[slot] = enrichResult{
				name:       placeholderName,
				suggestion: completion.FallbackSuggestion(suggestion, err),
			}
		}(i, name)
	}
	wg.Wait()

	return results
}

// merge applies enrichment suggestions to the field list in place and
// returns the candidate rules they carried.
func (b *Builder) merge(fields []template.Field, results []enrichResult) []template.Rule {
	index := make(map[string]int, len(fields))
	for i, field := range fields {
		index[field.Name] = i
	}

	var rules []template.Rule
	for _, result := range results {
		idx, ok := index[result.name]
		if !ok {
			continue
		}
		field := &fields[idx]
		suggestion := result.suggestion

		if suggested, ok := parseSuggestedType(suggestion.Type); ok {
			if suggested != template.FieldTypeChoice || len(suggestion.Choices) > 0 {
				field.Type = suggested
				field.Choices = suggestion.Choices
			}
		}
		if suggestion.Label != "" {
			field.Label = suggestion.Label
		}
		if suggestion.Default != "" {
			field.Default = suggestion.Default
		}

		for _, candidate := range suggestion.Rules {
			rule, ok := b.parseRule(result.name, candidate, index)
			if !ok {
				continue
			}
			rules = append(rules, rule)
		}
	}
	return rules
}

// parseRule converts a rule candidate, rejecting anything that references an
// unknown field or carries an unknown operator/effect.
func (b *Builder) parseRule(fieldName string, candidate completion.RuleSuggestion, index map[string]int) (template.Rule, bool) {
	dep := strings.TrimSpace(candidate.DependsOn)
	if _, ok := index[dep]; !ok || dep == fieldName {
		b.dropRule(fieldName, candidate, "unknown or self dependency")
		return template.Rule{}, false
	}

	operator := template.Operator(strings.TrimSpace(candidate.Operator))
	switch operator {
	case template.OperatorEquals, template.OperatorNotEquals, template.OperatorNonEmpty, template.OperatorEmpty:
	default:
		b.dropRule(fieldName, candidate, "unknown operator")
		return template.Rule{}, false
	}

	effect := template.Effect(strings.TrimSpace(candidate.Effect))
	switch effect {
	case template.EffectShow, template.EffectHide, template.EffectRequire, template.EffectOptional:
	default:
		b.dropRule(fieldName, candidate, "unknown effect")
		return template.Rule{}, false
	}

	return template.Rule{
		FieldName: fieldName,
		DependsOn: []string{dep},
		Condition: template.Condition{
			Field:    dep,
			Operator: operator,
			Value:    candidate.Value,
		},
		Effect: effect,
	}, true
}

// appendSuggestedFields asks the service for missing placeholders and adds
// well-formed ones as unconfirmed ai-suggested fields. Errors are absorbed.
func (b *Builder) appendSuggestedFields(ctx context.Context, fields []template.Field, docContext string) []template.Field {
	suggested, err := b.svc.SuggestFields(ctx, completion.FieldsRequest{
		Context: docContext,
		Known:   fieldNames(fields),
	})
	if err != nil {
		if b.logger != nil {
			b.logger.WarnContext(ctx, "missing-field suggestion skipped", "error", err)
		}
		return fields
	}

	existing := make(map[string]bool, len(fields))
	for _, field := range fields {
		existing[field.Name] = true
	}

	for _, candidate := range suggested {
		name := strings.TrimSpace(candidate.Name)
		if name == "" || existing[name] || !identifierPattern.MatchString(name) {
			continue
		}
		existing[name] = true

		fieldType, ok := parseSuggestedType(candidate.Type)
		if !ok || fieldType == template.FieldTypeChoice {
			fieldType = template.FieldTypeText
		}
		label := candidate.Label
		if label == "" {
			label = b.labeler(name)
		}
		fields = append(fields, template.Field{
			Name:   name,
			Type:   fieldType,
			Label:  label,
			Source: template.SourceAISuggested,
		})
	}
	return fields
}

// assemble builds the final template, admitting candidate rules one at a
// time so a rule that would introduce a cycle is dropped instead of sinking
// the whole build.
func (b *Builder) assemble(fields []template.Field, candidates []template.Rule) (*template.Template, error) {
	var accepted []template.Rule
	for _, candidate := range candidates {
		trial := append(append([]template.Rule(nil), accepted...), candidate)
		if _, err := template.New(fields, trial); err != nil {
			if b.logger != nil {
				b.logger.Warn("dropping suggested dependency rule",
					"field", candidate.FieldName,
					"depends_on", candidate.DependsOn,
					"error", err)
			}
			continue
		}
		accepted = append(accepted, candidate)
	}

	tpl, err := template.New(fields, accepted)
	if err != nil {
		return nil, fmt.Errorf("builder: assemble template: %w", err)
	}
	return tpl, nil
}

func fieldNames(fields []template.Field) []string {
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		names = append(names, field.Name)
	}
	return names
}

func (b *Builder) dropRule(fieldName string, candidate completion.RuleSuggestion, reason string) {
	if b.logger == nil {
		return
	}
	b.logger.Warn("dropping suggested dependency rule",
		"field", fieldName,
		"depends_on", candidate.DependsOn,
		"reason", reason)
}
