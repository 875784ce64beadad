// Package assemble substitutes submitted values into a document container.
// Substitution is all-or-nothing: every replacement is resolved (including
// any completion-service rewrites) before the first run is touched, so a
// failed assembly leaves the container unmodified.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/goliatone/go-docfill/pkg/completion"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/placeholder"
	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
	"github.com/goliatone/go-docfill/pkg/visibility"
)

// ErrUnresolvedPlaceholder reports a visible placeholder with neither a
// submitted value nor a schema default. Callers should run validation first;
// this is the backstop for documents assembled from raw submissions.
var ErrUnresolvedPlaceholder = errors.New("assemble: unresolved placeholder")

const defaultContextChars = 4000

// Option customises the assembler configuration.
type Option func(*Assembler)

// WithCompletion attaches a completion service used to expand values for
// fields flagged for enhancement. Without it values substitute verbatim.
func WithCompletion(svc completion.Service) Option {
	return func(a *Assembler) {
		a.svc = svc
	}
}

// WithLogger attaches a logger for enhancement-fallback events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// Assembler writes submitted values into placeholder locations while leaving
// every other byte of the container alone.
type Assembler struct {
	svc          completion.Service
	logger       *slog.Logger
	contextChars int
}

// New creates an Assembler with the supplied options.
func New(options ...Option) *Assembler {
	a := &Assembler{contextChars: defaultContextChars}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(a)
	}
	return a
}

// runEdit replaces [start, end) of one run's original text.
type runEdit struct {
	paragraph   int
	run         int
	start, end  int
	replacement string
}

// Assemble resolves a replacement for every placeholder occurrence and
// applies them to the container. Hidden fields substitute as empty text, so
// their tokens vanish from the output. Confirmed suggested fields without a
// placeholder carry their answers into trailing paragraphs. The container is
// modified in place; call its WriteTo to produce the final artifact.
func (a *Assembler) Assemble(ctx context.Context, container document.Container, tpl *template.Template, placeholders []placeholder.Placeholder, sub submission.Submission) error {
	if container == nil {
		return errors.New("assemble: container is required")
	}
	if tpl == nil {
		return errors.New("assemble: template is required")
	}

	values, err := a.resolveValues(ctx, container, tpl, placeholders, sub)
	if err != nil {
		return err
	}
	appendices := a.resolveAppendices(ctx, container, tpl, placeholders, sub)

	edits, err := planEdits(container, placeholders, values)
	if err != nil {
		return err
	}
	if err := applyEdits(container, edits); err != nil {
		return err
	}

	for _, line := range appendices {
		if err := container.AppendParagraph(line); err != nil {
			return fmt.Errorf("assemble: append paragraph: %w", err)
		}
	}
	return nil
}

// resolveValues computes the replacement text per placeholder name. This is
// the only phase that can fail or call out; it runs before any mutation.
func (a *Assembler) resolveValues(ctx context.Context, doc document.Document, tpl *template.Template, placeholders []placeholder.Placeholder, sub submission.Submission) (map[string]string, error) {
	states := visibility.Resolve(tpl, map[string]any(sub))

	var docContext string
	if a.svc != nil {
		docContext = document.Flatten(doc, a.contextChars)
	}

	values := make(map[string]string, len(placeholders))
	for _, ph := range placeholders {
		field, ok := tpl.Field(ph.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not in the template", ErrUnresolvedPlaceholder, ph.Name)
		}

		if state := states[ph.Name]; !state.Visible {
			values[ph.Name] = ""
			continue
		}

		value := sub.String(ph.Name)
		if sub.Empty(ph.Name) {
			value = field.Default
		}
		if value == "" {
			return nil, fmt.Errorf("%w: %q has no value and no default", ErrUnresolvedPlaceholder, ph.Name)
		}

		if field.Enhance && a.svc != nil {
			expanded, err := a.svc.GenerateText(ctx, completion.TextRequest{
				Field:   field.Label,
				Value:   value,
				Context: docContext,
			})
			if err != nil && a.logger != nil {
				a.logger.WarnContext(ctx, "text enhancement degraded to verbatim value",
					"field", ph.Name,
					"error", err)
			}
			value = completion.FallbackText(value, expanded, err)
		}

		values[ph.Name] = value
	}
	return values, nil
}

// resolveAppendices renders "Label: value" lines for confirmed ai-suggested
// fields that have no placeholder to land in, so an accepted suggestion's
// answer still reaches the artifact. Runs before any mutation; unanswered or
// hidden fields add nothing.
func (a *Assembler) resolveAppendices(ctx context.Context, doc document.Document, tpl *template.Template, placeholders []placeholder.Placeholder, sub submission.Submission) []string {
	placed := make(map[string]bool, len(placeholders))
	for _, ph := range placeholders {
		placed[ph.Name] = true
	}
	states := visibility.Resolve(tpl, map[string]any(sub))

	var lines []string
	for _, field := range tpl.Fields() {
		if field.Source != template.SourceAISuggested || !field.Confirmed || placed[field.Name] {
			continue
		}
		if !states[field.Name].Visible {
			continue
		}

		value := sub.String(field.Name)
		if sub.Empty(field.Name) {
			value = field.Default
		}
		if value == "" {
			continue
		}

		if field.Enhance && a.svc != nil {
			expanded, err := a.svc.GenerateText(ctx, completion.TextRequest{
				Field:   field.Label,
				Value:   value,
				Context: document.Flatten(doc, a.contextChars),
			})
			if err != nil && a.logger != nil {
				a.logger.WarnContext(ctx, "text enhancement degraded to verbatim value",
					"field", field.Name,
					"error", err)
			}
			value = completion.FallbackText(value, expanded, err)
		}

		label := field.Label
		if label == "" {
			label = field.Name
		}
		lines = append(lines, label+": "+value)
	}
	return lines
}

// planEdits turns occurrences into per-run edits, validating every span
// against the current document shape. The first span of an occurrence
// receives the replacement; continuation spans in later runs are blanked.
func planEdits(doc document.Document, placeholders []placeholder.Placeholder, values map[string]string) ([]runEdit, error) {
	paragraphs := doc.Paragraphs()

	var edits []runEdit
	for _, ph := range placeholders {
		replacement := values[ph.Name]
		for _, occurrence := range ph.Occurrences {
			for i, span := range occurrence.Spans {
				if err := document.CheckRunRef(paragraphs, span.Paragraph, span.Run); err != nil {
					return nil, fmt.Errorf("assemble: placeholder %q: %w", ph.Name, err)
				}
				text := paragraphs[span.Paragraph].Runs[span.Run].Text
				if span.Start < 0 || span.End > len(text) || span.Start > span.End {
					return nil, fmt.Errorf("assemble: placeholder %q: span [%d,%d) outside run of length %d", ph.Name, span.Start, span.End, len(text))
				}

				edit := runEdit{
					paragraph: span.Paragraph,
					run:       span.Run,
					start:     span.Start,
					end:       span.End,
				}
				if i == 0 {
					edit.replacement = replacement
				}
				edits = append(edits, edit)
			}
		}
	}
	return edits, nil
}

// applyEdits rewrites each touched run exactly once. Edits within a run are
// applied back to front so earlier offsets stay valid, all against the run's
// original text.
func applyEdits(doc document.Document, edits []runEdit) error {
	grouped := make(map[[2]int][]runEdit)
	var order [][2]int
	for _, edit := range edits {
		key := [2]int{edit.paragraph, edit.run}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], edit)
	}

	paragraphs := doc.Paragraphs()
	for _, key := range order {
		runEdits := grouped[key]
		sort.Slice(runEdits, func(i, j int) bool {
			return runEdits[i].start > runEdits[j].start
		})

		text := paragraphs[key[0]].Runs[key[1]].Text
		for _, edit := range runEdits {
			text = text[:edit.start] + edit.replacement + text[edit.end:]
		}
		if err := doc.SetRunText(key[0], key[1], text); err != nil {
			return fmt.Errorf("assemble: apply edit: %w", err)
		}
	}
	return nil
}
