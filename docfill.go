// Package docfill turns placeholder-bearing documents into structured fill
// flows: extract ${tokens}, build a typed template with dependency rules,
// validate a submission, and write the filled document back out with its
// formatting intact.
package docfill

import (
	"context"
	"io"

	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/pipeline"
	"github.com/goliatone/go-docfill/pkg/placeholder"
	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
)

// Source identifies a document to load; alias exported via the root package
// for convenience.
type Source = document.Source

// Placeholder is a distinct ${token} with every location it appears at.
type Placeholder = placeholder.Placeholder

// Template is the typed schema built from a document's placeholders.
type Template = template.Template

// Submission maps field names to entered values.
type Submission = submission.Submission

// FieldError describes one validation failure.
type FieldError = submission.FieldError

// FileSource points at a document on disk.
func FileSource(path string) Source {
	return document.SourceFromFile(path)
}

// BytesSource wraps an in-memory document.
func BytesSource(name string, payload []byte) Source {
	return document.SourceFromBytes(name, payload)
}

// NewPipeline exposes the pipeline constructor from the top-level module.
func NewPipeline(options ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(options...)
}

// ExtractPlaceholders loads the source and returns its distinct
// placeholders. It is the simplest entry point for callers that just want to
// see what a document asks for.
func ExtractPlaceholders(src Source, options ...pipeline.Option) ([]Placeholder, error) {
	_, placeholders, err := pipeline.New(options...).Extract(src)
	return placeholders, err
}

// BuildTemplate loads the source, extracts its placeholders, and builds a
// template from them. Attach a completion service through
// pipeline.WithBuilder to enrich the result.
func BuildTemplate(ctx context.Context, src Source, options ...pipeline.Option) (*Template, error) {
	return pipeline.New(options...).Build(ctx, src)
}

// GenerateDocument validates the submission against the template, fills the
// source document, and writes the artifact to out.
func GenerateDocument(ctx context.Context, src Source, tpl *Template, values Submission, out io.Writer, options ...pipeline.Option) error {
	return pipeline.New(options...).Generate(ctx, pipeline.GenerateRequest{
		Source:   src,
		Template: tpl,
		Values:   values,
		Output:   out,
	})
}

// Validate checks a submission against a template without touching the
// document.
func Validate(tpl *Template, values Submission) []FieldError {
	return submission.Validate(tpl, values)
}
