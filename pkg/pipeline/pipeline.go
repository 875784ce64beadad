// Package pipeline coordinates the full flow from document to filled
// artifact: load → extract → build template, and load → validate → assemble
// → write. It applies defaults (docx loader, offline builder, plain
// assembler) while remaining open to dependency injection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-docfill/internal/docx"
	"github.com/goliatone/go-docfill/pkg/assemble"
	"github.com/goliatone/go-docfill/pkg/builder"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/placeholder"
	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
)

// Option customises the pipeline configuration.
type Option func(*Pipeline)

// WithLoader injects a custom container loader. Defaults to the docx loader.
func WithLoader(loader document.Loader) Option {
	return func(p *Pipeline) {
		if loader != nil {
			p.loader = loader
		}
	}
}

// WithBuilder injects a configured schema builder, typically one carrying a
// completion service.
func WithBuilder(b *builder.Builder) Option {
	return func(p *Pipeline) {
		if b != nil {
			p.builder = b
		}
	}
}

// WithAssembler injects a configured assembler.
func WithAssembler(a *assemble.Assembler) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.assembler = a
		}
	}
}

// WithLogger attaches a logger for stage-level events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline wires the stages together. The zero configuration is fully
// offline: heuristic schema building and verbatim substitution.
type Pipeline struct {
	loader    document.Loader
	builder   *builder.Builder
	assembler *assemble.Assembler
	logger    *slog.Logger
}

// New constructs a Pipeline applying any provided options.
func New(options ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(p)
	}
	if p.loader == nil {
		p.loader = docx.New()
	}
	if p.builder == nil {
		p.builder = builder.New()
	}
	if p.assembler == nil {
		p.assembler = assemble.New()
	}
	return p
}

// Extract loads the source and returns its container together with the
// distinct placeholders found in it.
func (p *Pipeline) Extract(src document.Source) (document.Container, []placeholder.Placeholder, error) {
	container, err := p.loader.Load(src)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: load: %w", err)
	}
	placeholders, err := placeholder.Extract(container)
	if err != nil {
		return nil, nil, err
	}
	if p.logger != nil {
		p.logger.Debug("extracted placeholders",
			"source", src.Location(),
			"count", len(placeholders))
	}
	return container, placeholders, nil
}

// Build loads the source, extracts its placeholders, and builds a template
// from them.
func (p *Pipeline) Build(ctx context.Context, src document.Source) (*template.Template, error) {
	if ctx == nil {
		return nil, errors.New("pipeline: context is required")
	}
	container, placeholders, err := p.Extract(src)
	if err != nil {
		return nil, err
	}
	return p.builder.Build(ctx, container, placeholders)
}

// InvalidSubmissionError aggregates the field errors that stopped a
// generation run.
type InvalidSubmissionError struct {
	Errors []submission.FieldError
}

func (e *InvalidSubmissionError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fieldErr := range e.Errors {
		parts = append(parts, fieldErr.Error())
	}
	return "pipeline: invalid submission: " + strings.Join(parts, "; ")
}

// GenerateRequest describes the inputs for one document generation.
type GenerateRequest struct {
	// Source identifies the document to fill.
	Source document.Source

	// Template is the schema the submission is validated against.
	Template *template.Template

	// Values holds the submitted answers.
	Values submission.Submission

	// Output receives the assembled artifact.
	Output io.Writer
}

// Generate executes the load → extract → validate → assemble → write
// sequence. Validation failures surface as *InvalidSubmissionError before
// any byte is written.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) error {
	if ctx == nil {
		return errors.New("pipeline: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Template == nil {
		return errors.New("pipeline: template is required")
	}
	if req.Output == nil {
		return errors.New("pipeline: output is required")
	}

	container, placeholders, err := p.Extract(req.Source)
	if err != nil {
		return err
	}

	if errs := submission.Validate(req.Template, req.Values); len(errs) > 0 {
		return &InvalidSubmissionError{Errors: errs}
	}

	if err := p.assembler.Assemble(ctx, container, req.Template, placeholders, req.Values); err != nil {
		return err
	}

	if _, err := container.WriteTo(req.Output); err != nil {
		return fmt.Errorf("pipeline: write output: %w", err)
	}
	if p.logger != nil {
		p.logger.Info("document generated", "source", req.Source.Location())
	}
	return nil
}
