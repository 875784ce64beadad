// Package forms runs the interactive fill flow: it walks the template in
// presentation order, re-resolves visibility after every answer so dependent
// fields appear and disappear as values change, and returns a submission
// that validates cleanly.
package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
	"github.com/goliatone/go-docfill/pkg/visibility"
)

// Option customises the session configuration.
type Option func(*Session)

// WithDriver swaps the prompt implementation. Defaults to the survey-backed
// terminal driver.
func WithDriver(driver Driver) Option {
	return func(s *Session) {
		if driver != nil {
			s.driver = driver
		}
	}
}

// WithInitialValues seeds the session with already-known answers. Seeded
// fields are still shown with the value as the default, so the person can
// review and change them.
func WithInitialValues(values submission.Submission) Option {
	return func(s *Session) {
		s.initial = values
	}
}

// Session drives one interactive fill of a template.
type Session struct {
	driver  Driver
	initial submission.Submission
}

// NewSession creates a Session with the supplied options.
func NewSession(options ...Option) *Session {
	s := &Session{driver: NewSurveyDriver()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Run walks the template and collects a submission. Unconfirmed ai-suggested
// fields are offered first; accepted ones join the form, declined ones are
// removed from the returned template. The returned submission passes
// Validate against the returned template.
func (s *Session) Run(ctx context.Context, tpl *template.Template) (*template.Template, submission.Submission, error) {
	if tpl == nil {
		return nil, nil, errors.New("forms: template is required")
	}

	tpl, err := s.reviewSuggestions(ctx, tpl)
	if err != nil {
		return nil, nil, err
	}

	sub := submission.Submission{}
	for name, value := range s.initial {
		if _, ok := tpl.Field(name); ok {
			sub.Set(name, value)
		}
	}

	asked := make(map[string]bool)
	// Answers can reveal fields earlier in presentation order, so keep
	// sweeping until a pass completes without prompting.
	for {
		prompted := false
		states := visibility.Resolve(tpl, map[string]any(sub))

		for _, field := range tpl.Fields() {
			state := states[field.Name]
			if !state.Visible || asked[field.Name] {
				continue
			}

			if err := s.promptField(ctx, tpl, field, state, sub); err != nil {
				return nil, nil, err
			}
			asked[field.Name] = true
			prompted = true
			break
		}

		if !prompted {
			break
		}
	}

	// A field can be hidden after it was answered; drop its value so the
	// submission matches what the final resolution shows.
	states := visibility.Resolve(tpl, map[string]any(sub))
	for name := range sub {
		if state, ok := states[name]; ok && !state.Visible {
			delete(sub, name)
		}
	}

	return tpl, sub, nil
}

// reviewSuggestions confirms or removes unconfirmed ai-suggested fields.
func (s *Session) reviewSuggestions(ctx context.Context, tpl *template.Template) (*template.Template, error) {
	var accepted, declined []string
	for _, field := range tpl.Fields() {
		if field.Source != template.SourceAISuggested || field.Confirmed {
			continue
		}
		keep, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Include suggested field %q?", labelOrName(field)),
			Default: false,
			Help:    "This field was suggested as missing from the document.",
		})
		if err != nil {
			return nil, err
		}
		if keep {
			accepted = append(accepted, field.Name)
		} else {
			declined = append(declined, field.Name)
		}
	}

	var err error
	if len(accepted) > 0 {
		if tpl, err = tpl.Confirm(accepted...); err != nil {
			return nil, fmt.Errorf("forms: confirm suggested fields: %w", err)
		}
	}
	if len(declined) > 0 {
		if tpl, err = tpl.Remove(declined...); err != nil {
			return nil, fmt.Errorf("forms: remove declined fields: %w", err)
		}
	}
	return tpl, nil
}

// promptField asks for one field with the prompt shape its type calls for,
// re-asking until the value validates.
func (s *Session) promptField(ctx context.Context, tpl *template.Template, field template.Field, state visibility.FieldState, sub submission.Submission) error {
	for {
		value, entered, err := s.ask(ctx, field, sub)
		if err != nil {
			return err
		}

		if !entered {
			if state.Required {
				if err := s.driver.Info(ctx, fmt.Sprintf("%s is required", labelOrName(field))); err != nil {
					return err
				}
				continue
			}
			delete(sub, field.Name)
			return nil
		}

		sub.Set(field.Name, value)
		if fieldErr := firstErrorFor(tpl, field.Name, sub); fieldErr != nil {
			if err := s.driver.Info(ctx, "Invalid value: "+fieldErr.Message); err != nil {
				return err
			}
			delete(sub, field.Name)
			continue
		}
		return nil
	}
}

// ask issues the typed prompt. The second return reports whether a usable
// value was entered.
func (s *Session) ask(ctx context.Context, field template.Field, sub submission.Submission) (any, bool, error) {
	label := labelOrName(field)
	defaultText := sub.String(field.Name)
	if defaultText == "" {
		defaultText = field.Default
	}

	switch field.Type {
	case template.FieldTypeBoolean:
		value, err := s.driver.Confirm(ctx, ConfirmConfig{
			Message: label,
			Default: strings.EqualFold(defaultText, "yes") || strings.EqualFold(defaultText, "true"),
		})
		if err != nil {
			return nil, false, err
		}
		return value, true, nil

	case template.FieldTypeChoice:
		defaultIdx := indexOf(field.Choices, defaultText)
		idx, err := s.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      field.Choices,
			DefaultIndex: defaultIdx,
		})
		if err != nil {
			return nil, false, err
		}
		if idx < 0 || idx >= len(field.Choices) {
			return nil, false, nil
		}
		return field.Choices[idx], true, nil

	case template.FieldTypeLongText:
		value, err := s.driver.TextArea(ctx, TextAreaConfig{
			Message: label,
			Default: defaultText,
		})
		if err != nil {
			return nil, false, err
		}
		return value, strings.TrimSpace(value) != "", nil

	default:
		cfg := InputConfig{Message: label, Default: defaultText}
		if field.Type == template.FieldTypeDate {
			cfg.Help = "Use YYYY-MM-DD."
		}
		value, err := s.driver.Input(ctx, cfg)
		if err != nil {
			return nil, false, err
		}
		return value, strings.TrimSpace(value) != "", nil
	}
}

// firstErrorFor validates the submission and returns the first error that
// concerns the named field. Errors for other fields are ignored here; they
// surface when their own prompts run.
func firstErrorFor(tpl *template.Template, name string, sub submission.Submission) *submission.FieldError {
	for _, fieldErr := range submission.Validate(tpl, sub) {
		if fieldErr.Field == name {
			return &fieldErr
		}
	}
	return nil
}

func labelOrName(field template.Field) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Name
}
