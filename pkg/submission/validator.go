package submission

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-docfill/pkg/template"
	"github.com/goliatone/go-docfill/pkg/visibility"
)

// Code classifies a field-level validation error.
type Code string

const (
	CodeMissingRequired Code = "missing-required"
	CodeTypeMismatch    Code = "type-mismatch"
	CodeUnknownField    Code = "unknown-field"
)

// FieldError describes one validation failure for the caller to present.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// dateLayouts are accepted for date fields, first match wins. ISO is
// canonical; the rest cover common manual entry.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"2 January 2006",
}

// Validate checks a submission against the template. Required state comes
// from the resolver using the submission's own values, so hidden fields
// never block submission. An empty result means the submission is valid.
func Validate(tpl *template.Template, sub Submission) []FieldError {
	var errs []FieldError

	states := visibility.Resolve(tpl, map[string]any(sub))

	var unknown []string
	for name := range sub {
		if _, ok := tpl.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, FieldError{
			Field:   name,
			Code:    CodeUnknownField,
			Message: fmt.Sprintf("field %q is not part of the template", name),
		})
	}

	for _, field := range tpl.Fields() {
		state := states[field.Name]

		if sub.Empty(field.Name) {
			if state.Required {
				errs = append(errs, FieldError{
					Field:   field.Name,
					Code:    CodeMissingRequired,
					Message: fmt.Sprintf("%s is required", labelOrName(field)),
				})
			}
			continue
		}

		if err := checkType(field, sub[field.Name]); err != nil {
			errs = append(errs, FieldError{
				Field:   field.Name,
				Code:    CodeTypeMismatch,
				Message: err.Error(),
			})
		}
	}

	return errs
}

func labelOrName(field template.Field) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Name
}

func checkType(field template.Field, value any) error {
	switch field.Type {
	case template.FieldTypeText, template.FieldTypeLongText:
		return nil

	case template.FieldTypeNumber:
		switch v := value.(type) {
		case int, int32, int64, float32, float64:
			return nil
		case string:
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				return fmt.Errorf("%q is not a number", v)
			}
			return nil
		default:
			return fmt.Errorf("%v is not a number", value)
		}

	case template.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return nil
		case string:
			if _, ok := parseBoolean(v); !ok {
				return fmt.Errorf("%q is not a yes/no value", v)
			}
			return nil
		default:
			return fmt.Errorf("%v is not a yes/no value", value)
		}

	case template.FieldTypeDate:
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("%v is not a date", value)
		}
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%q is not a recognized date", text)

	case template.FieldTypeChoice:
		text := fmt.Sprint(value)
		for _, choice := range field.Choices {
			if choice == text {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %s", text, strings.Join(field.Choices, ", "))

	default:
		return nil
	}
}

// parseBoolean accepts the spellings a form or a document is likely to use.
func parseBoolean(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "y", "1":
		return true, true
	case "false", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}
