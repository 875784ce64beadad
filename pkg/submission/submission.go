// Package submission holds the value set collected by the form boundary and
// validates it against a template. Validation is pure and total: malformed
// input produces structured field errors, never a failure.
package submission

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Submission maps field names to entered values. It is built incrementally
// by the form boundary and discarded once a document has been generated.
type Submission map[string]any

// Set records a value. A nil map is left alone so the zero value stays safe
// to read.
func (s Submission) Set(field string, value any) {
	if s == nil {
		return
	}
	s[field] = value
}

// Value returns the entered value for a field.
func (s Submission) Value(field string) (any, bool) {
	value, ok := s[field]
	return value, ok
}

// String renders the entered value as the text that would be substituted
// into a document. Booleans become Yes/No, matching how completed forms read.
func (s Submission) String(field string) string {
	value, ok := s[field]
	if !ok {
		return ""
	}
	return renderValue(value)
}

// Empty reports whether a field has no usable value: absent, nil, or blank
// once trimmed. A false boolean is a value, not an absence.
func (s Submission) Empty(field string) bool {
	value, ok := s[field]
	if !ok || value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// MarshalJSON serializes the value map directly.
func (s Submission) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

// Parse decodes a JSON object into a Submission.
func Parse(data []byte) (Submission, error) {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("submission: decode: %w", err)
	}
	return Submission(values), nil
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprint(v)
	}
}
