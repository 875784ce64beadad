package builder

import (
	"strings"

	"github.com/goliatone/go-docfill/pkg/template"
)

// inferType guesses a field type from the placeholder name alone. The second
// return reports confidence: a false means the guess is the plain-text
// default and the placeholder is a candidate for enrichment.
func inferType(name string) (template.FieldType, bool) {
	lower := strings.ToLower(name)

	for _, cue := range dateCues {
		if strings.Contains(lower, cue) {
			return template.FieldTypeDate, true
		}
	}
	if strings.HasSuffix(lower, "_at") || strings.HasSuffix(lower, "_on") {
		return template.FieldTypeDate, true
	}

	for _, prefix := range booleanPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return template.FieldTypeBoolean, true
		}
	}
	for _, cue := range booleanCues {
		if strings.Contains(lower, cue) {
			return template.FieldTypeBoolean, true
		}
	}

	for _, cue := range longTextCues {
		if strings.Contains(lower, cue) {
			return template.FieldTypeLongText, true
		}
	}

	for _, cue := range numberCues {
		if strings.Contains(lower, cue) {
			return template.FieldTypeNumber, true
		}
	}

	return template.FieldTypeText, false
}

var (
	dateCues = []string{"date", "dob", "birthday", "deadline", "expiry", "expiration"}

	booleanPrefixes = []string{"is_", "has_", "can_", "should_", "include_"}
	booleanCues     = []string{"agree", "consent", "yes_no", "_flag"}

	longTextCues = []string{"description", "notes", "summary", "comments", "details", "bio", "body"}

	numberCues = []string{
		"amount", "rate", "price", "qty", "quantity", "count",
		"total", "age", "salary", "fee", "percent", "score", "number_of",
	}
)

// parseSuggestedType maps a completion-service type string onto the schema
// enum. Unknown strings report false so the caller keeps its local guess.
func parseSuggestedType(raw string) (template.FieldType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "string":
		return template.FieldTypeText, true
	case "long-text", "longtext", "textarea", "paragraph":
		return template.FieldTypeLongText, true
	case "number", "numeric", "integer", "float":
		return template.FieldTypeNumber, true
	case "date", "datetime":
		return template.FieldTypeDate, true
	case "boolean", "bool", "checkbox", "yes/no":
		return template.FieldTypeBoolean, true
	case "choice", "select", "dropdown", "enum":
		return template.FieldTypeChoice, true
	default:
		return "", false
	}
}
