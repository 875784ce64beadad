// Package visibility resolves which fields are currently visible and
// required given the values entered so far. Resolution is deterministic and
// side-effect free: the form boundary calls it after every change.
package visibility

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-docfill/pkg/template"
)

// FieldState is the resolved presentation state of one field.
type FieldState struct {
	Visible  bool
	Required bool
}

// Resolve walks the template's cached topological order (dependencies before
// dependents) and applies dependency rules in definition order. Rule policy:
//
//   - a field with no rules targeting it keeps its defaults (visible,
//     required per the schema);
//   - a field targeted by rules starts hidden and becomes visible when any
//     of its rules' conditions hold, after which matched effects apply in
//     order, later rules overriding earlier ones on conflict;
//   - a hidden field is always non-required, whatever its rules say;
//   - unconfirmed ai-suggested fields resolve to hidden and non-required.
//
// Acyclicity is guaranteed at template construction, so resolution never
// loops.
func Resolve(tpl *template.Template, values map[string]any) map[string]FieldState {
	states := make(map[string]FieldState, len(tpl.Fields()))

	for _, name := range tpl.ResolutionOrder() {
		field, _ := tpl.Field(name)

		if field.Source == template.SourceAISuggested && !field.Confirmed {
			states[name] = FieldState{}
			continue
		}

		rules := tpl.RulesFor(name)
		if len(rules) == 0 {
			states[name] = FieldState{Visible: true, Required: field.Required}
			continue
		}

		state := FieldState{Visible: false, Required: field.Required}
		for _, rule := range rules {
			if !Holds(rule.Condition, restrict(values, rule.DependsOn)) {
				continue
			}
			state.Visible = true
			switch rule.Effect {
			case template.EffectShow:
				state.Visible = true
			case template.EffectHide:
				state.Visible = false
			case template.EffectRequire:
				state.Required = true
			case template.EffectOptional:
				state.Required = false
			}
		}

		if !state.Visible {
			state.Required = false
		}
		states[name] = state
	}

	return states
}

// Holds evaluates a condition against the supplied values.
func Holds(cond template.Condition, values map[string]any) bool {
	value, present := values[cond.Field]

	switch cond.Operator {
	case template.OperatorNonEmpty:
		return present && !isEmpty(value)
	case template.OperatorEmpty:
		return !present || isEmpty(value)
	case template.OperatorEquals:
		return present && equalsLiteral(value, cond.Value)
	case template.OperatorNotEquals:
		return !present || !equalsLiteral(value, cond.Value)
	default:
		return false
	}
}

func restrict(values map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		if value, ok := values[key]; ok {
			out[key] = value
		}
	}
	return out
}

// equalsLiteral compares a submitted value against a rule literal, coercing
// the literal toward the value's type so `true`, `5`, and `yes` behave the
// way form input does.
func equalsLiteral(value any, literal string) bool {
	switch value.(type) {
	case bool:
		if want, err := strconv.ParseBool(strings.TrimSpace(literal)); err == nil {
			return value.(bool) == want
		}
		return false
	case int, int32, int64, float32, float64:
		got, _ := coerceNumber(value)
		if want, err := strconv.ParseFloat(strings.TrimSpace(literal), 64); err == nil {
			return got == want
		}
		return false
	default:
		return coerceString(value) == literal
	}
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
