// Package template models the field schema derived from a document's
// placeholders: typed fields in presentation order plus the dependency rules
// that drive conditional visibility. Templates are immutable once built;
// mutating operations return a new Template.
package template

import (
	"errors"
	"fmt"
)

// FieldType enumerates the form-friendly field kinds.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeLongText FieldType = "long-text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypeChoice   FieldType = "choice"
)

// FieldSource records how a field entered the schema. AI-suggested fields are
// untrusted input: they stay out of resolution, validation, and assembly
// until a human confirms them.
type FieldSource string

const (
	SourceExtracted   FieldSource = "extracted"
	SourceAISuggested FieldSource = "ai-suggested"
)

// Effect enumerates what a matched rule does to its target field.
type Effect string

const (
	EffectShow     Effect = "show"
	EffectHide     Effect = "hide"
	EffectRequire  Effect = "require"
	EffectOptional Effect = "optional"
)

// Operator enumerates the supported condition predicates.
type Operator string

const (
	OperatorEquals    Operator = "equals"
	OperatorNotEquals Operator = "not-equals"
	OperatorNonEmpty  Operator = "non-empty"
	OperatorEmpty     Operator = "empty"
)

// Field is a schema entry derived from a placeholder (or suggested by the
// completion service). Name doubles as the placeholder token identifier.
type Field struct {
	Name     string
	Type     FieldType
	Label    string
	Default  string
	Choices  []string
	Required bool
	Source   FieldSource
	// Confirmed gates ai-suggested fields; extracted fields are always
	// confirmed.
	Confirmed bool
	// Enhance asks the assembler to route this field's raw value through the
	// completion service before substitution.
	Enhance bool
}

// Condition is a predicate over the current value of a single dependency
// field.
type Condition struct {
	Field    string
	Operator Operator
	Value    string
}

// Rule is a directed dependency edge: when Condition holds over the current
// values, Effect applies to FieldName.
type Rule struct {
	FieldName string
	DependsOn []string
	Condition Condition
	Effect    Effect
}

// Template is the immutable schema for one source document.
type Template struct {
	fields []Field
	rules  []Rule
	index  map[string]int
	topo   []string
}

var (
	// ErrSchemaCorrupt reports a structurally invalid serialized template.
	ErrSchemaCorrupt = errors.New("template: schema corrupt")
	// ErrDependencyCycle reports a rule set whose dependency graph is cyclic.
	ErrDependencyCycle = errors.New("template: dependency cycle")
)

// New validates fields and rules and builds a Template. Field order is
// preserved as presentation order. Any rule referencing an unknown field, or
// introducing a cycle into the dependency graph, rejects the whole set.
func New(fields []Field, rules []Rule) (*Template, error) {
	if len(fields) == 0 {
		return nil, errors.New("template: at least one field is required")
	}

	index := make(map[string]int, len(fields))
	for i, field := range fields {
		if field.Name == "" {
			return nil, fmt.Errorf("template: field %d has no name", i)
		}
		if _, dup := index[field.Name]; dup {
			return nil, fmt.Errorf("template: duplicate field %q", field.Name)
		}
		if err := validateField(field); err != nil {
			return nil, err
		}
		index[field.Name] = i
	}

	for i, rule := range rules {
		if err := validateRule(rule, index); err != nil {
			return nil, fmt.Errorf("template: rule %d: %w", i, err)
		}
	}

	topo, err := resolutionOrder(fields, rules)
	if err != nil {
		return nil, err
	}

	return &Template{
		fields: cloneFields(fields),
		rules:  cloneRules(rules),
		index:  index,
		topo:   topo,
	}, nil
}

func validateField(field Field) error {
	switch field.Type {
	case FieldTypeText, FieldTypeLongText, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean:
	case FieldTypeChoice:
		if len(field.Choices) == 0 {
			return fmt.Errorf("template: choice field %q has no choices", field.Name)
		}
	default:
		return fmt.Errorf("template: field %q has unknown type %q", field.Name, field.Type)
	}

	switch field.Source {
	case SourceExtracted, SourceAISuggested:
	default:
		return fmt.Errorf("template: field %q has unknown source %q", field.Name, field.Source)
	}
	return nil
}

func validateRule(rule Rule, index map[string]int) error {
	if rule.FieldName == "" {
		return errors.New("missing field name")
	}
	if _, ok := index[rule.FieldName]; !ok {
		return fmt.Errorf("unknown field %q", rule.FieldName)
	}
	if len(rule.DependsOn) == 0 {
		return fmt.Errorf("rule for %q depends on nothing", rule.FieldName)
	}
	for _, dep := range rule.DependsOn {
		if _, ok := index[dep]; !ok {
			return fmt.Errorf("unknown dependency %q", dep)
		}
	}

	switch rule.Effect {
	case EffectShow, EffectHide, EffectRequire, EffectOptional:
	default:
		return fmt.Errorf("unknown effect %q", rule.Effect)
	}

	switch rule.Condition.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorNonEmpty, OperatorEmpty:
	default:
		return fmt.Errorf("unknown operator %q", rule.Condition.Operator)
	}
	if rule.Condition.Field == "" {
		return errors.New("condition missing field")
	}
	if !contains(rule.DependsOn, rule.Condition.Field) {
		return fmt.Errorf("condition field %q is not in dependsOn", rule.Condition.Field)
	}
	return nil
}

// Fields returns the fields in presentation order.
func (t *Template) Fields() []Field {
	return cloneFields(t.fields)
}

// Rules returns the dependency rules in definition order.
func (t *Template) Rules() []Rule {
	return cloneRules(t.rules)
}

// Field looks a field up by name.
func (t *Template) Field(name string) (Field, bool) {
	idx, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[idx], true
}

// RulesFor returns the rules targeting the named field, in definition order.
func (t *Template) RulesFor(name string) []Rule {
	var out []Rule
	for _, rule := range t.rules {
		if rule.FieldName == name {
			out = append(out, rule)
		}
	}
	return out
}

// ResolutionOrder returns the cached topological order of the dependency
// graph: dependencies before dependents, presentation order otherwise.
func (t *Template) ResolutionOrder() []string {
	return append([]string(nil), t.topo...)
}

// Confirm returns a new Template with the named ai-suggested fields marked
// confirmed. Unknown names are rejected.
func (t *Template) Confirm(names ...string) (*Template, error) {
	fields := cloneFields(t.fields)
	for _, name := range names {
		idx, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("template: confirm unknown field %q", name)
		}
		fields[idx].Confirmed = true
	}
	return New(fields, t.rules)
}

// Remove returns a new Template without the named fields. Rules referencing a
// removed field are dropped alongside it.
func (t *Template) Remove(names ...string) (*Template, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := t.index[name]; !ok {
			return nil, fmt.Errorf("template: remove unknown field %q", name)
		}
		drop[name] = true
	}

	var fields []Field
	for _, field := range t.fields {
		if !drop[field.Name] {
			fields = append(fields, field)
		}
	}
	var rules []Rule
	for _, rule := range t.rules {
		if drop[rule.FieldName] {
			continue
		}
		keep := true
		for _, dep := range rule.DependsOn {
			if drop[dep] {
				keep = false
				break
			}
		}
		if keep {
			rules = append(rules, rule)
		}
	}
	return New(fields, rules)
}

func cloneFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		out[i].Choices = append([]string(nil), fields[i].Choices...)
	}
	return out
}

func cloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	for i := range out {
		out[i].DependsOn = append([]string(nil), rules[i].DependsOn...)
	}
	return out
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
