package template

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// fieldDoc and ruleDoc mirror the wire shape of the template schema file:
// a top-level `fields` array and `rules` array. YAML is accepted on load
// alongside JSON, matching how config-adjacent documents are handled
// elsewhere in the module.
type fieldDoc struct {
	Name      string   `json:"name" yaml:"name"`
	Type      string   `json:"type" yaml:"type"`
	Label     string   `json:"label,omitempty" yaml:"label,omitempty"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty"`
	Choices   []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	Required  bool     `json:"required" yaml:"required"`
	Source    string   `json:"source" yaml:"source"`
	Confirmed bool     `json:"confirmed" yaml:"confirmed"`
	Enhance   bool     `json:"enhance,omitempty" yaml:"enhance,omitempty"`
}

type conditionDoc struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
}

type ruleDoc struct {
	FieldName string       `json:"fieldName" yaml:"fieldName"`
	DependsOn []string     `json:"dependsOn" yaml:"dependsOn"`
	Condition conditionDoc `json:"condition" yaml:"condition"`
	Effect    string       `json:"effect" yaml:"effect"`
}

type templateDoc struct {
	Fields []fieldDoc `json:"fields" yaml:"fields"`
	Rules  []ruleDoc  `json:"rules" yaml:"rules"`
}

// Marshal serializes the template as indented JSON. Field and rule order are
// preserved so the output round-trips exactly through Unmarshal.
func Marshal(t *Template) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("template: marshal nil template")
	}

	doc := templateDoc{
		Fields: make([]fieldDoc, 0, len(t.fields)),
		Rules:  make([]ruleDoc, 0, len(t.rules)),
	}
	for _, field := range t.fields {
		doc.Fields = append(doc.Fields, fieldDoc{
			Name:      field.Name,
			Type:      string(field.Type),
			Label:     field.Label,
			Default:   field.Default,
			Choices:   field.Choices,
			Required:  field.Required,
			Source:    string(field.Source),
			Confirmed: field.Confirmed,
			Enhance:   field.Enhance,
		})
	}
	for _, rule := range t.rules {
		doc.Rules = append(doc.Rules, ruleDoc{
			FieldName: rule.FieldName,
			DependsOn: rule.DependsOn,
			Condition: conditionDoc{
				Field:    rule.Condition.Field,
				Operator: string(rule.Condition.Operator),
				Value:    rule.Condition.Value,
			},
			Effect: string(rule.Effect),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("template: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal parses a serialized template and rebuilds it through New, so the
// reference and acyclicity invariants are re-checked on load rather than
// trusted from storage. Structurally invalid input fails with
// ErrSchemaCorrupt.
func Unmarshal(data []byte) (*Template, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrSchemaCorrupt)
	}

	var doc templateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
			return nil, fmt.Errorf("%w: decode: %v", ErrSchemaCorrupt, err)
		}
	}

	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("%w: missing fields", ErrSchemaCorrupt)
	}

	fields := make([]Field, 0, len(doc.Fields))
	for i, fd := range doc.Fields {
		if fd.Name == "" {
			return nil, fmt.Errorf("%w: field %d missing name", ErrSchemaCorrupt, i)
		}
		if fd.Type == "" {
			return nil, fmt.Errorf("%w: field %q missing type", ErrSchemaCorrupt, fd.Name)
		}
		source := fd.Source
		if source == "" {
			source = string(SourceExtracted)
		}
		field := Field{
			Name:      fd.Name,
			Type:      FieldType(fd.Type),
			Label:     fd.Label,
			Default:   fd.Default,
			Choices:   fd.Choices,
			Required:  fd.Required,
			Source:    FieldSource(source),
			Confirmed: fd.Confirmed,
			Enhance:   fd.Enhance,
		}
		if field.Source == SourceExtracted {
			field.Confirmed = true
		}
		fields = append(fields, field)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for _, rd := range doc.Rules {
		rules = append(rules, Rule{
			FieldName: rd.FieldName,
			DependsOn: rd.DependsOn,
			Condition: Condition{
				Field:    rd.Condition.Field,
				Operator: Operator(rd.Condition.Operator),
				Value:    rd.Condition.Value,
			},
			Effect: Effect(rd.Effect),
		})
	}

	tpl, err := New(fields, rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaCorrupt, err)
	}
	return tpl, nil
}
