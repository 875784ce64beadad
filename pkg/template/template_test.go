package template_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/template"
)

func textField(name string) template.Field {
	return template.Field{
		Name:      name,
		Type:      template.FieldTypeText,
		Source:    template.SourceExtracted,
		Confirmed: true,
	}
}

func showWhenNonEmpty(target, dep string) template.Rule {
	return template.Rule{
		FieldName: target,
		DependsOn: []string{dep},
		Condition: template.Condition{Field: dep, Operator: template.OperatorNonEmpty},
		Effect:    template.EffectShow,
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		fields  []template.Field
		rules   []template.Rule
		wantErr string
	}{
		{
			name:    "no fields",
			wantErr: "at least one field",
		},
		{
			name:    "duplicate field",
			fields:  []template.Field{textField("a"), textField("a")},
			wantErr: "duplicate field",
		},
		{
			name: "choice without choices",
			fields: []template.Field{{
				Name:   "color",
				Type:   template.FieldTypeChoice,
				Source: template.SourceExtracted,
			}},
			wantErr: "has no choices",
		},
		{
			name: "unknown type",
			fields: []template.Field{{
				Name:   "x",
				Type:   template.FieldType("blob"),
				Source: template.SourceExtracted,
			}},
			wantErr: "unknown type",
		},
		{
			name:    "rule targets unknown field",
			fields:  []template.Field{textField("a")},
			rules:   []template.Rule{showWhenNonEmpty("ghost", "a")},
			wantErr: `unknown field "ghost"`,
		},
		{
			name:    "rule depends on unknown field",
			fields:  []template.Field{textField("a")},
			rules:   []template.Rule{showWhenNonEmpty("a", "ghost")},
			wantErr: `unknown dependency "ghost"`,
		},
		{
			name:   "condition field outside dependsOn",
			fields: []template.Field{textField("a"), textField("b"), textField("c")},
			rules: []template.Rule{{
				FieldName: "a",
				DependsOn: []string{"b"},
				Condition: template.Condition{Field: "c", Operator: template.OperatorNonEmpty},
				Effect:    template.EffectShow,
			}},
			wantErr: "not in dependsOn",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := template.New(tc.fields, tc.rules)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestNewRejectsCycles(t *testing.T) {
	fields := []template.Field{textField("a"), textField("b")}

	cases := []struct {
		name  string
		rules []template.Rule
	}{
		{
			name:  "self dependency",
			rules: []template.Rule{showWhenNonEmpty("a", "a")},
		},
		{
			name: "two-field cycle",
			rules: []template.Rule{
				showWhenNonEmpty("a", "b"),
				showWhenNonEmpty("b", "a"),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := template.New(fields, tc.rules)
			if !errors.Is(err, template.ErrDependencyCycle) {
				t.Fatalf("expected ErrDependencyCycle, got %v", err)
			}
		})
	}
}

func TestResolutionOrderPutsDependenciesFirst(t *testing.T) {
	fields := []template.Field{textField("c"), textField("b"), textField("a")}
	rules := []template.Rule{
		showWhenNonEmpty("c", "b"),
		showWhenNonEmpty("b", "a"),
	}

	tpl, err := template.New(fields, rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, tpl.ResolutionOrder()); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolutionOrderIsStable(t *testing.T) {
	// Without rules the order is presentation order, every time.
	fields := []template.Field{textField("z"), textField("m"), textField("a")}
	tpl, err := template.New(fields, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := tpl.ResolutionOrder()
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, tpl.ResolutionOrder()); diff != "" {
			t.Fatalf("order changed between calls (-first +now):\n%s", diff)
		}
	}
	if diff := cmp.Diff([]string{"z", "m", "a"}, first); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	tpl, err := template.New([]template.Field{textField("a")}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fields := tpl.Fields()
	fields[0].Name = "mutated"

	if got := tpl.Fields()[0].Name; got != "a" {
		t.Fatalf("template mutated through accessor: %q", got)
	}
}

func TestConfirmAndRemove(t *testing.T) {
	fields := []template.Field{
		textField("a"),
		{Name: "extra", Type: template.FieldTypeText, Source: template.SourceAISuggested},
	}
	rules := []template.Rule{showWhenNonEmpty("extra", "a")}

	tpl, err := template.New(fields, rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	confirmed, err := tpl.Confirm("extra")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	field, _ := confirmed.Field("extra")
	if !field.Confirmed {
		t.Fatal("field not confirmed")
	}
	// Original template unchanged.
	field, _ = tpl.Field("extra")
	if field.Confirmed {
		t.Fatal("Confirm mutated the original template")
	}

	removed, err := tpl.Remove("extra")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := removed.Field("extra"); ok {
		t.Fatal("removed field still present")
	}
	if len(removed.Rules()) != 0 {
		t.Fatalf("rules referencing removed field kept: %+v", removed.Rules())
	}

	if _, err := tpl.Confirm("ghost"); err == nil {
		t.Fatal("Confirm accepted unknown field")
	}
	if _, err := tpl.Remove("ghost"); err == nil {
		t.Fatal("Remove accepted unknown field")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	fields := []template.Field{
		{
			Name:      "loan_type",
			Type:      template.FieldTypeChoice,
			Label:     "Loan Type",
			Choices:   []string{"personal", "joint"},
			Required:  true,
			Source:    template.SourceExtracted,
			Confirmed: true,
		},
		{
			Name:      "cosigner_name",
			Type:      template.FieldTypeText,
			Label:     "Cosigner Name",
			Source:    template.SourceExtracted,
			Confirmed: true,
		},
	}
	rules := []template.Rule{{
		FieldName: "cosigner_name",
		DependsOn: []string{"loan_type"},
		Condition: template.Condition{Field: "loan_type", Operator: template.OperatorEquals, Value: "joint"},
		Effect:    template.EffectRequire,
	}}

	tpl, err := template.New(fields, rules)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	payload, err := template.Marshal(tpl)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := template.Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if diff := cmp.Diff(tpl.Fields(), got.Fields()); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tpl.Rules(), got.Rules()); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalYAML(t *testing.T) {
	payload := []byte(`
fields:
  - name: client_name
    type: text
    label: Client Name
    required: true
    source: extracted
    confirmed: true
`)

	tpl, err := template.Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	field, ok := tpl.Field("client_name")
	if !ok || field.Label != "Client Name" || !field.Required {
		t.Fatalf("unexpected field: %+v", field)
	}
}

func TestUnmarshalCorruptInput(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "not a document", payload: `{{{`},
		{name: "empty fields", payload: `{"fields": []}`},
		{name: "cyclic rules", payload: `{
			"fields": [
				{"name": "a", "type": "text", "source": "extracted", "confirmed": true},
				{"name": "b", "type": "text", "source": "extracted", "confirmed": true}
			],
			"rules": [
				{"fieldName": "a", "dependsOn": ["b"], "condition": {"field": "b", "operator": "non-empty"}, "effect": "show"},
				{"fieldName": "b", "dependsOn": ["a"], "condition": {"field": "a", "operator": "non-empty"}, "effect": "show"}
			]
		}`},
		{name: "unknown operator", payload: `{
			"fields": [
				{"name": "a", "type": "text", "source": "extracted", "confirmed": true}
			],
			"rules": [
				{"fieldName": "a", "dependsOn": ["a"], "condition": {"field": "a", "operator": "matches"}, "effect": "show"}
			]
		}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := template.Unmarshal([]byte(tc.payload))
			if !errors.Is(err, template.ErrSchemaCorrupt) {
				t.Fatalf("expected ErrSchemaCorrupt, got %v", err)
			}
		})
	}
}

func TestUnmarshalForcesExtractedConfirmed(t *testing.T) {
	payload := []byte(`{
		"fields": [
			{"name": "a", "type": "text", "source": "extracted", "confirmed": false}
		]
	}`)

	tpl, err := template.Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	field, _ := tpl.Field("a")
	if !field.Confirmed {
		t.Fatal("extracted field should always be confirmed")
	}
}
