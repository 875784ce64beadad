package forms_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/forms"
	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
	"github.com/goliatone/go-docfill/pkg/testsupport"
)

// scriptedDriver replays canned answers keyed by prompt message and records
// which prompts were shown.
type scriptedDriver struct {
	inputs   map[string][]string
	confirms map[string][]bool
	selects  map[string][]int
	asked    []string
	infos    []string
}

func (d *scriptedDriver) take(name string) string {
	queue := d.inputs[name]
	if len(queue) == 0 {
		return ""
	}
	d.inputs[name] = queue[1:]
	return queue[0]
}

func (d *scriptedDriver) Input(_ context.Context, cfg forms.InputConfig) (string, error) {
	d.asked = append(d.asked, cfg.Message)
	return d.take(cfg.Message), nil
}

func (d *scriptedDriver) Confirm(_ context.Context, cfg forms.ConfirmConfig) (bool, error) {
	d.asked = append(d.asked, cfg.Message)
	queue := d.confirms[cfg.Message]
	if len(queue) == 0 {
		return cfg.Default, nil
	}
	d.confirms[cfg.Message] = queue[1:]
	return queue[0], nil
}

func (d *scriptedDriver) Select(_ context.Context, cfg forms.SelectConfig) (int, error) {
	d.asked = append(d.asked, cfg.Message)
	queue := d.selects[cfg.Message]
	if len(queue) == 0 {
		return 0, nil
	}
	d.selects[cfg.Message] = queue[1:]
	return queue[0], nil
}

func (d *scriptedDriver) TextArea(_ context.Context, cfg forms.TextAreaConfig) (string, error) {
	d.asked = append(d.asked, cfg.Message)
	return d.take(cfg.Message), nil
}

func (d *scriptedDriver) Info(_ context.Context, msg string) error {
	d.infos = append(d.infos, msg)
	return nil
}

func cosignerTemplate(t *testing.T) *template.Template {
	t.Helper()
	return testsupport.MustTemplate(t,
		[]template.Field{
			{
				Name: "loan_type", Label: "Loan Type", Type: template.FieldTypeChoice,
				Choices: []string{"personal", "joint"}, Required: true,
				Source: template.SourceExtracted, Confirmed: true,
			},
			{
				Name: "cosigner_name", Label: "Cosigner Name", Type: template.FieldTypeText,
				Source: template.SourceExtracted, Confirmed: true,
			},
		},
		[]template.Rule{{
			FieldName: "cosigner_name",
			DependsOn: []string{"loan_type"},
			Condition: template.Condition{Field: "loan_type", Operator: template.OperatorEquals, Value: "joint"},
			Effect:    template.EffectRequire,
		}},
	)
}

func TestSessionSkipsHiddenFields(t *testing.T) {
	driver := &scriptedDriver{
		selects: map[string][]int{"Loan Type": {0}}, // personal
	}

	session := forms.NewSession(forms.WithDriver(driver))
	_, sub, err := session.Run(context.Background(), cosignerTemplate(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := submission.Submission{"loan_type": "personal"}
	if diff := cmp.Diff(want, sub); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
	for _, msg := range driver.asked {
		if msg == "Cosigner Name" {
			t.Fatal("hidden field was prompted")
		}
	}
}

func TestSessionRevealsDependentField(t *testing.T) {
	driver := &scriptedDriver{
		selects: map[string][]int{"Loan Type": {1}}, // joint
		inputs:  map[string][]string{"Cosigner Name": {"Charles Babbage"}},
	}

	session := forms.NewSession(forms.WithDriver(driver))
	tpl, sub, err := session.Run(context.Background(), cosignerTemplate(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := submission.Submission{
		"loan_type":     "joint",
		"cosigner_name": "Charles Babbage",
	}
	if diff := cmp.Diff(want, sub); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
	if errs := submission.Validate(tpl, sub); len(errs) != 0 {
		t.Fatalf("session produced invalid submission: %v", errs)
	}
}

func TestSessionRepromptsOnInvalidValue(t *testing.T) {
	tpl := testsupport.MustTemplate(t,
		[]template.Field{{
			Name: "loan_amount", Label: "Loan Amount", Type: template.FieldTypeNumber,
			Required: true, Source: template.SourceExtracted, Confirmed: true,
		}},
		nil,
	)
	driver := &scriptedDriver{
		inputs: map[string][]string{"Loan Amount": {"lots", "1250.50"}},
	}

	session := forms.NewSession(forms.WithDriver(driver))
	_, sub, err := session.Run(context.Background(), tpl)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := sub["loan_amount"]; got != "1250.50" {
		t.Fatalf("loan_amount = %v", got)
	}
	if len(driver.infos) == 0 {
		t.Fatal("expected an invalid-value message")
	}
}

func TestSessionReviewsSuggestedFields(t *testing.T) {
	tpl := testsupport.MustTemplate(t,
		[]template.Field{
			{
				Name: "client_name", Label: "Client Name", Type: template.FieldTypeText,
				Source: template.SourceExtracted, Confirmed: true,
			},
			{Name: "witness_name", Label: "Witness", Type: template.FieldTypeText, Source: template.SourceAISuggested},
			{Name: "notary_name", Label: "Notary", Type: template.FieldTypeText, Source: template.SourceAISuggested},
		},
		nil,
	)

	driver := &scriptedDriver{
		confirms: map[string][]bool{
			`Include suggested field "Witness"?`: {true},
			`Include suggested field "Notary"?`:  {false},
		},
		inputs: map[string][]string{
			"Client Name": {"Ada"},
			"Witness":     {"Grace Hopper"},
		},
	}

	session := forms.NewSession(forms.WithDriver(driver))
	tpl, sub, err := session.Run(context.Background(), tpl)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := tpl.Field("notary_name"); ok {
		t.Fatal("declined suggestion still in template")
	}
	field, ok := tpl.Field("witness_name")
	if !ok || !field.Confirmed {
		t.Fatalf("accepted suggestion not confirmed: %+v", field)
	}

	want := submission.Submission{
		"client_name":  "Ada",
		"witness_name": "Grace Hopper",
	}
	if diff := cmp.Diff(want, sub); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
}

func TestSessionSeedsInitialValues(t *testing.T) {
	tpl := testsupport.MustTemplate(t,
		[]template.Field{{
			Name: "client_name", Label: "Client Name", Type: template.FieldTypeText,
			Source: template.SourceExtracted, Confirmed: true,
		}},
		nil,
	)
	driver := &scriptedDriver{
		// Empty input keeps nothing; the seeded default flows through only if
		// re-entered, so script the same value back.
		inputs: map[string][]string{"Client Name": {"Ada"}},
	}

	session := forms.NewSession(
		forms.WithDriver(driver),
		forms.WithInitialValues(submission.Submission{"client_name": "Ada", "ghost": "x"}),
	)
	_, sub, err := session.Run(context.Background(), tpl)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := sub["ghost"]; ok {
		t.Fatal("value for unknown field kept")
	}
	if got := sub["client_name"]; got != "Ada" {
		t.Fatalf("client_name = %v", got)
	}
}
