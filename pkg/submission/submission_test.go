package submission_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/pkg/submission"
)

func TestSubmissionString(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "true renders Yes", value: true, want: "Yes"},
		{name: "false renders No", value: false, want: "No"},
		{name: "float drops trailing zeros", value: 1250.50, want: "1250.5"},
		{name: "int", value: 42, want: "42"},
		{name: "nil", value: nil, want: ""},
		{name: "string slice", value: []string{"a", "b"}, want: "a, b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := submission.Submission{"field": tc.value}
			if got := sub.String("field"); got != tc.want {
				t.Fatalf("String = %q, want %q", got, tc.want)
			}
		})
	}

	if got := (submission.Submission{}).String("absent"); got != "" {
		t.Fatalf("String on absent field = %q, want empty", got)
	}
}

func TestSubmissionEmpty(t *testing.T) {
	sub := submission.Submission{
		"blank":   "   ",
		"nothing": nil,
		"decline": false,
		"zero":    0,
		"list":    []string{},
	}

	cases := []struct {
		field string
		want  bool
	}{
		{field: "absent", want: true},
		{field: "blank", want: true},
		{field: "nothing", want: true},
		{field: "list", want: true},
		// A false boolean and a zero number are answers, not absences.
		{field: "decline", want: false},
		{field: "zero", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			if got := sub.Empty(tc.field); got != tc.want {
				t.Fatalf("Empty(%q) = %v, want %v", tc.field, got, tc.want)
			}
		})
	}
}

func TestSubmissionParseRoundTrip(t *testing.T) {
	sub := submission.Submission{
		"name":   "Ada",
		"agreed": true,
		"amount": 12.5,
	}

	payload, err := sub.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	got, err := submission.Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(sub, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := submission.Parse([]byte("not json")); err == nil {
		t.Fatal("Parse accepted malformed input")
	}
}

func TestSetOnNilMapIsSafe(t *testing.T) {
	var sub submission.Submission
	sub.Set("field", "value") // must not panic
	if !sub.Empty("field") {
		t.Fatal("nil submission should stay empty")
	}
}
