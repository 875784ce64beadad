// Package placeholder scans run-structured documents for ${identifier}
// substitution tokens. Tokens split across formatting boundaries are still
// recognized: each paragraph is flattened before matching and every match is
// mapped back onto the runs it touches.
package placeholder

import (
	"errors"
	"regexp"

	"github.com/goliatone/go-docfill/pkg/document"
)

// ErrNoPlaceholders reports a document without a single ${...} token. This is
// surfaced rather than swallowed because it almost always means the wrong
// file was supplied as a template.
var ErrNoPlaceholders = errors.New("placeholder: no placeholders found")

var tokenPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Span addresses a slice of a single run: byte offsets [Start, End) within
// the run's text.
type Span struct {
	Paragraph int `json:"paragraph"`
	Run       int `json:"run"`
	Start     int `json:"start"`
	End       int `json:"end"`
}

// Occurrence is one appearance of a token. A token that crosses formatting
// boundaries carries one span per run it touches, in document order.
type Occurrence struct {
	Spans []Span `json:"spans"`
}

// Placeholder is the distinct token identified by Name, with every location
// it appears at. Duplicate appearances collapse into one Placeholder.
type Placeholder struct {
	Name        string       `json:"name"`
	Occurrences []Occurrence `json:"occurrences"`
}

// Extract scans every paragraph in document order and returns the distinct
// placeholders ordered by first appearance. It is read-only with respect to
// the document.
func Extract(doc document.Document) ([]Placeholder, error) {
	if doc == nil {
		return nil, errors.New("placeholder: document is required")
	}

	var (
		order []string
		byName = make(map[string]*Placeholder)
	)

	for paraIdx, paragraph := range doc.Paragraphs() {
		flat := paragraph.Text()
		if flat == "" {
			continue
		}

		// Byte offset of each run's text within the flattened paragraph.
		starts := make([]int, len(paragraph.Runs))
		offset := 0
		for i, run := range paragraph.Runs {
			starts[i] = offset
			offset += len(run.Text)
		}

		for _, match := range tokenPattern.FindAllStringSubmatchIndex(flat, -1) {
			name := flat[match[2]:match[3]]
			occurrence := Occurrence{Spans: mapSpans(paragraph, starts, paraIdx, match[0], match[1])}

			entry, ok := byName[name]
			if !ok {
				entry = &Placeholder{Name: name}
				byName[name] = entry
				order = append(order, name)
			}
			entry.Occurrences = append(entry.Occurrences, occurrence)
		}
	}

	if len(order) == 0 {
		return nil, ErrNoPlaceholders
	}

	out := make([]Placeholder, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, nil
}

// mapSpans projects the flattened range [start, end) back onto the runs it
// overlaps.
func mapSpans(paragraph document.Paragraph, starts []int, paraIdx, start, end int) []Span {
	var spans []Span
	for i, run := range paragraph.Runs {
		runStart := starts[i]
		runEnd := runStart + len(run.Text)
		if runEnd <= start || runStart >= end {
			continue
		}

		s := Span{Paragraph: paraIdx, Run: i}
		s.Start = max(start-runStart, 0)
		s.End = min(end-runStart, len(run.Text))
		spans = append(spans, s)
	}
	return spans
}
