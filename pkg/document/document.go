package document

import (
	"fmt"
	"io"
	"strings"
)

// Run is a contiguous stretch of text that shares one set of formatting
// attributes inside its paragraph. The attributes themselves stay inside the
// container; the model only exposes the text so edits cannot disturb styling.
type Run struct {
	Text string
}

// Paragraph is an ordered sequence of runs. Flattening the runs yields the
// paragraph text as a reader would see it, regardless of how the authoring
// tool split the styling.
type Paragraph struct {
	Runs []Run
}

// Text returns the flattened paragraph text.
func (p Paragraph) Text() string {
	var out strings.Builder
	for _, run := range p.Runs {
		out.WriteString(run.Text)
	}
	return out.String()
}

// Document gives read access to the run-structured text of a container plus
// write access to individual run texts. Implementations must leave every
// formatting attribute untouched when a run's text changes.
type Document interface {
	// Paragraphs returns the paragraphs in document order. Callers must not
	// mutate the returned slices; use SetRunText for edits.
	Paragraphs() []Paragraph

	// SetRunText replaces the text of the identified run.
	SetRunText(paragraph, run int, text string) error
}

// Container couples a Document with the ability to write the (possibly
// edited) artifact back out in its original format.
type Container interface {
	Document

	// AppendParagraph adds a new single-run paragraph after the existing
	// content. Used for values that have no placeholder to land in.
	AppendParagraph(text string) error

	// WriteTo serializes the container, reflecting any run edits, while
	// reproducing untouched content byte-for-byte where the format allows.
	WriteTo(w io.Writer) (int64, error)
}

// Loader resolves a Source into a Container. Implementations live with the
// format they understand (internal/docx for Word documents).
type Loader interface {
	Load(src Source) (Container, error)
}

// Flatten joins the document's paragraph text with blank lines, truncated to
// limit bytes (0 = unlimited). Used wherever surrounding text is handed to
// the completion service as context.
func Flatten(doc Document, limit int) string {
	if doc == nil {
		return ""
	}
	var out strings.Builder
	for _, paragraph := range doc.Paragraphs() {
		text := paragraph.Text()
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
		if limit > 0 && out.Len() >= limit {
			break
		}
	}
	text := out.String()
	if limit > 0 && len(text) > limit {
		text = text[:limit]
	}
	return text
}

// CheckRunRef validates a (paragraph, run) pair against a paragraph slice.
// Shared by container implementations so they fail identically.
func CheckRunRef(paragraphs []Paragraph, paragraph, run int) error {
	if paragraph < 0 || paragraph >= len(paragraphs) {
		return fmt.Errorf("document: paragraph %d out of range [0,%d)", paragraph, len(paragraphs))
	}
	if run < 0 || run >= len(paragraphs[paragraph].Runs) {
		return fmt.Errorf("document: run %d out of range [0,%d) in paragraph %d", run, len(paragraphs[paragraph].Runs), paragraph)
	}
	return nil
}
