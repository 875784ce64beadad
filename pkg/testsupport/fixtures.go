// Package testsupport holds fixtures shared by the package tests: an
// in-memory document container and a minimal docx builder.
package testsupport

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/template"
)

// MemoryDocument is an in-memory document.Container. WriteTo emits the
// flattened text, one paragraph per line, so assembly tests can assert on
// output without a real container format.
type MemoryDocument struct {
	paragraphs []document.Paragraph
}

// NewMemoryDocument builds a container from run texts: one inner slice per
// paragraph, one string per run.
func NewMemoryDocument(paragraphs [][]string) *MemoryDocument {
	doc := &MemoryDocument{}
	for _, runs := range paragraphs {
		paragraph := document.Paragraph{}
		for _, text := range runs {
			paragraph.Runs = append(paragraph.Runs, document.Run{Text: text})
		}
		doc.paragraphs = append(doc.paragraphs, paragraph)
	}
	return doc
}

// Paragraphs returns a copy of the paragraph structure.
func (d *MemoryDocument) Paragraphs() []document.Paragraph {
	out := make([]document.Paragraph, len(d.paragraphs))
	for i, paragraph := range d.paragraphs {
		out[i] = document.Paragraph{Runs: append([]document.Run(nil), paragraph.Runs...)}
	}
	return out
}

// SetRunText replaces one run's text.
func (d *MemoryDocument) SetRunText(paragraph, run int, text string) error {
	if err := document.CheckRunRef(d.paragraphs, paragraph, run); err != nil {
		return err
	}
	d.paragraphs[paragraph].Runs[run].Text = text
	return nil
}

// AppendParagraph adds a single-run paragraph at the end.
func (d *MemoryDocument) AppendParagraph(text string) error {
	d.paragraphs = append(d.paragraphs, document.Paragraph{Runs: []document.Run{{Text: text}}})
	return nil
}

// WriteTo writes the flattened text, one paragraph per line.
func (d *MemoryDocument) WriteTo(w io.Writer) (int64, error) {
	var out strings.Builder
	for _, paragraph := range d.paragraphs {
		out.WriteString(paragraph.Text())
		out.WriteString("\n")
	}
	n, err := io.WriteString(w, out.String())
	return int64(n), err
}

// BuildDocx assembles a minimal Word container in memory: a content-types
// entry plus word/document.xml holding the given paragraphs and runs.
func BuildDocx(t *testing.T, paragraphs [][]string) []byte {
	t.Helper()

	var doc strings.Builder
	doc.WriteString(xml.Header)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, runs := range paragraphs {
		doc.WriteString("<w:p>")
		for _, text := range runs {
			var escaped bytes.Buffer
			if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
				t.Fatalf("escape run text: %v", err)
			}
			fmt.Fprintf(&doc, `<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">%s</w:t></w:r>`, escaped.String())
		}
		doc.WriteString("</w:p>")
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/document.xml": doc.String(),
	}
	for name, content := range entries {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// MustTemplate builds a template or fails the test.
func MustTemplate(t *testing.T, fields []template.Field, rules []template.Rule) *template.Template {
	t.Helper()

	tpl, err := template.New(fields, rules)
	if err != nil {
		t.Fatalf("build template: %v", err)
	}
	return tpl
}
