package docx_test

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-docfill/internal/docx"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/testsupport"
)

func load(t *testing.T, payload []byte) document.Container {
	t.Helper()
	container, err := docx.New().Load(document.SourceFromBytes("test.docx", payload))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return container
}

func TestLoadReadsRunStructure(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{
		{"Dear ", "${client_name}", ","},
		{"Amount due: ${amount}"},
	})

	container := load(t, payload)
	paragraphs := container.Paragraphs()
	if len(paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(paragraphs))
	}

	var runs []string
	for _, run := range paragraphs[0].Runs {
		runs = append(runs, run.Text)
	}
	if diff := cmp.Diff([]string{"Dear ", "${client_name}", ","}, runs); diff != "" {
		t.Fatalf("runs mismatch (-want +got):\n%s", diff)
	}
	if got := paragraphs[1].Text(); got != "Amount due: ${amount}" {
		t.Fatalf("paragraph text = %q", got)
	}
}

func TestSetRunTextRoundTrip(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{
		{"Dear ", "${client_name}", ","},
	})

	container := load(t, payload)
	if err := container.SetRunText(0, 1, "Ada Lovelace"); err != nil {
		t.Fatalf("SetRunText: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	if got := reloaded.Paragraphs()[0].Text(); got != "Dear Ada Lovelace," {
		t.Fatalf("text after round trip = %q", got)
	}
}

func TestWriteToEscapesReplacementText(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"${x}"}})

	container := load(t, payload)
	if err := container.SetRunText(0, 0, `Smith & Sons <Ltd>`); err != nil {
		t.Fatalf("SetRunText: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	if got := reloaded.Paragraphs()[0].Text(); got != `Smith & Sons <Ltd>` {
		t.Fatalf("text after round trip = %q", got)
	}
}

func TestWriteToPreservesFormattingAndSiblingEntries(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"Hello ${name}"}})

	container := load(t, payload)
	if err := container.SetRunText(0, 0, "Hello Ada"); err != nil {
		t.Fatalf("SetRunText: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}

	var docXML string
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", file.Name, err)
		}
		var buf bytes.Buffer
		buf.ReadFrom(rc)
		rc.Close()

		switch file.Name {
		case "word/document.xml":
			docXML = buf.String()
		case "[Content_Types].xml":
			// Untouched entries must survive byte for byte.
			if !strings.Contains(buf.String(), "content-types") {
				t.Fatalf("content types entry mangled: %q", buf.String())
			}
		}
	}

	// Run properties stay exactly where they were.
	if !strings.Contains(docXML, "<w:rPr><w:b/></w:rPr>") {
		t.Fatalf("formatting stripped from document.xml:\n%s", docXML)
	}
	if !strings.Contains(docXML, "Hello Ada") {
		t.Fatalf("replacement missing from document.xml:\n%s", docXML)
	}
}

func TestWriteToWithoutEditsReproducesDocument(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"Stable ", "content"}})

	container := load(t, payload)
	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	if diff := cmp.Diff(container.Paragraphs(), reloaded.Paragraphs()); diff != "" {
		t.Fatalf("document changed without edits (-want +got):\n%s", diff)
	}
}

func TestAppendParagraphRoundTrip(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"Hello ${name}"}})

	container := load(t, payload)
	if err := container.SetRunText(0, 0, "Hello Ada"); err != nil {
		t.Fatalf("SetRunText: %v", err)
	}
	if err := container.AppendParagraph("Witness: Grace Hopper"); err != nil {
		t.Fatalf("AppendParagraph: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	paragraphs := reloaded.Paragraphs()
	if len(paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(paragraphs))
	}
	if got := paragraphs[0].Text(); got != "Hello Ada" {
		t.Fatalf("body = %q", got)
	}
	if got := paragraphs[1].Text(); got != "Witness: Grace Hopper" {
		t.Fatalf("appendix = %q", got)
	}
}

func TestAppendParagraphWithoutEdits(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"Stable content"}})

	container := load(t, payload)
	if err := container.AppendParagraph("Added & escaped <ok>"); err != nil {
		t.Fatalf("AppendParagraph: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	paragraphs := reloaded.Paragraphs()
	if len(paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(paragraphs))
	}
	if got := paragraphs[1].Text(); got != "Added & escaped <ok>" {
		t.Fatalf("appendix = %q", got)
	}
}

func TestSetRunTextRejectsBadRefs(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"one run"}})
	container := load(t, payload)

	if err := container.SetRunText(1, 0, "x"); err == nil {
		t.Fatal("expected paragraph out of range error")
	}
	if err := container.SetRunText(0, 5, "x"); err == nil {
		t.Fatal("expected run out of range error")
	}
}

// buildRawDocx wraps a hand-written document.xml in a minimal archive, for
// run shapes BuildDocx never emits.
func buildRawDocx(t *testing.T, docXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/document.xml": docXML,
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

func TestWriteToHandlesEmptyRunBetweenTokenHalves(t *testing.T) {
	// A token split around an empty <w:t></w:t> run: the first run takes the
	// replacement and every continuation run is blanked.
	payload := testsupport.BuildDocx(t, [][]string{{"Signed: ${na", "", "me}"}})

	container := load(t, payload)
	if err := container.SetRunText(0, 0, "Signed: Ada"); err != nil {
		t.Fatalf("SetRunText run 0: %v", err)
	}
	if err := container.SetRunText(0, 1, ""); err != nil {
		t.Fatalf("SetRunText run 1: %v", err)
	}
	if err := container.SetRunText(0, 2, ""); err != nil {
		t.Fatalf("SetRunText run 2: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	if got := reloaded.Paragraphs()[0].Text(); got != "Signed: Ada" {
		t.Fatalf("text after round trip = %q", got)
	}
}

func TestSetRunTextIntoEmptyRun(t *testing.T) {
	payload := testsupport.BuildDocx(t, [][]string{{"a", "", "b"}})

	container := load(t, payload)
	if err := container.SetRunText(0, 1, "X"); err != nil {
		t.Fatalf("SetRunText: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	if got := reloaded.Paragraphs()[0].Text(); got != "aXb" {
		t.Fatalf("text after round trip = %q", got)
	}
}

func TestSetRunTextIntoSelfClosedRun(t *testing.T) {
	payload := buildRawDocx(t, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:r><w:t xml:space="preserve">Dear </w:t></w:r>`+
		`<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve"/></w:r></w:p>`+
		`</w:body></w:document>`)

	container := load(t, payload)
	if got := container.Paragraphs()[0].Text(); got != "Dear " {
		t.Fatalf("parsed text = %q", got)
	}
	if err := container.SetRunText(0, 1, "Ada"); err != nil {
		t.Fatalf("SetRunText: %v", err)
	}

	var out bytes.Buffer
	if _, err := container.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	reloaded := load(t, out.Bytes())
	if got := reloaded.Paragraphs()[0].Text(); got != "Dear Ada" {
		t.Fatalf("text after round trip = %q", got)
	}

	reader, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		var docXML bytes.Buffer
		docXML.ReadFrom(rc)
		rc.Close()
		if !strings.Contains(docXML.String(), "<w:rPr><w:b/></w:rPr>") {
			t.Fatal("formatting stripped while expanding the tag")
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := docx.Parse(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := docx.Parse([]byte("not a zip archive")); err == nil {
		t.Fatal("expected error for non-zip payload")
	}
}
