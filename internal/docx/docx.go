// Package docx implements the document.Container contract for Word documents
// (.docx). It reads the run structure out of word/document.xml and writes
// edits back by splicing replacement text into the original byte stream, so
// formatting attributes and all sibling archive entries survive untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/goliatone/go-docfill/pkg/document"
)

const documentEntry = "word/document.xml"

// Ensure Container implements the interface.
var _ document.Container = (*Container)(nil)

// Container is a parsed .docx file. Run edits accumulate in memory until
// WriteTo serializes the archive.
type Container struct {
	archive    []byte
	docXML     []byte
	paragraphs []document.Paragraph
	atoms      [][]textAtom
	edits      map[[2]int]string
	// appended holds paragraphs added after the original body; they have no
	// atoms and are serialized fresh before the body close tag.
	appended []string
}

// textAtom records where a run's text lives inside word/document.xml.
type textAtom struct {
	// tagStart is the byte offset of the opening '<' of the w:t element.
	tagStart int64
	// contentStart/contentEnd delimit the raw character content. For a
	// self-closed element both equal the offset past the tag.
	contentStart int64
	contentEnd   int64
	selfClosed   bool
}

// Loader resolves document sources into docx containers.
type Loader struct{}

// New returns a docx Loader.
func New() *Loader {
	return &Loader{}
}

// Load reads the source payload and parses it as a .docx archive.
func (l *Loader) Load(src document.Source) (document.Container, error) {
	if src == nil {
		return nil, errors.New("docx: source is required")
	}

	var payload []byte
	switch s := src.(type) {
	case document.BytesSource:
		payload = s.Payload
	default:
		data, err := os.ReadFile(src.Location())
		if err != nil {
			return nil, fmt.Errorf("docx: read %s: %w", src.Location(), err)
		}
		payload = data
	}
	return Parse(payload)
}

// Parse builds a Container from raw .docx bytes.
func Parse(payload []byte) (*Container, error) {
	if len(payload) == 0 {
		return nil, errors.New("docx: payload is empty")
	}

	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("docx: open archive: %w", err)
	}

	docXML, err := readEntry(reader, documentEntry)
	if err != nil {
		return nil, err
	}

	paragraphs, atoms, err := parseDocumentXML(docXML)
	if err != nil {
		return nil, fmt.Errorf("docx: parse %s: %w", documentEntry, err)
	}

	return &Container{
		archive:    append([]byte(nil), payload...),
		docXML:     docXML,
		paragraphs: paragraphs,
		atoms:      atoms,
		edits:      make(map[[2]int]string),
	}, nil
}

// Paragraphs returns the run-structured text in document order.
func (c *Container) Paragraphs() []document.Paragraph {
	return c.paragraphs
}

// SetRunText records a replacement for the identified run. The change becomes
// visible immediately through Paragraphs and is serialized on WriteTo.
func (c *Container) SetRunText(paragraph, run int, text string) error {
	if err := document.CheckRunRef(c.paragraphs, paragraph, run); err != nil {
		return err
	}
	c.paragraphs[paragraph].Runs[run].Text = text
	if paragraph >= len(c.atoms) {
		c.appended[paragraph-len(c.atoms)] = text
		return nil
	}
	c.edits[[2]int{paragraph, run}] = text
	return nil
}

// AppendParagraph adds a single-run paragraph after the original body
// content. It is serialized on WriteTo with default run formatting.
func (c *Container) AppendParagraph(text string) error {
	c.paragraphs = append(c.paragraphs, document.Paragraph{Runs: []document.Run{{Text: text}}})
	c.appended = append(c.appended, text)
	return nil
}

func readEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("docx: open %s: %w", name, err)
		}
		defer rc.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("docx: read %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("docx: %s not found in archive", name)
}
