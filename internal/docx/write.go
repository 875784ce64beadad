package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
)

// WriteTo serializes the archive with every run edit applied. Entries other
// than word/document.xml are copied raw, compressed payload included, so the
// output differs from the input only inside edited text spans.
func (c *Container) WriteTo(w io.Writer) (int64, error) {
	docXML, err := c.spliceDocumentXML()
	if err != nil {
		return 0, err
	}

	reader, err := zip.NewReader(bytes.NewReader(c.archive), int64(len(c.archive)))
	if err != nil {
		return 0, fmt.Errorf("docx: reopen archive: %w", err)
	}

	counter := &countingWriter{w: w}
	archive := zip.NewWriter(counter)

	for _, file := range reader.File {
		if file.Name == documentEntry {
			header := file.FileHeader
			entry, err := archive.CreateHeader(&header)
			if err != nil {
				return counter.n, fmt.Errorf("docx: create %s: %w", file.Name, err)
			}
			if _, err := entry.Write(docXML); err != nil {
				return counter.n, fmt.Errorf("docx: write %s: %w", file.Name, err)
			}
			continue
		}

		raw, err := file.OpenRaw()
		if err != nil {
			return counter.n, fmt.Errorf("docx: open raw %s: %w", file.Name, err)
		}
		entry, err := archive.CreateRaw(&file.FileHeader)
		if err != nil {
			return counter.n, fmt.Errorf("docx: copy %s: %w", file.Name, err)
		}
		if _, err := io.Copy(entry, raw); err != nil {
			return counter.n, fmt.Errorf("docx: copy %s: %w", file.Name, err)
		}
	}

	if err := archive.Close(); err != nil {
		return counter.n, fmt.Errorf("docx: close archive: %w", err)
	}
	return counter.n, nil
}

type pendingEdit struct {
	atom textAtom
	text string
}

// spliceDocumentXML rebuilds word/document.xml from the original bytes,
// replacing only the character content of edited w:t elements and inserting
// appended paragraphs before the body close tag.
func (c *Container) spliceDocumentXML() ([]byte, error) {
	if len(c.edits) == 0 && len(c.appended) == 0 {
		return c.docXML, nil
	}

	edits := make([]pendingEdit, 0, len(c.edits))
	for ref, text := range c.edits {
		edits = append(edits, pendingEdit{atom: c.atoms[ref[0]][ref[1]], text: text})
	}
	sort.Slice(edits, func(i, j int) bool {
		return edits[i].atom.tagStart < edits[j].atom.tagStart
	})

	var out bytes.Buffer
	var cursor int64
	for _, edit := range edits {
		atom := edit.atom
		if atom.selfClosed {
			// Expand <w:t .../> into <w:t ...>text</w:t> keeping attributes.
			out.Write(c.docXML[cursor:atom.tagStart])
			tag := c.docXML[atom.tagStart:atom.contentStart]
			opened, name, err := reopenSelfClosedTag(tag)
			if err != nil {
				return nil, err
			}
			out.Write(opened)
			if err := xml.EscapeText(&out, []byte(edit.text)); err != nil {
				return nil, fmt.Errorf("docx: escape text: %w", err)
			}
			out.WriteString("</" + name + ">")
			cursor = atom.contentEnd
			continue
		}

		out.Write(c.docXML[cursor:atom.contentStart])
		if err := xml.EscapeText(&out, []byte(edit.text)); err != nil {
			return nil, fmt.Errorf("docx: escape text: %w", err)
		}
		cursor = atom.contentEnd
	}
	out.Write(c.docXML[cursor:])

	if len(c.appended) == 0 {
		return out.Bytes(), nil
	}
	return insertBodyParagraphs(out.Bytes(), c.appended)
}

// insertBodyParagraphs splices fresh single-run paragraphs in front of the
// body close tag.
func insertBodyParagraphs(docXML []byte, texts []string) ([]byte, error) {
	idx := bytes.LastIndex(docXML, []byte("</w:body>"))
	if idx < 0 {
		return nil, errors.New("docx: body close tag not found")
	}

	var out bytes.Buffer
	out.Write(docXML[:idx])
	for _, text := range texts {
		out.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		if err := xml.EscapeText(&out, []byte(text)); err != nil {
			return nil, fmt.Errorf("docx: escape text: %w", err)
		}
		out.WriteString(`</w:t></w:r></w:p>`)
	}
	out.Write(docXML[idx:])
	return out.Bytes(), nil
}

// reopenSelfClosedTag turns `<w:t xml:space="preserve"/>` into the open form
// and reports the qualified element name for the matching close tag.
func reopenSelfClosedTag(tag []byte) ([]byte, string, error) {
	trimmed := bytes.TrimRight(tag, " \t\r\n")
	if len(trimmed) < 3 || trimmed[0] != '<' || !bytes.HasSuffix(trimmed, []byte("/>")) {
		return nil, "", fmt.Errorf("docx: unexpected self-closed tag %q", tag)
	}
	opened := append(append([]byte(nil), trimmed[:len(trimmed)-2]...), '>')

	name := trimmed[1:]
	if idx := bytes.IndexAny(name, " \t\r\n/"); idx >= 0 {
		name = name[:idx]
	}
	return opened, string(name), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
