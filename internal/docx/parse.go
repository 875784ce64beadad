package docx

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/goliatone/go-docfill/pkg/document"
)

// parseDocumentXML walks word/document.xml token by token, collecting one run
// per w:t element together with the byte range its character content occupies.
// The byte ranges are what make formatting-preserving edits possible: the
// writer splices new text into those ranges and leaves every other byte alone.
func parseDocumentXML(docXML []byte) ([]document.Paragraph, [][]textAtom, error) {
	decoder := xml.NewDecoder(bytes.NewReader(docXML))

	var (
		paragraphs []document.Paragraph
		atoms      [][]textAtom

		inParagraph bool
		inRun       bool
		inText      bool

		current textAtom
		text    strings.Builder
	)

	for {
		tokenStart := decoder.InputOffset()
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				paragraphs = append(paragraphs, document.Paragraph{})
				atoms = append(atoms, nil)
			case "r":
				if inParagraph {
					inRun = true
				}
			case "t":
				if !inRun {
					continue
				}
				inText = true
				text.Reset()
				current = textAtom{
					tagStart:     tokenStart,
					contentStart: decoder.InputOffset(),
				}
			}

		case xml.CharData:
			if inText {
				text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if !inText {
					continue
				}
				inText = false
				current.contentEnd = tokenStart
				// Both <w:t/> and <w:t></w:t> yield an empty content range,
				// but only the self-closed form needs the writer to expand
				// the tag; the open/close pair splices like any other run.
				if current.contentEnd <= current.contentStart {
					current.contentEnd = current.contentStart
					tag := bytes.TrimRight(docXML[current.tagStart:current.contentStart], " \t\r\n")
					current.selfClosed = bytes.HasSuffix(tag, []byte("/>"))
				}
				last := len(paragraphs) - 1
				paragraphs[last].Runs = append(paragraphs[last].Runs, document.Run{Text: text.String()})
				atoms[last] = append(atoms[last], current)
			case "r":
				inRun = false
			case "p":
				inParagraph = false
				inRun = false
			}
		}
	}

	return paragraphs, atoms, nil
}
