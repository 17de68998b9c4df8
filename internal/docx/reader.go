// Package docx reads and writes the WordprocessingML subset used for reports:
// styled paragraphs of plain runs with line breaks.
package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const documentPart = "word/document.xml"

// Paragraph is one w:p element flattened to text
type Paragraph struct {
	Style string
	Text  string
}

// HeadingLevel returns 1-6 for title and heading styles, 0 otherwise
func (p Paragraph) HeadingLevel() int {
	return headingLevel(p.Style)
}

// ReadFile returns the paragraphs of a .docx file in document order.
// Empty paragraphs are skipped.
func ReadFile(path string) ([]Paragraph, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != documentPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", documentPart, err)
		}
		defer rc.Close()
		return readParagraphs(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", documentPart)
}

// PlainText joins paragraphs with newlines
func PlainText(paragraphs []Paragraph) string {
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		lines = append(lines, p.Text)
	}
	return strings.Join(lines, "\n")
}

func readParagraphs(r io.Reader) ([]Paragraph, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs  []Paragraph
		current     strings.Builder
		style       string
		inParagraph bool
		inText      bool
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
				style = ""
			case "pStyle":
				if inParagraph {
					style = attrValue(t, "val")
				}
			case "t":
				inText = inParagraph
			case "br", "cr":
				if inParagraph {
					current.WriteByte('\n')
				}
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			}

		case xml.CharData:
			if inText {
				current.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inParagraph {
					continue
				}
				inParagraph = false
				text := strings.TrimSpace(current.String())
				if text != "" {
					paragraphs = append(paragraphs, Paragraph{Style: style, Text: text})
				}
			}
		}
	}

	return paragraphs, nil
}

func attrValue(el xml.StartElement, local string) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == local {
			return attr.Value
		}
	}
	return ""
}

// headingLevel maps style names such as "Heading1" or "Title" to a level
func headingLevel(style string) int {
	lower := strings.ToLower(style)

	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}

	if strings.HasPrefix(lower, "heading") {
		rest := lower[len("heading"):]
		if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}
