package docx

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

var (
	paragraphPattern   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textPattern        = regexp.MustCompile(`(?s)<w:t(?: [^>]*)?>(.*?)</w:t>`)
	runStartPattern    = regexp.MustCompile(`<w:r[ >]`)
	runPropsPattern    = regexp.MustCompile(`(?s)<w:rPr>.*?</w:rPr>`)
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)
)

// FillTemplate copies the .docx at templatePath to outPath, replacing
// {{key}} placeholders in the body, headers and footers. Unknown keys render
// empty. A paragraph containing a placeholder is rewritten as a single run
// carrying the formatting of its first run, so placeholders split across
// runs by an editor still match.
func FillTemplate(templatePath, outPath string, values map[string]string) error {
	r, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer r.Close()

	return writeAtomic(outPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, f := range r.File {
			if err := copyPart(zw, f, values); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
		}
		return zw.Close()
	})
}

func copyPart(zw *zip.Writer, f *zip.File, values map[string]string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	header := f.FileHeader
	out, err := zw.CreateHeader(&header)
	if err != nil {
		return err
	}

	if !isTextPart(f.Name) {
		_, err = io.Copy(out, rc)
		return err
	}

	content, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, fillParagraphs(string(content), values))
	return err
}

func isTextPart(name string) bool {
	if name == documentPart {
		return true
	}
	return strings.HasPrefix(name, "word/") && strings.HasSuffix(name, ".xml") &&
		(strings.HasPrefix(name, "word/header") || strings.HasPrefix(name, "word/footer"))
}

func fillParagraphs(xmlText string, values map[string]string) string {
	return paragraphPattern.ReplaceAllStringFunc(xmlText, func(p string) string {
		var text strings.Builder
		for _, m := range textPattern.FindAllStringSubmatch(p, -1) {
			text.WriteString(html.UnescapeString(m[1]))
		}
		if !placeholderPattern.MatchString(text.String()) {
			return p
		}

		filled := placeholderPattern.ReplaceAllStringFunc(text.String(), func(ph string) string {
			key := placeholderPattern.FindStringSubmatch(ph)[1]
			return values[key]
		})

		loc := runStartPattern.FindStringIndex(p)
		if loc == nil {
			return p
		}
		rPr := runPropsPattern.FindString(p[loc[0]:])

		var b strings.Builder
		b.WriteString(p[:loc[0]])
		writeRun(&b, rPr, filled)
		b.WriteString("</w:p>")
		return b.String()
	})
}
