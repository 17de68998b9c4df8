package docx

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_RoundTrip(t *testing.T) {
	doc := New("Medical Imaging Report", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	doc.Title("Medical Imaging Report")
	doc.Field("Patient Name", "Jane <Doe> & Co")
	doc.Heading(1, "Imaging Findings")
	doc.Paragraph("Liver:\n  Size: normal\n  Lesion: No")

	path := filepath.Join(t.TempDir(), "out", "report.docx")
	require.NoError(t, doc.Save(path))

	paragraphs, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, paragraphs, 4)

	assert.Equal(t, StyleTitle, paragraphs[0].Style)
	assert.Equal(t, 1, paragraphs[0].HeadingLevel())
	assert.Equal(t, "Patient Name: Jane <Doe> & Co", paragraphs[1].Text)
	assert.Equal(t, 0, paragraphs[1].HeadingLevel())
	assert.Equal(t, 1, paragraphs[2].HeadingLevel())
	assert.Equal(t, "Liver:\n  Size: normal\n  Lesion: No", paragraphs[3].Text)

	text := PlainText(paragraphs)
	assert.Contains(t, text, "Imaging Findings\nLiver:")
}

func TestDocument_PackageParts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parts.docx")
	require.NoError(t, New("t", time.Now()).Save(path))

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"word/_rels/document.xml.rels",
		"word/styles.xml",
		"docProps/core.xml",
		"word/document.xml",
	}, names)
}

func TestFillTemplate_SplitRuns(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "template.docx")

	body := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Report</w:t></w:r></w:p>` +
		`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Name: {{pat</w:t></w:r><w:r><w:t>ient_name}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Findings: {{ imaging_findings }} {{missing}}</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	writeZip(t, templatePath, map[string]string{
		"word/document.xml": body,
		"word/media/x.bin":  "binary",
	})

	out := filepath.Join(dir, "filled.docx")
	err := FillTemplate(templatePath, out, map[string]string{
		"patient_name":     "Jane & Doe",
		"imaging_findings": "Liver:\n  Size: normal",
	})
	require.NoError(t, err)

	paragraphs, err := ReadFile(out)
	require.NoError(t, err)
	require.Len(t, paragraphs, 3)

	assert.Equal(t, "Report", paragraphs[0].Text)
	assert.Equal(t, "Heading1", paragraphs[0].Style)
	assert.Equal(t, "Name: Jane & Doe", paragraphs[1].Text)
	assert.Equal(t, "Findings: Liver:\n  Size: normal", paragraphs[2].Text)

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.File, 2)
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "plain.docx")
	require.NoError(t, os.WriteFile(notZip, []byte("hello"), 0644))
	_, err := ReadFile(notZip)
	assert.Error(t, err)

	noDocument := filepath.Join(dir, "empty.docx")
	writeZip(t, noDocument, map[string]string{"other.xml": "<x/>"})
	_, err = ReadFile(noDocument)
	assert.Error(t, err)
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
