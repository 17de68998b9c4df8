package pdf

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestConvertMarkdownToPDF(t *testing.T) {
	service := NewService(arbor.NewLogger())

	tests := []struct {
		name     string
		markdown string
		title    string
	}{
		{
			name:     "Basic Markdown",
			markdown: "# Title\n\nSome paragraph text.\n\n- Item 1\n- Item 2",
			title:    "Test Document",
		},
		{
			name:     "Empty Markdown",
			markdown: "",
			title:    "Empty Doc",
		},
		{
			name:     "Report Table",
			markdown: "# Report\n\n| Field | Value |\n|---|---|\n| Patient Name | Jane Doe |\n| Age | 42 |\n",
			title:    "Table Doc",
		},
		{
			name:     "Bold Italic And Hard Breaks",
			markdown: "Normal **Bold** *Italic*\\\nLiver:\\\n  Size: normal",
			title:    "Styling",
		},
		{
			name:     "Non Latin Text",
			markdown: "Résumé – naïve café 病人",
			title:    "Unicode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.ConvertMarkdownToPDF(tt.markdown, tt.title)
			require.NoError(t, err)
			assert.True(t, len(pdfBytes) > 0)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestExtractText_RoundTrip(t *testing.T) {
	logger := arbor.NewLogger()
	markdown := "# Medical Imaging Report\n\n" +
		"| Field | Value |\n|---|---|\n| Patient Name | Jane Doe |\n| Sex | F |\n\n" +
		"## Imaging Findings\n\nLiver:\\\n  Size: normal\n"

	pdfBytes, err := NewService(logger).ConvertMarkdownToPDF(markdown, "Medical Imaging Report")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, pdfBytes, 0644))
	require.NoError(t, Validate(path))

	text, err := NewExtractor(logger).ExtractText(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, text, "Medical Imaging Report")
	assert.Contains(t, text, "Jane Doe")
	assert.Contains(t, text, "Size: normal")
}

func TestExtractText_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	_, err := NewExtractor(arbor.NewLogger()).ExtractText(context.Background(), path)
	assert.Error(t, err)
	assert.Error(t, Validate(path))
}

func TestTextFromContentStream(t *testing.T) {
	stream := strings.Join([]string{
		"BT /F1 12 Tf 72 700 Td (Patient:) Tj ET",
		"BT 140 700 Td (Jane \\(J\\) Doe) Tj ET",
		"BT 72 680 Td [(Liv) -20 (er) -400 (normal)] TJ ET",
		"BT 72 660 Td <48656C6C6F> Tj 0 -14 Td (next\\040line) Tj ET",
	}, "\n")

	got := textFromContentStream([]byte(stream))

	assert.Equal(t, "Patient: Jane (J) Doe\nLiver normal\nHello\nnext line", got)
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `a \| b \*c\*`, EscapeMarkdown("a | b *c*"))
}
