// Package render writes report artifacts: a DOCX document and a PDF derived from it.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/docx"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
	"github.com/ternarybob/relatio/internal/services/pdf"
)

// headerFields render as label/value lines above the narrative sections
var headerFields = []string{
	schemas.FieldPatientName,
	schemas.FieldExaminationDate,
	schemas.FieldSex,
	schemas.FieldAge,
	schemas.FieldRefBy,
	schemas.FieldUHIDNo,
	schemas.FieldExaminationType,
	schemas.FieldExaminedArea,
	schemas.FieldDeviceModel,
}

var sectionFields = []string{
	schemas.FieldImagingFindings,
	schemas.FieldDiagnosisSummary,
	schemas.FieldComment,
}

// Renderer implements interfaces.ReportRenderer on the local filesystem
type Renderer struct {
	dir    string
	config *common.ReportConfig
	pdf    interfaces.PDFService
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportRenderer = (*Renderer)(nil)

// NewRenderer creates a renderer writing <dir>/<id>.<format>
func NewRenderer(dir string, config *common.ReportConfig, pdfService interfaces.PDFService, logger arbor.ILogger) *Renderer {
	return &Renderer{
		dir:    dir,
		config: config,
		pdf:    pdfService,
		logger: logger,
	}
}

// Path returns where the artifact for reportID and format is stored
func (r *Renderer) Path(reportID string, format models.ReportFormat) string {
	return filepath.Join(r.dir, reportID+"."+string(format))
}

// Render writes the artifact for format and returns its path
func (r *Renderer) Render(ctx context.Context, req interfaces.RenderRequest, format models.ReportFormat) (string, error) {
	if !common.IsValidReportID(req.ReportID) {
		return "", common.NewValidationError(fmt.Sprintf("invalid report id %q", req.ReportID))
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	switch format {
	case models.FormatDocx:
		return r.renderDocx(req)
	case models.FormatPDF:
		return r.renderPDF(req)
	default:
		return "", common.NewUnsupportedError(fmt.Sprintf("unknown report format %q", format))
	}
}

// Remove deletes both artifacts of a report; missing files are ignored
func (r *Renderer) Remove(reportID string) error {
	if !common.IsValidReportID(reportID) {
		return common.NewValidationError(fmt.Sprintf("invalid report id %q", reportID))
	}

	var errs []error
	for _, format := range []models.ReportFormat{models.FormatDocx, models.FormatPDF} {
		if err := os.Remove(r.Path(reportID, format)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Renderer) renderDocx(req interfaces.RenderRequest) (string, error) {
	path := r.Path(req.ReportID, models.FormatDocx)
	start := time.Now()

	var err error
	if r.config.TemplatePath != "" {
		err = docx.FillTemplate(r.config.TemplatePath, path, r.templateValues(req))
	} else {
		err = r.buildDocument(req).Save(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to render docx: %w", err)
	}

	r.logger.Debug().
		Str("report_id", req.ReportID).
		Str("path", path).
		Bool("template", r.config.TemplatePath != "").
		Dur("duration", time.Since(start)).
		Msg("DOCX rendered")

	return path, nil
}

func (r *Renderer) buildDocument(req interfaces.RenderRequest) *docx.Document {
	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	doc := docx.New(r.title(), created)
	doc.Title(r.title())

	values := req.Data.Map()
	for _, key := range headerFields {
		doc.Field(schemas.Label(key), values[key])
	}

	for _, key := range sectionFields {
		doc.Heading(1, schemas.Label(key))
		doc.Paragraph(values[key])
	}

	var extras []models.Field
	for _, field := range req.Data {
		if schemas.IsCanonical(field.Key) || field.Key == schemas.ReservedRawResponseKey {
			continue
		}
		extras = append(extras, field)
	}
	if len(extras) > 0 {
		doc.Heading(1, "Additional Information")
		for _, field := range extras {
			doc.Field(schemas.Label(field.Key), field.Value)
		}
	}

	doc.Heading(2, "Report Details")
	doc.Field("Source File", req.OriginalFilename)
	doc.Field("Report ID", req.ReportID)
	doc.Field("Generated", created.Format("2006-01-02 15:04"))

	return doc
}

// templateValues are the {{key}} substitutions offered to a custom template
func (r *Renderer) templateValues(req interfaces.RenderRequest) map[string]string {
	values := req.Data.Map()
	delete(values, schemas.ReservedRawResponseKey)
	values["report_id"] = req.ReportID
	values["original_filename"] = req.OriginalFilename
	values["title"] = r.title()
	values["created_at"] = req.CreatedAt.Format("2006-01-02 15:04")
	return values
}

func (r *Renderer) renderPDF(req interfaces.RenderRequest) (string, error) {
	docxPath := r.Path(req.ReportID, models.FormatDocx)
	if _, err := os.Stat(docxPath); err != nil {
		if _, err := r.renderDocx(req); err != nil {
			return "", err
		}
	}

	path := r.Path(req.ReportID, models.FormatPDF)
	if err := r.convert(docxPath, path); err != nil {
		r.logger.Warn().
			Str("report_id", req.ReportID).
			Err(err).
			Msg("PDF conversion failed, DOCX kept")
		return "", fmt.Errorf("%w: %w", common.ErrConversionFailed, err)
	}

	r.logger.Debug().
		Str("report_id", req.ReportID).
		Str("path", path).
		Msg("PDF derived from DOCX")

	return path, nil
}

func (r *Renderer) convert(docxPath, pdfPath string) error {
	paragraphs, err := docx.ReadFile(docxPath)
	if err != nil {
		return fmt.Errorf("read docx: %w", err)
	}

	data, err := r.pdf.ConvertMarkdownToPDF(Markdown(paragraphs), r.title())
	if err != nil {
		return err
	}

	tmp := pdfPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	if err := pdf.Validate(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("generated pdf is invalid: %w", err)
	}
	if err := os.Rename(tmp, pdfPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// blockMarker matches line openings that markdown reads as list items or
// setext underlines
var blockMarker = regexp.MustCompile(`^(?:[-+=]|\d+[.)])`)

func escapeLineStart(line string) string {
	if loc := blockMarker.FindStringIndex(line); loc != nil {
		return line[:loc[1]-1] + "\\" + line[loc[1]-1:]
	}
	return line
}

func (r *Renderer) title() string {
	if r.config.Title != "" {
		return r.config.Title
	}
	return "Report"
}

// Markdown converts document paragraphs to markdown. The Title style maps to
// a level 1 heading and HeadingN to level N+1; line breaks become hard breaks.
func Markdown(paragraphs []docx.Paragraph) string {
	var sb strings.Builder
	for _, p := range paragraphs {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}

		if level := p.HeadingLevel(); level > 0 {
			if p.Style != docx.StyleTitle {
				level++
			}
			if level > 6 {
				level = 6
			}
			sb.WriteString(strings.Repeat("#", level))
			sb.WriteByte(' ')
			sb.WriteString(pdf.EscapeMarkdown(strings.ReplaceAll(text, "\n", " ")))
			sb.WriteString("\n\n")
			continue
		}

		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = escapeLineStart(pdf.EscapeMarkdown(strings.TrimSpace(strings.ReplaceAll(line, "\t", " "))))
		}
		sb.WriteString(strings.Join(lines, "\\\n"))
		sb.WriteString("\n\n")
	}
	return sb.String()
}
