package models

import (
	"path/filepath"
	"strings"
	"time"
)

// SourceKind identifies how text is obtained from an upload
type SourceKind string

const (
	SourceKindImage SourceKind = "image"
	SourceKindAudio SourceKind = "audio"
	SourceKindText  SourceKind = "text"
	SourceKindPDF   SourceKind = "pdf"
	SourceKindDocx  SourceKind = "docx"
)

// sourceKinds maps accepted upload extensions to their extractor
var sourceKinds = map[string]SourceKind{
	"jpg":  SourceKindImage,
	"jpeg": SourceKindImage,
	"png":  SourceKindImage,
	"wav":  SourceKindAudio,
	"mp3":  SourceKindAudio,
	"pdf":  SourceKindPDF,
	"docx": SourceKindDocx,
	"txt":  SourceKindText,
}

// SourceKindForFile returns the kind for a file name by its extension
func SourceKindForFile(name string) (SourceKind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	kind, ok := sourceKinds[ext]
	return kind, ok
}

// SupportedExtensions lists accepted upload extensions
func SupportedExtensions() []string {
	return []string{"jpg", "jpeg", "png", "wav", "mp3", "pdf", "docx", "txt"}
}

// ReportFormat selects an output artifact
type ReportFormat string

const (
	FormatDocx ReportFormat = "docx"
	FormatPDF  ReportFormat = "pdf"
)

// ParseReportFormat accepts "docx" or "pdf"; empty means docx
func ParseReportFormat(s string) (ReportFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "docx":
		return FormatDocx, true
	case "pdf":
		return FormatPDF, true
	default:
		return "", false
	}
}

// ProcessRequest carries the parameters of one report generation
type ProcessRequest struct {
	OriginalFilename string `validate:"required,max=255"`
	SourcePath       string `validate:"required"`
	Language         string `validate:"omitempty,alpha,max=8"`
	Enhance          *bool
}

// Report is the persisted metadata of a generated report.
// The canonical record itself is only kept in flattened form.
type Report struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"original_filename"`
	SourceKind       SourceKind `json:"source_kind"`
	Language         string     `json:"language,omitempty"`
	UploadPath       string     `json:"-"`
	DocxPath         string     `json:"-"`
	PDFPath          string     `json:"-"`
	PDFAvailable     bool       `json:"pdf_available"`
	ConversionError  string     `json:"conversion_error,omitempty"`
	Degraded         bool       `json:"degraded"`
	DegradedReason   string     `json:"degraded_reason,omitempty"`
	Strategy         string     `json:"strategy,omitempty"` // recovery strategy that produced the record
	Filled           []string   `json:"filled,omitempty"`   // canonical fields set to the placeholder
	Data             FlatRecord `json:"data"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ArtifactPath returns the stored path for format, empty when unavailable
func (r *Report) ArtifactPath(format ReportFormat) string {
	switch format {
	case FormatPDF:
		if !r.PDFAvailable {
			return ""
		}
		return r.PDFPath
	default:
		return r.DocxPath
	}
}

// ModelCall is an audit entry for one generative model exchange
type ModelCall struct {
	ID         string        `json:"id"`
	ReportID   string        `json:"report_id"`
	Operation  string        `json:"operation"` // enhance, extract, transcribe
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	PromptSize int           `json:"prompt_size"`
	Completion string        `json:"completion,omitempty"` // truncated
	CreatedAt  time.Time     `json:"created_at"`
}
