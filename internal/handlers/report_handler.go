package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

// multipartMemory is how much of an upload is buffered before spilling to disk
const multipartMemory = 8 << 20

const reportMissing = "Report does not exist"

// ProcessResponse is returned by POST /process
type ProcessResponse struct {
	ReportID        string            `json:"reportId"`
	DownloadURLDocx string            `json:"downloadUrl_docx"`
	DownloadURLPDF  string            `json:"downloadUrl_pdf,omitempty"`
	PDFError        string            `json:"pdfError,omitempty"`
	Data            models.FlatRecord `json:"data"`
	Degraded        bool              `json:"degraded"`
}

// ReportHandler serves report generation and download
type ReportHandler struct {
	reports interfaces.ReportService
	config  *common.Config
	logger  arbor.ILogger
}

func NewReportHandler(reports interfaces.ReportService, config *common.Config, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		config:  config,
		logger:  logger,
	}
}

// ProcessHandler handles POST /process with a multipart "file" field and
// optional "language" and "enhance" fields
func (h *ReportHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d MB", h.config.Server.MaxUploadMB))
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			WriteError(w, http.StatusBadRequest, "Invalid upload")
			return
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		WriteError(w, http.StatusBadRequest, "Invalid file")
		return
	}

	filename := SecureFilename(header.Filename)
	if _, ok := models.SourceKindForFile(filename); !ok {
		WriteError(w, http.StatusBadRequest, "Unsupported file type")
		return
	}

	req := &models.ProcessRequest{OriginalFilename: filename}

	if language := strings.TrimSpace(r.FormValue("language")); language != "" {
		if !h.config.IsSupportedLanguage(language) {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported language %q", language))
			return
		}
		req.Language = strings.ToLower(language)
	}

	if enhance := r.FormValue("enhance"); enhance != "" {
		b, err := strconv.ParseBool(enhance)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "enhance must be true or false")
			return
		}
		req.Enhance = &b
	}

	path, err := h.saveUpload(file, filename)
	if err != nil {
		h.logger.Error().Err(err).Str("filename", filename).Msg("Failed to save upload")
		WriteError(w, http.StatusInternalServerError, "Failed to save upload")
		return
	}
	req.SourcePath = path

	report, err := h.reports.Generate(r.Context(), req)
	if err != nil {
		os.Remove(path)
		h.logger.Error().Err(err).Str("filename", filename).Msg("Report generation failed")
		WriteAppError(w, err)
		return
	}

	resp := ProcessResponse{
		ReportID:        report.ID,
		DownloadURLDocx: downloadURL(report.ID, models.FormatDocx),
		Data:            report.Data,
		Degraded:        report.Degraded,
	}
	if report.PDFAvailable {
		resp.DownloadURLPDF = downloadURL(report.ID, models.FormatPDF)
	} else {
		resp.PDFError = "PDF conversion failed"
	}

	SetReportHeaders(w, report)
	WriteJSON(w, http.StatusOK, resp)
}

// saveUpload copies the upload into the uploads directory under a unique name
func (h *ReportHandler) saveUpload(src io.Reader, filename string) (string, error) {
	dir := h.config.Storage.Filesystem.Uploads
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	dst, err := os.CreateTemp(dir, "*-"+filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// DownloadHandler handles GET /download/{id}?format=docx|pdf
func (h *ReportHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/download/"), "/")
	format, ok := models.ParseReportFormat(r.URL.Query().Get("format"))
	if !ok {
		WriteError(w, http.StatusBadRequest, "format must be docx or pdf")
		return
	}

	path, err := h.reports.ArtifactPath(r.Context(), id, format)
	if err != nil {
		h.writeReportError(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		WriteError(w, http.StatusNotFound, reportMissing)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to read report")
		return
	}

	w.Header().Set(HeaderReportID, id)
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": filepath.Base(path),
	}))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

// ListHandler handles GET /api/reports?limit=&offset=
func (h *ReportHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit, offset := GetListParams(r)
	reports, err := h.reports.ListReports(r.Context(), &interfaces.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list reports")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetHandler handles GET /api/reports/{id}
func (h *ReportHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetReport(r.Context(), reportIDFromPath(r))
	if err != nil {
		h.writeReportError(w, err)
		return
	}
	SetReportHeaders(w, report)
	WriteJSON(w, http.StatusOK, report)
}

// DeleteHandler handles DELETE /api/reports/{id}
func (h *ReportHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := reportIDFromPath(r)
	if err := h.reports.DeleteReport(r.Context(), id); err != nil {
		h.writeReportError(w, err)
		return
	}
	w.Header().Set(HeaderReportID, id)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Report deleted",
	})
}

func (h *ReportHandler) writeReportError(w http.ResponseWriter, err error) {
	if common.ErrorTypeOf(err) == common.ErrorTypeNotFound {
		WriteError(w, http.StatusNotFound, reportMissing)
		return
	}
	h.logger.Error().Err(err).Msg("Report request failed")
	WriteAppError(w, err)
}

func reportIDFromPath(r *http.Request) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/reports/"), "/")
}

func downloadURL(id string, format models.ReportFormat) string {
	return fmt.Sprintf("/download/%s?format=%s", id, format)
}

func contentType(format models.ReportFormat) string {
	if format == models.FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SecureFilename reduces an uploaded name to a safe base name, keeping the
// extension. Names with nothing usable left become "upload<ext>".
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	stem = unsafeFilenameChars.ReplaceAllString(strings.Join(strings.Fields(stem), "_"), "")
	stem = strings.Trim(stem, "._-")
	ext = unsafeFilenameChars.ReplaceAllString(ext, "")

	if stem == "" {
		stem = "upload"
	}
	if len(stem) > 200 {
		stem = stem[:200]
	}
	return stem + ext
}
