package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/app"
	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/handlers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	root := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.InMemory = true
	cfg.Storage.Filesystem.Uploads = filepath.Join(root, "uploads")
	cfg.Storage.Filesystem.Reports = filepath.Join(root, "reports")
	cfg.LLM.MaxRetries = 0

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return New(application)
}

func upload(t *testing.T, handler http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestProcessWithoutModelProducesPlaceholderReport(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	rec := upload(t, handler, "note.txt", "Patient: Jane Doe\nAge: 42")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ReportID        string            `json:"reportId"`
		DownloadURLDocx string            `json:"downloadUrl_docx"`
		DownloadURLPDF  string            `json:"downloadUrl_pdf"`
		Data            map[string]string `json:"data"`
		Degraded        bool              `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, common.IsValidReportID(resp.ReportID))
	assert.True(t, resp.Degraded)
	assert.Equal(t, resp.ReportID, rec.Header().Get(handlers.HeaderReportID))
	assert.Equal(t, "true", rec.Header().Get(handlers.HeaderReportDegraded))
	assert.Len(t, resp.Data, 12)
	assert.Equal(t, "UNKNOWN", resp.Data["patient_name"])

	for _, url := range []string{resp.DownloadURLDocx, resp.DownloadURLPDF} {
		require.NotEmpty(t, url)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusOK, rec.Code, url)
		assert.NotZero(t, rec.Body.Len(), url)
		assert.Equal(t, resp.ReportID, rec.Header().Get(handlers.HeaderReportID), url)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/"+resp.ReportID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/reports/"+resp.ReportID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.DownloadURLDocx, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes(t *testing.T) {
	handler := newTestServer(t).Handler()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/version", http.StatusOK},
		{http.MethodGet, "/api/reports", http.StatusOK},
		{http.MethodGet, "/api/reports/" + common.NewReportID(), http.StatusNotFound},
		{http.MethodPut, "/api/reports/" + common.NewReportID(), http.StatusMethodNotAllowed},
		{http.MethodGet, "/download/not-a-uuid", http.StatusNotFound},
		{http.MethodGet, "/process", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/process", http.StatusOK},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUnsupportedUpload(t *testing.T) {
	rec := upload(t, newTestServer(t).Handler(), "archive.zip", "PK")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Unsupported file type", body["error"])
}

func TestCORSExposesReportHeaders(t *testing.T) {
	handler := newTestServer(t).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/process", nil))

	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, handlers.HeaderReportID)
	assert.Contains(t, exposed, handlers.HeaderReportDegraded)
}

func TestResponseWriterRecordsStatusAndSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	_, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = rw.Write([]byte(" world"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.Equal(t, 11, rw.written)
}

func TestRecoveryMiddlewareReturnsJSON(t *testing.T) {
	s := newTestServer(t)
	handler := s.withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("renderer exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
}
