package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Report generation and download
	mux.HandleFunc("/process", s.app.ReportHandler.ProcessHandler)    // POST multipart upload
	mux.HandleFunc("/download/", s.app.ReportHandler.DownloadHandler) // GET /download/{id}?format=docx|pdf

	// API routes - Reports
	mux.HandleFunc("/api/reports", s.app.ReportHandler.ListHandler) // GET - recent reports
	mux.HandleFunc("/api/reports/", s.handleReportRoutes)           // GET/DELETE /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleReportRoutes routes /api/reports/{id} by method
func (s *Server) handleReportRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r,
		s.app.ReportHandler.GetHandler,
		nil,
		s.app.ReportHandler.DeleteHandler,
	)
}
