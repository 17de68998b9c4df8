package interfaces

import (
	"context"

	"github.com/ternarybob/relatio/internal/models"
)

// ReconcileResult is the outcome of running a raw completion through
// recovery, completion and normalization
type ReconcileResult struct {
	Data     models.FlatRecord `json:"data"`
	Strategy string            `json:"strategy"`
	Filled   []string          `json:"filled"`
	Degraded bool              `json:"degraded"`
}

// ReportService generates and serves clinical reports
type ReportService interface {
	// Generate runs the whole pipeline for an uploaded file
	Generate(ctx context.Context, req *models.ProcessRequest) (*models.Report, error)

	// GenerateFromText skips text extraction and starts from source text
	GenerateFromText(ctx context.Context, text, originalFilename string) (*models.Report, error)

	// Reconcile turns a raw completion into a complete flat record without
	// calling any collaborator
	Reconcile(raw string) *ReconcileResult

	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, opts *ListOptions) ([]*models.Report, error)

	// ArtifactPath resolves the stored file for a report and format
	ArtifactPath(ctx context.Context, id string, format models.ReportFormat) (string, error)

	// DeleteReport removes a report's metadata, audit entries and artifacts
	DeleteReport(ctx context.Context, id string) error
}
