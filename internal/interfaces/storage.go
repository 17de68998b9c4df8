package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/relatio/internal/models"
)

// ListOptions controls report listing
type ListOptions struct {
	Limit  int
	Offset int
}

// ReportStorage - interface for report metadata persistence
type ReportStorage interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, opts *ListOptions) ([]*models.Report, error)
	ListReportsBefore(ctx context.Context, cutoff time.Time) ([]*models.Report, error)
	DeleteReport(ctx context.Context, id string) error
	CountReports(ctx context.Context) (int, error)
}

// AuditStorage - interface for model call audit persistence
type AuditStorage interface {
	SaveModelCall(ctx context.Context, call *models.ModelCall) error
	ListModelCalls(ctx context.Context, reportID string) ([]*models.ModelCall, error)
	DeleteModelCalls(ctx context.Context, reportID string) error
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	ReportStorage() ReportStorage
	AuditStorage() AuditStorage
	Close() error
}
