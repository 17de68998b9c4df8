package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ReportStorage implements the ReportStorage interface for Badger
type ReportStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewReportStorage creates a new ReportStorage instance
func NewReportStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// SaveReport inserts or replaces report metadata
func (s *ReportStorage) SaveReport(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report ID is required")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(report.ID, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves report metadata by ID
func (s *ReportStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := s.db.Store().Get(id, &report); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, common.NewNotFoundError(fmt.Sprintf("report %s", id), common.ErrReportNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// ListReports returns reports newest first
func (s *ReportStorage) ListReports(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Report, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var reports []models.Report
	if err := s.db.Store().Find(&reports, query); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return toPointers(reports), nil
}

// ListReportsBefore returns reports created strictly before cutoff
func (s *ReportStorage) ListReportsBefore(ctx context.Context, cutoff time.Time) ([]*models.Report, error) {
	var reports []models.Report
	if err := s.db.Store().Find(&reports, badgerhold.Where("CreatedAt").Lt(cutoff).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list reports before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return toPointers(reports), nil
}

// DeleteReport removes report metadata; deleting a missing report is not an error
func (s *ReportStorage) DeleteReport(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Report{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// CountReports returns the number of stored reports
func (s *ReportStorage) CountReports(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Report{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return int(count), nil
}

func toPointers(reports []models.Report) []*models.Report {
	out := make([]*models.Report, len(reports))
	for i := range reports {
		out[i] = &reports[i]
	}
	return out
}
