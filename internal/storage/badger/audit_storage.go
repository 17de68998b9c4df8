package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// AuditStorage persists one entry per generative model exchange
type AuditStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAuditStorage creates a new AuditStorage instance
func NewAuditStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AuditStorage {
	return &AuditStorage{
		db:     db,
		logger: logger,
	}
}

// SaveModelCall stores call, assigning an ID and timestamp when absent
func (s *AuditStorage) SaveModelCall(ctx context.Context, call *models.ModelCall) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(call.ID, call); err != nil {
		return fmt.Errorf("failed to save model call: %w", err)
	}
	return nil
}

// ListModelCalls returns the calls made for a report, oldest first
func (s *AuditStorage) ListModelCalls(ctx context.Context, reportID string) ([]*models.ModelCall, error) {
	var calls []models.ModelCall
	if err := s.db.Store().Find(&calls, badgerhold.Where("ReportID").Eq(reportID).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list model calls: %w", err)
	}

	out := make([]*models.ModelCall, len(calls))
	for i := range calls {
		out[i] = &calls[i]
	}
	return out, nil
}

// DeleteModelCalls removes every call recorded for a report
func (s *AuditStorage) DeleteModelCalls(ctx context.Context, reportID string) error {
	if err := s.db.Store().DeleteMatching(&models.ModelCall{}, badgerhold.Where("ReportID").Eq(reportID)); err != nil {
		return fmt.Errorf("failed to delete model calls: %w", err)
	}
	return nil
}
