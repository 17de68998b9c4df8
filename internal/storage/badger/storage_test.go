package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

func newTestManager(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestReportStorage_SaveGet(t *testing.T) {
	storage := newTestManager(t).ReportStorage()
	ctx := context.Background()

	report := &models.Report{
		ID:               common.NewReportID(),
		OriginalFilename: "scan.png",
		SourceKind:       models.SourceKindImage,
		DocxPath:         "/reports/a.docx",
		Degraded:         true,
		Data: models.FlatRecord{
			{Key: "patient_name", Value: "Jane Doe"},
			{Key: "imaging_findings", Value: "Liver:\n  Size: normal"},
		},
	}
	require.NoError(t, storage.SaveReport(ctx, report))
	assert.False(t, report.CreatedAt.IsZero())

	got, err := storage.GetReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.OriginalFilename, got.OriginalFilename)
	assert.Equal(t, report.DocxPath, got.DocxPath)
	assert.True(t, got.Degraded)
	assert.Equal(t, report.Data, got.Data)

	_, err = storage.GetReport(ctx, common.NewReportID())
	assert.ErrorIs(t, err, common.ErrReportNotFound)
	assert.Equal(t, common.ErrorTypeNotFound, common.ErrorTypeOf(err))
}

func TestReportStorage_ListAndRetention(t *testing.T) {
	storage := newTestManager(t).ReportStorage()
	ctx := context.Background()
	now := time.Now()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = common.NewReportID()
		require.NoError(t, storage.SaveReport(ctx, &models.Report{
			ID:        ids[i],
			CreatedAt: now.Add(time.Duration(i-2) * 48 * time.Hour),
		}))
	}

	count, err := storage.CountReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	reports, err := storage.ListReports(ctx, &interfaces.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, ids[2], reports[0].ID)
	assert.Equal(t, ids[1], reports[1].ID)

	old, err := storage.ListReportsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, old, 2)
	assert.Equal(t, ids[0], old[0].ID)

	require.NoError(t, storage.DeleteReport(ctx, ids[0]))
	require.NoError(t, storage.DeleteReport(ctx, ids[0]))
	count, err = storage.CountReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAuditStorage(t *testing.T) {
	audit := newTestManager(t).AuditStorage()
	ctx := context.Background()
	reportID := common.NewReportID()

	require.NoError(t, audit.SaveModelCall(ctx, &models.ModelCall{ReportID: reportID, Operation: "extract", Success: true}))
	require.NoError(t, audit.SaveModelCall(ctx, &models.ModelCall{ReportID: reportID, Operation: "enhance"}))
	require.NoError(t, audit.SaveModelCall(ctx, &models.ModelCall{ReportID: common.NewReportID(), Operation: "extract"}))

	calls, err := audit.ListModelCalls(ctx, reportID)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.NotEmpty(t, calls[0].ID)

	require.NoError(t, audit.DeleteModelCalls(ctx, reportID))
	calls, err = audit.ListModelCalls(ctx, reportID)
	require.NoError(t, err)
	assert.Empty(t, calls)
}
