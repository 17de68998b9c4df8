package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/relatio/internal/models"
)

// RenderRequest carries a flattened record to the document renderer
type RenderRequest struct {
	ReportID         string
	OriginalFilename string
	Data             models.FlatRecord
	CreatedAt        time.Time
}

// ReportRenderer writes report documents keyed by report ID
type ReportRenderer interface {
	// Render produces the artifact for format and returns its path.
	// The PDF format is derived from the DOCX artifact, which is rendered
	// first when absent. A failed PDF conversion leaves the DOCX in place and
	// returns an error wrapping common.ErrConversionFailed.
	Render(ctx context.Context, req RenderRequest, format models.ReportFormat) (string, error)

	// Remove deletes every artifact stored for reportID
	Remove(reportID string) error
}
