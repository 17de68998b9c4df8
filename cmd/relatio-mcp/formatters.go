package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

// formatReconcileResult renders the flattened record as a JSON block
func formatReconcileResult(result *interfaces.ReconcileResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Reconciled record (strategy: %s)\n\n", result.Strategy))
	if result.Degraded {
		sb.WriteString("**Degraded:** the completion could not be parsed; it is kept under raw_response.\n")
	}
	if len(result.Filled) > 0 {
		sb.WriteString(fmt.Sprintf("**Placeholders:** %s\n", strings.Join(result.Filled, ", ")))
	}
	sb.WriteString("\n")
	writeJSONBlock(&sb, result.Data)
	return sb.String()
}

// formatReport formats a single report as markdown
func formatReport(report *models.Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Report %s\n\n", report.ID))
	sb.WriteString(fmt.Sprintf("**Source:** %s (%s)\n", report.OriginalFilename, report.SourceKind))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", report.CreatedAt.Format(time.RFC3339)))
	if report.Strategy != "" {
		sb.WriteString(fmt.Sprintf("**Strategy:** %s\n", report.Strategy))
	}
	if report.Degraded {
		sb.WriteString(fmt.Sprintf("**Degraded:** %s\n", report.DegradedReason))
	}
	if report.PDFAvailable {
		sb.WriteString("**Artifacts:** docx, pdf\n")
	} else {
		sb.WriteString("**Artifacts:** docx\n")
		if report.ConversionError != "" {
			sb.WriteString(fmt.Sprintf("**PDF error:** %s\n", report.ConversionError))
		}
	}
	sb.WriteString("\n")
	writeJSONBlock(&sb, report.Data)
	return sb.String()
}

// formatReportList formats a report listing as markdown
func formatReportList(reports []*models.Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Reports (%d)\n\n", len(reports)))

	if len(reports) == 0 {
		sb.WriteString("No reports found.\n")
		return sb.String()
	}

	for i, report := range reports {
		status := "ok"
		if report.Degraded {
			status = "degraded"
		}
		sb.WriteString(fmt.Sprintf("%d. `%s` %s (%s, %s)\n",
			i+1, report.ID, report.OriginalFilename, status, report.CreatedAt.Format(time.RFC3339)))
	}

	return sb.String()
}

func writeJSONBlock(sb *strings.Builder, data models.FlatRecord) {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		body = []byte("{}")
	}
	sb.WriteString("```json\n")
	sb.Write(body)
	sb.WriteString("\n```\n")
}
