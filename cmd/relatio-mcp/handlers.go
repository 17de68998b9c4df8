package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/interfaces"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleReconcileCompletion implements the reconcile_completion tool
func handleReconcileCompletion(reports interfaces.ReportService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		completion, err := request.RequireString("completion")
		if err != nil {
			return errorResult("Error: completion parameter is required"), nil
		}

		result := reports.Reconcile(completion)
		logger.Debug().
			Str("strategy", result.Strategy).
			Int("filled", len(result.Filled)).
			Msg("Completion reconciled")

		return textResult(formatReconcileResult(result)), nil
	}
}

// handleGenerateReport implements the generate_report_from_text tool
func handleGenerateReport(reports interfaces.ReportService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := request.RequireString("text")
		if err != nil || text == "" {
			return errorResult("Error: text parameter is required"), nil
		}
		filename := request.GetString("filename", "")

		report, err := reports.GenerateFromText(ctx, text, filename)
		if err != nil {
			logger.Error().Err(err).Msg("Report generation failed")
			return errorResult(fmt.Sprintf("Report generation failed: %v", err)), nil
		}

		return textResult(formatReport(report)), nil
	}
}

// handleGetReport implements the get_report tool
func handleGetReport(reports interfaces.ReportService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("report_id")
		if err != nil || id == "" {
			return errorResult("Error: report_id parameter is required"), nil
		}

		report, err := reports.GetReport(ctx, id)
		if err != nil {
			logger.Debug().Err(err).Str("report_id", id).Msg("GetReport failed")
			return errorResult(fmt.Sprintf("Report not found: %s", id)), nil
		}

		return textResult(formatReport(report)), nil
	}
}

// handleListReports implements the list_reports tool
func handleListReports(reports interfaces.ReportService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		list, err := reports.ListReports(ctx, &interfaces.ListOptions{Limit: limit})
		if err != nil {
			logger.Error().Err(err).Msg("ListReports failed")
			return errorResult(fmt.Sprintf("Failed to list reports: %v", err)), nil
		}

		return textResult(formatReportList(list)), nil
	}
}
