package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createReconcileCompletionTool returns the reconcile_completion tool definition
func createReconcileCompletionTool() mcp.Tool {
	return mcp.NewTool("reconcile_completion",
		mcp.WithDescription("Recover, complete and flatten a raw model completion into the canonical report record"),
		mcp.WithString("completion",
			mcp.Required(),
			mcp.Description("Raw completion text as returned by the model"),
		),
	)
}

// createGenerateReportTool returns the generate_report_from_text tool definition
func createGenerateReportTool() mcp.Tool {
	return mcp.NewTool("generate_report_from_text",
		mcp.WithDescription("Generate a DOCX report (and PDF when conversion succeeds) from clinical source text"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Source text of the clinical document"),
		),
		mcp.WithString("filename",
			mcp.Description("Name recorded as the source file (default: text-input.txt)"),
		),
	)
}

// createGetReportTool returns the get_report tool definition
func createGetReportTool() mcp.Tool {
	return mcp.NewTool("get_report",
		mcp.WithDescription("Retrieve a generated report's fields and artifact status by ID"),
		mcp.WithString("report_id",
			mcp.Required(),
			mcp.Description("Report ID (UUID)"),
		),
	)
}

// createListReportsTool returns the list_reports tool definition
func createListReportsTool() mcp.Tool {
	return mcp.NewTool("list_reports",
		mcp.WithDescription("List recently generated reports, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
	)
}
