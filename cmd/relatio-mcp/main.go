package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/relatio/internal/app"
	"github.com/ternarybob/relatio/internal/common"
)

func main() {
	configPath := os.Getenv("RELATIO_CONFIG")
	if configPath == "" {
		configPath = "relatio.toml"
	}

	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// The HTTP server owns the retention sweep
	config.Retention.Enabled = false

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"relatio",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	reports := application.ReportService
	mcpServer.AddTool(createReconcileCompletionTool(), handleReconcileCompletion(reports, logger))
	mcpServer.AddTool(createGenerateReportTool(), handleGenerateReport(reports, logger))
	mcpServer.AddTool(createGetReportTool(), handleGetReport(reports, logger))
	mcpServer.AddTool(createListReportsTool(), handleListReports(reports, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}
