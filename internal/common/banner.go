package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective endpoints
func PrintBanner(config *Config, logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorCyan).
		SetTextColor(banner.ColorWhite).
		SetBold(true)

	b.PrintTopLine()
	b.PrintCenteredText("RELATIO")
	b.PrintCenteredText("Clinical report reconciliation")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", GetVersion(), 12)
	b.PrintKeyValue("Server", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port), 12)
	b.PrintKeyValue("Provider", string(config.LLM.DefaultProvider), 12)
	b.PrintKeyValue("Reports", config.Storage.Filesystem.Reports, 12)
	b.PrintBottomLine()

	logger.Info().
		Str("version", GetFullVersion()).
		Str("host", config.Server.Host).
		Int("port", config.Server.Port).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("reports_dir", config.Storage.Filesystem.Reports).
		Msg("Relatio configured")
}
