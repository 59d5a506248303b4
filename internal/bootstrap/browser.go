package bootstrap

import (
	"form-agent/internal/browser"
	"form-agent/internal/browser/devtools"
	"form-agent/internal/config"
	"form-agent/internal/ports"

	"go.uber.org/zap"
)

func newBrowserManager(cfg *config.Config, logger *zap.Logger) ports.BrowserManager {
	switch cfg.BrowserConfig.Driver {
	case config.DriverChromedp:
		return devtools.NewManager(devtools.Params{Config: cfg, Logger: logger})
	default:
		return browser.NewManager(browser.Params{Config: cfg, Logger: logger})
	}
}
