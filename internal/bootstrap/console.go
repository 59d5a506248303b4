package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"form-agent/internal/config"
	"form-agent/internal/console"
	"form-agent/internal/ports"
	"form-agent/pkg/logg"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type sessionParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Console   *console.Interface
	Browser   ports.BrowserManager
	Logger    *zap.Logger
}

// runConsole ties the browser to the app lifetime and serves the prompt
// once the browser is up. A failed launch aborts fx start.
func runConsole(p sessionParams) {
	driver := p.Config.BrowserConfig.Driver
	logger := p.Logger.With(zap.String(logg.Layer, "Bootstrap"), zap.String(logg.Driver, driver))

	p.Lifecycle.Append(fx.StartStopHook(
		func(ctx context.Context) error {
			if err := p.Browser.Launch(ctx); err != nil {
				return fmt.Errorf("launch %s browser: %w", driver, err)
			}

			limits := p.Config.AutomationConfig
			logger.Info("Form agent ready",
				zap.Int("max_turns", limits.MaxTurns),
				zap.Int("max_screenshots", limits.MaxScreenshots),
				zap.Int("max_repeats", limits.MaxRepeats),
			)

			go func() {
				if err := p.Console.Start(); err != nil {
					logger.Error("Console interface error", zap.Error(err))
				}
			}()

			return nil
		},
		func(ctx context.Context) error {
			logger.Info("Shutting down form agent...")

			return errors.Join(p.Console.Stop(), p.Browser.Close(ctx))
		},
	))
}
