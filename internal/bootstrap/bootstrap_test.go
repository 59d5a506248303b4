package bootstrap

import (
	"context"
	"errors"
	"form-agent/internal/browser"
	"form-agent/internal/browser/devtools"
	"form-agent/internal/browser/memdom"
	"form-agent/internal/config"
	"form-agent/internal/console"
	"form-agent/internal/usecase"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestOptions_GraphIsValid(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Options()))
}

func TestNewBrowserManager_SelectsDriver(t *testing.T) {
	tests := []struct {
		driver string
		want   any
	}{
		{config.DriverPlaywright, &browser.Manager{}},
		{config.DriverChromedp, &devtools.Manager{}},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := &config.Config{BrowserConfig: &config.BrowserConfig{Driver: tt.driver}}

			got := newBrowserManager(cfg, zap.NewNop())

			assert.IsType(t, tt.want, got)
			assert.False(t, got.IsReady())
		})
	}
}

func TestNewLogger_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	cfg := &config.Config{AppConfig: &config.AppConfig{
		LogLevel:      "debug",
		LogFile:       path,
		LogMaxSizeMB:  1,
		LogMaxBackups: 1,
	}}

	lc := fxtest.NewLifecycle(t)

	logger, err := newLogger(lc, cfg)
	require.NoError(t, err)

	lc.RequireStart()
	logger.Debug("field filled", zap.String("role", "email"))
	lc.RequireStop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"field filled"`)
	assert.Contains(t, string(data), `"role":"email"`)
}

func TestNewLogger_LevelFromConfig(t *testing.T) {
	cfg := &config.Config{AppConfig: &config.AppConfig{LogLevel: "warn"}}

	logger, err := newLogger(fxtest.NewLifecycle(t), cfg)
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNewTraceProvider_ShutsDownOnStop(t *testing.T) {
	cfg := &config.Config{AppConfig: &config.AppConfig{}}
	lc := fxtest.NewLifecycle(t)

	tp, err := newTraceProvider(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "fill")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	lc.RequireStart()
	lc.RequireStop()
}

func TestRunConsole_LaunchFailureAbortsStart(t *testing.T) {
	cfg := &config.Config{
		BrowserConfig:    &config.BrowserConfig{Driver: config.DriverChromedp},
		AutomationConfig: &config.AutomationConfig{MaxTurns: 25, MaxScreenshots: 3, MaxRepeats: 2},
	}

	b := memdom.New()
	boom := errors.New("chrome failed to start")
	b.FailOn("Launch", boom)

	lc := fxtest.NewLifecycle(t)
	runConsole(sessionParams{
		Lifecycle: lc,
		Config:    cfg,
		Console:   console.NewInterface(console.Params{Config: cfg, Logger: zap.NewNop(), Usecase: &usecase.Service{}}),
		Browser:   b,
		Logger:    zap.NewNop(),
	})

	err := lc.Start(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "launch chromedp browser")
	assert.False(t, b.IsReady())
	assert.Equal(t, []string{"Launch"}, b.Calls())
}
