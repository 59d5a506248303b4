package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfig_Defaults(t *testing.T) {
	t.Setenv("AI_API_KEY", "test-key")

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.AppConfig.LogLevel)
	assert.Equal(t, DriverPlaywright, cfg.BrowserConfig.Driver)
	assert.Equal(t, 1280, cfg.BrowserConfig.ViewportWidth)
	assert.Equal(t, 720, cfg.BrowserConfig.ViewportHeight)

	a := cfg.AutomationConfig
	assert.Equal(t, 25, a.MaxTurns)
	assert.Equal(t, 3, a.MaxScreenshots)
	assert.Equal(t, 2, a.MaxRepeats)
	assert.Equal(t, 10*time.Second, a.ElementTimeout)
	assert.Equal(t, 20*time.Second, a.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, a.PreClickSettle)
	assert.Equal(t, 2*time.Second, a.ClickSettle)
	assert.Equal(t, 500, a.ScrollAmount)
}

func TestGetConfig_Overrides(t *testing.T) {
	t.Setenv("AI_API_KEY", "test-key")
	t.Setenv("BROWSER_DRIVER", "chromedp")
	t.Setenv("AUTOMATION_MAX_TURNS", "10")
	t.Setenv("AUTOMATION_CLICK_SETTLE", "250ms")

	cfg, err := GetConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverChromedp, cfg.BrowserConfig.Driver)
	assert.Equal(t, 10, cfg.AutomationConfig.MaxTurns)
	assert.Equal(t, 250*time.Millisecond, cfg.AutomationConfig.ClickSettle)
}

func TestGetConfig_MissingAPIKey(t *testing.T) {
	t.Setenv("AI_API_KEY", "placeholder")
	require.NoError(t, os.Unsetenv("AI_API_KEY"))

	_, err := GetConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AppConfig:     &AppConfig{},
			AIConfig:      &AIConfig{},
			BrowserConfig: &BrowserConfig{Driver: DriverPlaywright},
			AutomationConfig: &AutomationConfig{
				MaxTurns:          25,
				MaxScreenshots:    3,
				MaxRepeats:        2,
				ElementTimeout:    time.Second,
				NavigationTimeout: time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.BrowserConfig.Driver = "selenium" },
			wantErr: "unknown browser driver",
		},
		{
			name:    "zero turns",
			mutate:  func(c *Config) { c.AutomationConfig.MaxTurns = 0 },
			wantErr: "AUTOMATION_MAX_TURNS",
		},
		{
			name:    "zero repeats",
			mutate:  func(c *Config) { c.AutomationConfig.MaxRepeats = 0 },
			wantErr: "AUTOMATION_MAX_REPEATS",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.AutomationConfig.ElementTimeout = 0 },
			wantErr: "timeouts must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
