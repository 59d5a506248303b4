package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPlaywright = "playwright"
	DriverChromedp   = "chromedp"
)

type Config struct {
	AppConfig        *AppConfig
	AIConfig         *AIConfig
	BrowserConfig    *BrowserConfig
	AutomationConfig *AutomationConfig
}

type AppConfig struct {
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	Debug         bool   `envconfig:"DEBUG" default:"false"`
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	TraceEnabled  bool   `envconfig:"TRACE_ENABLED" default:"false"`
}

type AIConfig struct {
	APIKey    string `envconfig:"AI_API_KEY" required:"true"`
	Model     string `envconfig:"AI_MODEL" default:"claude-sonnet-4-20250514"`
	BaseURL   string `envconfig:"AI_BASE_URL" default:"https://api.anthropic.com"`
	MaxTokens int    `envconfig:"AI_MAX_TOKENS" default:"4096"`
}

type BrowserConfig struct {
	Driver         string `envconfig:"BROWSER_DRIVER" default:"playwright"`
	Headless       bool   `envconfig:"BROWSER_HEADLESS" default:"false"`
	SlowMo         int    `envconfig:"BROWSER_SLOW_MO" default:"0"`
	Timeout        int    `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	ViewportWidth  int    `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight int    `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"720"`
}

// AutomationConfig holds the ceilings and bounded waits of one automation
// session.
type AutomationConfig struct {
	MaxTurns          int           `envconfig:"AUTOMATION_MAX_TURNS" default:"25"`
	MaxScreenshots    int           `envconfig:"AUTOMATION_MAX_SCREENSHOTS" default:"3"`
	MaxRepeats        int           `envconfig:"AUTOMATION_MAX_REPEATS" default:"2"`
	ScreenshotDir     string        `envconfig:"AUTOMATION_SCREENSHOT_DIR" default:"."`
	ElementTimeout    time.Duration `envconfig:"AUTOMATION_ELEMENT_TIMEOUT" default:"10s"`
	NavigationTimeout time.Duration `envconfig:"AUTOMATION_NAVIGATION_TIMEOUT" default:"20s"`
	PreClickSettle    time.Duration `envconfig:"AUTOMATION_PRE_CLICK_SETTLE" default:"500ms"`
	ClickSettle       time.Duration `envconfig:"AUTOMATION_CLICK_SETTLE" default:"2s"`
	ScrollSettle      time.Duration `envconfig:"AUTOMATION_SCROLL_SETTLE" default:"500ms"`
	ScrollAmount      int           `envconfig:"AUTOMATION_SCROLL_AMOUNT" default:"500"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &conf, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.BrowserConfig.Driver {
	case DriverPlaywright, DriverChromedp:
	default:
		errs = append(errs, fmt.Errorf("unknown browser driver %q", c.BrowserConfig.Driver))
	}

	a := c.AutomationConfig
	if a.MaxTurns <= 0 {
		errs = append(errs, errors.New("AUTOMATION_MAX_TURNS must be positive"))
	}

	if a.MaxScreenshots < 0 {
		errs = append(errs, errors.New("AUTOMATION_MAX_SCREENSHOTS must not be negative"))
	}

	if a.MaxRepeats <= 0 {
		errs = append(errs, errors.New("AUTOMATION_MAX_REPEATS must be positive"))
	}

	if a.ElementTimeout <= 0 || a.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("element and navigation timeouts must be positive"))
	}

	return errors.Join(errs...)
}
