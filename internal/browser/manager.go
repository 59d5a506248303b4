package browser

import (
	"context"
	"errors"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/internal/ports"
	"form-agent/pkg/apperr"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	browserManagerName = "BrowserManager"
	browserTracer      = "browser.manager"
)

var launchArgs = []string{
	"--disable-extensions",
	"--disable-file-system",
	"--no-sandbox",
}

var _ ports.BrowserManager = (*Manager)(nil)

// Manager drives a single Chromium page through playwright.
type Manager struct {
	config         *config.Config
	logger         *zap.Logger
	tracer         trace.Tracer
	playwright     *playwright.Playwright
	browser        playwright.Browser
	browserContext playwright.BrowserContext
	page           playwright.Page
	ready          bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, browserManagerName), zap.String(logg.Driver, config.DriverPlaywright)),
		tracer: otel.Tracer(browserTracer),
		ready:  false,
	}
}

func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching browser...")
	step.AddEvent("installing playwright")

	err = playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_install_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

	step.AddEvent("starting playwright")

	pw, err := playwright.Run()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "playwright_start_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.playwright = pw

	browserCfg := m.config.BrowserConfig

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(browserCfg.Headless),
		SlowMo:   playwright.Float(float64(browserCfg.SlowMo)),
		Args:     launchArgs,
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.browser = browser

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  browserCfg.ViewportWidth,
			Height: browserCfg.ViewportHeight,
		},
		JavaScriptEnabled: playwright.Bool(true),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "context_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.browserContext = browserContext
	m.browserContext.SetDefaultTimeout(float64(browserCfg.Timeout))

	page, err := browserContext.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "page_create_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}
	m.page = page

	m.ready = true
	logger.Info("Browser launched successfully")

	return nil
}

func (m *Manager) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Closing browser...")

	if m.browserContext != nil {
		if err := m.browserContext.Close(); err != nil {
			logger.Warn("Failed to close context", zap.Error(err))
		}
	}

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			logger.Warn("Failed to close browser", zap.Error(err))
		}
	}

	if m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
				apperr.MetaReason: "playwright_stop_failed",
			})
		}
	}

	m.ready = false
	logger.Info("Browser closed")

	return nil
}

func (m *Manager) IsReady() bool {
	return m.ready
}

func (m *Manager) ensurePageActive() error {
	if m.browserContext == nil {
		return errors.New("browser context is nil")
	}

	if m.page != nil && !m.page.IsClosed() {
		return nil
	}

	m.logger.Info("Page closed, reconnecting to active page...")

	for _, p := range m.browserContext.Pages() {
		if !p.IsClosed() {
			m.page = p
			m.logger.Info("Reconnected to existing page")

			return nil
		}
	}

	page, err := m.browserContext.NewPage()
	if err != nil {
		return err
	}

	m.page = page
	m.logger.Info("Created new page")

	return nil
}

// checkPage is the common precondition of every page operation.
func (m *Manager) checkPage(op string) error {
	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	if err := m.ensurePageActive(); err != nil {
		return apperr.Wrap(op, apperr.CodeBrowserNotReady, err, map[string]any{
			apperr.MetaReason: "page_not_active",
		})
	}

	return nil
}

func (m *Manager) Navigate(ctx context.Context, url string, timeout time.Duration) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return err
	}

	step.AddEvent("navigating to URL")

	_, err = m.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   millis(timeout),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		return apperr.Wrap(op, codeFor(err), err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	return nil
}

func (m *Manager) URL(ctx context.Context) (string, error) {
	const op = "URL"

	if err := m.checkPage(op); err != nil {
		return "", err
	}

	return m.page.URL(), nil
}

func (m *Manager) Title(ctx context.Context) (string, error) {
	const op = "Title"

	if err := m.checkPage(op); err != nil {
		return "", err
	}

	title, err := m.page.Title()
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "title_failed",
			apperr.MetaStage:  apperr.StageIntrospect,
		})
	}

	return title, nil
}

func (m *Manager) FormFields(ctx context.Context) (fields []entity.FieldDescriptor, err error) {
	const op = "FormFields"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	raw, err := m.evaluate(op, FieldsScript)
	if err != nil {
		return nil, err
	}

	fields = DecodeFields(raw)
	step.SetAttributes(attribute.Int("fields_count", len(fields)))

	return fields, nil
}

func (m *Manager) Buttons(ctx context.Context) (buttons []entity.ButtonDescriptor, err error) {
	const op = "Buttons"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	raw, err := m.evaluate(op, ButtonsScript)
	if err != nil {
		return nil, err
	}

	buttons = DecodeButtons(raw)
	step.SetAttributes(attribute.Int("buttons_count", len(buttons)))

	return buttons, nil
}

func (m *Manager) evaluate(op, script string) (interface{}, error) {
	if err := m.checkPage(op); err != nil {
		return nil, err
	}

	result, err := m.page.Evaluate(script)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaStage:  apperr.StageIntrospect,
		})
	}

	return result, nil
}

func (m *Manager) FillField(ctx context.Context, selector, value string, timeout time.Duration) (err error) {
	const op = "FillField"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return err
	}

	locator := m.page.Locator(selector)

	step.AddEvent("waiting for element")

	if err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "wait_failed", selector, err)
	}

	if err := locator.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "scroll_into_view_failed", selector, err)
	}

	step.AddEvent("selecting existing content")

	if err := locator.Click(playwright.LocatorClickOptions{
		ClickCount: playwright.Int(3),
		Timeout:    millis(timeout),
	}); err != nil {
		return interactionError(op, "select_failed", selector, err)
	}

	step.AddEvent("filling field")

	if err := locator.Fill(value, playwright.LocatorFillOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "fill_failed", selector, err)
	}

	if err := locator.Blur(playwright.LocatorBlurOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "blur_failed", selector, err)
	}

	return nil
}

func (m *Manager) FillSelector(ctx context.Context, selector, value string, timeout time.Duration) (err error) {
	const op = "FillSelector"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return err
	}

	if err := m.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "fill_failed", selector, err)
	}

	return nil
}

func (m *Manager) ScrollIntoView(ctx context.Context, selector string, timeout time.Duration) (err error) {
	const op = "ScrollIntoView"

	if err := m.checkPage(op); err != nil {
		return err
	}

	if err := m.page.Locator(selector).First().ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "scroll_into_view_failed", selector, err)
	}

	return nil
}

func (m *Manager) Click(ctx context.Context, selector string, timeout time.Duration) (err error) {
	const op = "Click"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return err
	}

	step.AddEvent("clicking element")

	if err := m.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	}); err != nil {
		return interactionError(op, "click_failed", selector, err)
	}

	return nil
}

func (m *Manager) InputValue(ctx context.Context, selector string, timeout time.Duration) (value string, err error) {
	const op = "InputValue"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return "", err
	}

	value, err = m.page.Locator(selector).InputValue(playwright.LocatorInputValueOptions{
		Timeout: millis(timeout),
	})
	if err != nil {
		return "", apperr.Wrap(op, codeFor(err), err, map[string]any{
			apperr.MetaReason:   "input_value_failed",
			apperr.MetaStage:    apperr.StageValidation,
			apperr.MetaSelector: selector,
		})
	}

	return value, nil
}

func (m *Manager) Wheel(ctx context.Context, deltaY int) (err error) {
	const op = "Wheel"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.Int("delta_y", deltaY))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return err
	}

	if err := m.page.Mouse().Wheel(0, float64(deltaY)); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "wheel_failed",
			apperr.MetaStage:  apperr.StageInteraction,
		})
	}

	return nil
}

func (m *Manager) Screenshot(ctx context.Context, path string) (err error) {
	const op = "Screenshot"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("path", path))
	defer func() {
		step.End(err)
	}()

	if err := m.checkPage(op); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	_, err = m.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(false),
	})
	if err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	return nil
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func codeFor(err error) string {
	if errors.Is(err, playwright.ErrTimeout) {
		return apperr.CodeTimeout
	}

	return apperr.CodeActionFailed
}

func interactionError(op, reason, selector string, err error) error {
	return apperr.Wrap(op, codeFor(err), err, map[string]any{
		apperr.MetaReason:   reason,
		apperr.MetaStage:    apperr.StageInteraction,
		apperr.MetaSelector: selector,
	})
}
