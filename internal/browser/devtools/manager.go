// Package devtools drives Chrome directly over the DevTools protocol. It is
// the alternative to the playwright driver when no playwright runtime can be
// installed on the host.
package devtools

import (
	"context"
	"errors"
	"form-agent/internal/browser"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/internal/ports"
	"form-agent/pkg/apperr"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	devtoolsManagerName = "DevtoolsManager"
	devtoolsTracer      = "browser.devtools"
)

var _ ports.BrowserManager = (*Manager)(nil)

type Manager struct {
	config        *config.Config
	logger        *zap.Logger
	tracer        trace.Tracer
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	ready         bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewManager(params Params) *Manager {
	return &Manager{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, devtoolsManagerName), zap.String(logg.Driver, config.DriverChromedp)),
		tracer: otel.Tracer(devtoolsTracer),
	}
}

func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	browserCfg := m.config.BrowserConfig

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", browserCfg.Headless),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-gpu", browserCfg.Headless),
		chromedp.WindowSize(browserCfg.ViewportWidth, browserCfg.ViewportHeight),
	)

	return opts
}

func (m *Manager) Launch(ctx context.Context) (err error) {
	const op = "Launch"
	logger := m.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	logger.Info("Launching browser...")

	// the browser outlives the launch request, so it hangs off a root context
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), m.allocatorOptions()...)

	sugar := m.logger.Sugar()
	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	step.AddEvent("starting browser")

	if err := m.run(ctx, time.Duration(m.config.BrowserConfig.Timeout)*time.Millisecond, chromedp.Navigate("about:blank")); err != nil {
		m.browserCancel()
		m.allocCancel()

		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "browser_launch_failed",
			apperr.MetaStage:  apperr.StageBrowser,
		})
	}

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

	if m.browserCtx != nil {
		if err := chromedp.Cancel(m.browserCtx); err != nil {
			logger.Warn("Failed to close browser", zap.Error(err))
		}
		m.browserCancel()
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}

	m.ready = false
	logger.Info("Browser closed")

	return nil
}

func (m *Manager) IsReady() bool {
	return m.ready
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (m *Manager) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(m.browserCtx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

func (m *Manager) checkReady(op string) error {
	if !m.ready {
		return apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	return nil
}

func (m *Manager) defaultTimeout() time.Duration {
	return time.Duration(m.config.BrowserConfig.Timeout) * time.Millisecond
}

func (m *Manager) Navigate(ctx context.Context, url string, timeout time.Duration) (err error) {
	const op = "Navigate"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	if err := m.checkReady(op); err != nil {
		return err
	}

	if err := m.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return apperr.Wrap(op, codeFor(err), err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	return nil
}

func (m *Manager) URL(ctx context.Context) (url string, err error) {
	const op = "URL"

	if err := m.checkReady(op); err != nil {
		return "", err
	}

	if err := m.run(ctx, m.defaultTimeout(), chromedp.Location(&url)); err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "location_failed",
			apperr.MetaStage:  apperr.StageIntrospect,
		})
	}

	return url, nil
}

func (m *Manager) Title(ctx context.Context) (title string, err error) {
	const op = "Title"

	if err := m.checkReady(op); err != nil {
		return "", err
	}

	if err := m.run(ctx, m.defaultTimeout(), chromedp.Title(&title)); err != nil {
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

	raw, err := m.evaluate(ctx, op, browser.FieldsScript)
	if err != nil {
		return nil, err
	}

	fields = browser.DecodeFields(raw)
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

	raw, err := m.evaluate(ctx, op, browser.ButtonsScript)
	if err != nil {
		return nil, err
	}

	buttons = browser.DecodeButtons(raw)
	step.SetAttributes(attribute.Int("buttons_count", len(buttons)))

	return buttons, nil
}

func (m *Manager) evaluate(ctx context.Context, op, script string) (interface{}, error) {
	if err := m.checkReady(op); err != nil {
		return nil, err
	}

	var result interface{}
	if err := m.run(ctx, m.defaultTimeout(), chromedp.Evaluate(script, &result)); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "evaluate_failed",
			apperr.MetaStage:  apperr.StageIntrospect,
		})
	}

	return result, nil
}

func tripleClick(selector string) chromedp.QueryAction {
	return chromedp.QueryAfter(selector, func(ctx context.Context, _ runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return errors.New("no node for selector " + selector)
		}

		return chromedp.MouseClickNode(nodes[0], chromedp.ClickCount(3)).Do(ctx)
	}, chromedp.ByQuery)
}

func (m *Manager) FillField(ctx context.Context, selector, value string, timeout time.Duration) (err error) {
	const op = "FillField"
	logger := m.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	ctx, step := tracing.StartSpan(ctx, m.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	if err := m.checkReady(op); err != nil {
		return err
	}

	if err := m.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		tripleClick(selector),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
		chromedp.Blur(selector, chromedp.ByQuery),
	); err != nil {
		return interactionError(op, "fill_failed", selector, err)
	}

	return nil
}

func (m *Manager) FillSelector(ctx context.Context, selector, value string, timeout time.Duration) (err error) {
	const op = "FillSelector"

	if err := m.checkReady(op); err != nil {
		return err
	}

	if err := m.run(ctx, timeout,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	); err != nil {
		return interactionError(op, "fill_failed", selector, err)
	}

	return nil
}

func (m *Manager) ScrollIntoView(ctx context.Context, selector string, timeout time.Duration) (err error) {
	const op = "ScrollIntoView"

	if err := m.checkReady(op); err != nil {
		return err
	}

	if err := m.run(ctx, timeout, chromedp.ScrollIntoView(selector, chromedp.ByQuery)); err != nil {
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

	if err := m.checkReady(op); err != nil {
		return err
	}

	if err := m.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return interactionError(op, "click_failed", selector, err)
	}

	return nil
}

func (m *Manager) InputValue(ctx context.Context, selector string, timeout time.Duration) (value string, err error) {
	const op = "InputValue"

	if err := m.checkReady(op); err != nil {
		return "", err
	}

	if err := m.run(ctx, timeout, chromedp.Value(selector, &value, chromedp.ByQuery)); err != nil {
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

	if err := m.checkReady(op); err != nil {
		return err
	}

	// wheel events are dispatched at the viewport centre
	x := float64(m.config.BrowserConfig.ViewportWidth) / 2
	y := float64(m.config.BrowserConfig.ViewportHeight) / 2

	if err := m.run(ctx, m.defaultTimeout(),
		input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(0).WithDeltaY(float64(deltaY)),
	); err != nil {
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

	if err := m.checkReady(op); err != nil {
		return err
	}

	var buf []byte
	if err := m.run(ctx, m.defaultTimeout(), chromedp.CaptureScreenshot(&buf)); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "mkdir_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "write_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
		})
	}

	return nil
}

func codeFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
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
