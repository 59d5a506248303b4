package actions

import (
	"context"
	"fmt"
	"form-agent/internal/entity"
	"form-agent/internal/guard"
	"form-agent/internal/matcher"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultScreenshotReason = "debug"

func (c *Controller) Navigate(ctx context.Context, gate *guard.Gate, url string) (out entity.Outcome) {
	const op = "Navigate"
	logger := c.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op, attribute.String("url", url))
	defer func() {
		finish(logger, step, out)
	}()

	if url == "" {
		return entity.Fail(entity.OutcomeInvalid, nil, "URL cannot be empty")
	}

	if rejected, ok := c.admit(logger, gate, guard.Signature("navigate", url), "Navigation blocked to prevent infinite loop."); !ok {
		return rejected
	}

	if err := c.browser.Navigate(ctx, url, c.config.NavigationTimeout); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to navigate to %s: %v", url, err)
	}

	step.AddEvent("introspecting page")

	fields, err := c.browser.FormFields(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to navigate to %s: %v", url, err)
	}

	buttons, err := c.browser.Buttons(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to navigate to %s: %v", url, err)
	}

	return entity.Ok(fmt.Sprintf("Navigated to %s. Found %d form fields and %d buttons.", url, len(fields), len(buttons)))
}

// FillField writes value into the field playing role. A custom role with a
// selector bypasses the matcher and fills the selector directly.
func (c *Controller) FillField(ctx context.Context, gate *guard.Gate, role, value, customSelector string) (out entity.Outcome) {
	const op = "FillField"
	logger := c.logger.With(zap.String(logg.Operation, op), zap.String(logg.Role, role))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op, attribute.String("role", role))
	defer func() {
		finish(logger, step, out)
	}()

	r, err := matcher.ParseRole(role)
	if err != nil {
		return entity.Fail(entity.OutcomeInvalid, err, "Unknown field type: %s", role)
	}

	if rejected, ok := c.admit(logger, gate, guard.Signature("fill", role, value), "Fill action blocked to prevent infinite loop."); !ok {
		return rejected
	}

	if r == entity.RoleCustom && customSelector != "" {
		if err := c.browser.FillSelector(ctx, customSelector, value, c.config.ElementTimeout); err != nil {
			return entity.Fail(entity.OutcomeFailed, err, "Failed to fill %s field: %v", role, err)
		}

		return entity.Ok(fmt.Sprintf("Successfully filled custom field \"%s\" with \"%s\"", customSelector, value))
	}

	fields, err := c.browser.FormFields(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to fill %s field: %v", role, err)
	}

	target, found := matcher.Match(r, fields)
	if !found {
		return entity.Fail(entity.OutcomeNotFound, nil, "No matching field found for type: %s", role)
	}

	selector, err := matcher.Locator(target)
	if err != nil {
		return entity.Fail(entity.OutcomeInvalid, err, "Unable to create selector for field type: %s", role)
	}

	step.SetAttributes(attribute.String("selector", selector))

	if err := c.browser.FillField(ctx, selector, value, c.config.ElementTimeout); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to fill %s field: %v", role, err)
	}

	return entity.Ok(fmt.Sprintf("Successfully filled %s field with \"%s\"", role, value))
}

func (c *Controller) ClickButton(ctx context.Context, gate *guard.Gate, text string) (out entity.Outcome) {
	const op = "ClickButton"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op, attribute.String("text", text))
	defer func() {
		finish(logger, step, out)
	}()

	if rejected, ok := c.admit(logger, gate, guard.Signature("click", text), "Click action blocked to prevent infinite loop."); !ok {
		return rejected
	}

	buttons, err := c.browser.Buttons(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to click button: %v", err)
	}

	target, found := findButton(buttons, text)
	if !found {
		return entity.Fail(entity.OutcomeNotFound, nil, "No button found with text: \"%s\"", text)
	}

	step.SetAttributes(attribute.String("selector", target.Selector))

	if err := c.browser.ScrollIntoView(ctx, target.Selector, c.config.ElementTimeout); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to click button: %v", err)
	}

	if err := settle(ctx, c.config.PreClickSettle); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to click button: %v", err)
	}

	if err := c.browser.Click(ctx, target.Selector, c.config.ElementTimeout); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to click button: %v", err)
	}

	step.AddEvent("waiting for submission")

	if err := settle(ctx, c.config.ClickSettle); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to click button: %v", err)
	}

	return entity.Ok(fmt.Sprintf("Successfully clicked: \"%s\"", text))
}

// findButton returns the first visible button whose text contains query,
// ignoring case.
func findButton(buttons []entity.ButtonDescriptor, query string) (entity.ButtonDescriptor, bool) {
	query = strings.ToLower(query)

	for _, b := range buttons {
		if b.Visible && strings.Contains(strings.ToLower(b.Text), query) {
			return b, true
		}
	}

	return entity.ButtonDescriptor{}, false
}

// ValidateField compares the current value of the field playing role with
// expected. A mismatch is still an ok outcome; the message carries the verdict.
func (c *Controller) ValidateField(ctx context.Context, gate *guard.Gate, role, expected, customSelector string) (out entity.Outcome) {
	const op = "ValidateField"
	logger := c.logger.With(zap.String(logg.Operation, op), zap.String(logg.Role, role))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op, attribute.String("role", role))
	defer func() {
		finish(logger, step, out)
	}()

	r, err := matcher.ParseRole(role)
	if err != nil {
		return entity.Fail(entity.OutcomeInvalid, err, "Unknown field type: %s", role)
	}

	if rejected, ok := c.admit(logger, gate, guard.Signature("validate", role, expected), "Validation blocked to prevent infinite loop."); !ok {
		return rejected
	}

	selector := customSelector
	if r != entity.RoleCustom || customSelector == "" {
		fields, err := c.browser.FormFields(ctx)
		if err != nil {
			return entity.Fail(entity.OutcomeFailed, err, "Validation failed for %s: %v", role, err)
		}

		target, found := matcher.Match(r, fields)
		if !found {
			return entity.Fail(entity.OutcomeNotFound, nil, "No field found for validation: %s", role)
		}

		selector, err = matcher.Locator(target)
		if err != nil {
			return entity.Fail(entity.OutcomeInvalid, err, "Unable to create locator for field: %s", role)
		}
	}

	actual, err := c.browser.InputValue(ctx, selector, c.config.ElementTimeout)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Validation failed for %s: %v", role, err)
	}

	valid := actual == expected
	step.SetAttributes(attribute.Bool("valid", valid))

	return entity.Ok(fmt.Sprintf("Field %s validation: Expected \"%s\", Got \"%s\", Valid: %t", role, expected, actual, valid))
}

// Scroll moves the page by amount pixels; a non-positive amount means the
// configured default.
func (c *Controller) Scroll(ctx context.Context, gate *guard.Gate, direction string, amount int) (out entity.Outcome) {
	const op = "Scroll"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op,
		attribute.String("direction", direction),
		attribute.Int("amount", amount))
	defer func() {
		finish(logger, step, out)
	}()

	var sign int
	switch entity.ScrollDirection(direction) {
	case entity.ScrollDown:
		sign = 1
	case entity.ScrollUp:
		sign = -1
	default:
		return entity.Fail(entity.OutcomeInvalid, nil, "Invalid scroll direction: %s", direction)
	}

	if amount <= 0 {
		amount = c.config.ScrollAmount
	}

	if rejected, ok := c.admit(logger, gate, guard.Signature("scroll", direction, strconv.Itoa(amount)), "Scroll blocked to prevent infinite loop."); !ok {
		return rejected
	}

	if err := c.browser.Wheel(ctx, sign*amount); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to scroll: %v", err)
	}

	if err := settle(ctx, c.config.ScrollSettle); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Failed to scroll: %v", err)
	}

	return entity.Ok(fmt.Sprintf("Scrolled %s by %d pixels", direction, amount))
}

// CaptureScreenshot saves a viewport capture. The quota is checked before
// the repeat tracker, and an admitted capture counts even if it fails.
func (c *Controller) CaptureScreenshot(ctx context.Context, gate *guard.Gate, reason string) (out entity.Outcome) {
	const op = "CaptureScreenshot"
	logger := c.logger.With(zap.String(logg.Operation, op))

	if reason == "" {
		reason = defaultScreenshotReason
	}

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op, attribute.String("reason", reason))
	defer func() {
		finish(logger, step, out)
	}()

	limits := gate.Limits()
	signature := guard.Signature("screenshot", reason)

	switch decision := gate.AdmitScreenshot(reason); decision {
	case guard.Admitted:
	case guard.RejectedQuota:
		logger.Warn("Screenshot quota exhausted", zap.String(logg.Signature, signature), zap.String(logg.Decision, decision.String()))

		return entity.Fail(entity.OutcomeQuotaExceeded, nil, "Screenshot limit reached (%d).", limits.MaxScreenshots)
	case guard.RejectedTurnCeiling:
		logger.Warn("Turn limit reached", zap.String(logg.Signature, signature), zap.String(logg.Decision, decision.String()))

		return entity.Fail(entity.OutcomeBlocked, nil, "Turn limit reached (%d).", limits.MaxTurns)
	default:
		logger.Warn("Action rejected", zap.String(logg.Signature, signature), zap.String(logg.Decision, decision.String()))

		return entity.Fail(entity.OutcomeBlocked, nil, "Action blocked to prevent infinite loop.")
	}

	path := guard.ScreenshotPath(c.config.ScreenshotDir, reason, c.now())
	step.SetAttributes(attribute.String("path", path))

	if err := c.browser.Screenshot(ctx, path); err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Screenshot failed: %v", err)
	}

	return entity.Ok(fmt.Sprintf("Screenshot saved (%d/%d): %s", gate.State().ScreenshotCount, limits.MaxScreenshots, path))
}

// AnalyzeStructure reports the visible fields and buttons of the current
// page together with totals that include hidden elements.
func (c *Controller) AnalyzeStructure(ctx context.Context, gate *guard.Gate) (out entity.Outcome) {
	const op = "AnalyzeStructure"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op)
	defer func() {
		finish(logger, step, out)
	}()

	if rejected, ok := c.admit(logger, gate, guard.Signature("analyze", "page"), "Analysis blocked to prevent infinite loop."); !ok {
		return rejected
	}

	url, err := c.browser.URL(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Analysis failed: %v", err)
	}

	title, err := c.browser.Title(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Analysis failed: %v", err)
	}

	fields, err := c.browser.FormFields(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Analysis failed: %v", err)
	}

	buttons, err := c.browser.Buttons(ctx)
	if err != nil {
		return entity.Fail(entity.OutcomeFailed, err, "Analysis failed: %v", err)
	}

	structure := &entity.PageStructure{
		URL:     url,
		Title:   title,
		Fields:  make([]entity.FieldDescriptor, 0, len(fields)),
		Buttons: make([]entity.ButtonDescriptor, 0, len(buttons)),
	}

	for _, f := range fields {
		if f.Visible {
			structure.Fields = append(structure.Fields, f)
		}
	}

	for _, b := range buttons {
		if b.Visible {
			structure.Buttons = append(structure.Buttons, b)
		}
	}

	structure.Stats = entity.PageStats{
		TotalFields:    len(fields),
		VisibleFields:  len(structure.Fields),
		TotalButtons:   len(buttons),
		VisibleButtons: len(structure.Buttons),
	}

	return entity.OkStructure(structure)
}
