// Package actions holds the action executors the planner drives. Every
// executor consults the session's guard.Gate before it touches the page and
// reports back an entity.Outcome; nothing crosses this boundary as an error.
package actions

import (
	"context"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/internal/guard"
	"form-agent/internal/ports"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	controllerName   = "ActionController"
	controllerTracer = "actions.controller"
)

type Controller struct {
	browser ports.BrowserManager
	config  *config.AutomationConfig
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

type Params struct {
	fx.In

	Browser ports.BrowserManager
	Config  *config.Config
	Logger  *zap.Logger
}

func NewController(params Params) *Controller {
	return &Controller{
		browser: params.Browser,
		config:  params.Config.AutomationConfig,
		logger:  params.Logger.With(zap.String(logg.Layer, controllerName)),
		tracer:  otel.Tracer(controllerTracer),
		now:     time.Now,
	}
}

// Dispatch routes a planner decision to its executor.
func (c *Controller) Dispatch(ctx context.Context, gate *guard.Gate, action entity.PlannedAction) entity.Outcome {
	switch action.Name {
	case entity.ActionNavigate:
		return c.Navigate(ctx, gate, action.URL)
	case entity.ActionFill:
		return c.FillField(ctx, gate, action.Role, action.Value, action.CustomSelector)
	case entity.ActionClick:
		return c.ClickButton(ctx, gate, action.ButtonText)
	case entity.ActionValidate:
		return c.ValidateField(ctx, gate, action.Role, action.ExpectedValue, action.CustomSelector)
	case entity.ActionScroll:
		return c.Scroll(ctx, gate, action.Direction, action.Amount)
	case entity.ActionScreenshot:
		return c.CaptureScreenshot(ctx, gate, action.Reason)
	case entity.ActionAnalyze:
		return c.AnalyzeStructure(ctx, gate)
	default:
		return entity.Fail(entity.OutcomeInvalid, nil, "Unknown action: %s", action.Name)
	}
}

// admit asks the gate about signature and turns a rejection into the
// outcome the caller returns unchanged.
func (c *Controller) admit(logger *zap.Logger, gate *guard.Gate, signature, blocked string) (entity.Outcome, bool) {
	decision := gate.Admit(signature)

	logger = logger.With(
		zap.String(logg.Signature, signature),
		zap.String(logg.Decision, decision.String()),
	)

	switch decision {
	case guard.Admitted:
		logger.Debug("Action admitted", zap.Int("turn", gate.State().TurnCount))

		return entity.Outcome{}, true
	case guard.RejectedTurnCeiling:
		logger.Warn("Turn limit reached")

		return entity.Fail(entity.OutcomeBlocked, nil, "Turn limit reached (%d).", gate.Limits().MaxTurns), false
	default:
		logger.Warn("Action rejected", zap.Int("repeat_count", gate.State().RepeatActionCount))

		return entity.Fail(entity.OutcomeBlocked, nil, "%s", blocked), false
	}
}

// finish records the outcome on the span and in the log.
func finish(logger *zap.Logger, step *tracing.Span, out entity.Outcome) {
	step.SetAttributes(attribute.String("outcome", string(out.Kind)))

	fields := []zap.Field{zap.String(logg.Outcome, string(out.Kind))}
	if out.Cause != nil {
		fields = append(fields, zap.Error(out.Cause))
	}

	msg := out.Message
	if msg == "" {
		msg = "Action completed"
	}

	if out.OK() {
		logger.Info(msg, fields...)
	} else {
		logger.Warn(msg, fields...)
	}

	step.End(out.Cause)
}

// settle waits d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
