package usecase

import (
	"context"
	"errors"
	"fmt"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/internal/guard"
	"form-agent/internal/ports"
	"form-agent/internal/usecase/adapters"
	"form-agent/pkg/apperr"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	agentServiceName     = "AgentService"
	agentTracer          = "usecase.agent"
	maxConsecutiveErrors = 3
)

var _ adapters.AgentService = (*AgentService)(nil)

// AgentService runs one automation session per Execute call: it asks the
// planner for the next action, runs it through the action service under a
// fresh guard.Gate and feeds the outcome back, until the planner completes
// or a ceiling is hit.
type AgentService struct {
	config         *config.Config
	logger         *zap.Logger
	browser        ports.BrowserManager
	ai             ports.AIClient
	actions        adapters.ActionService
	tracer         trace.Tracer
	out            io.Writer
	retryDelay     time.Duration
	iterationPause time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

type AgentServiceParams struct {
	fx.In

	Config  *config.Config
	Logger  *zap.Logger
	Browser ports.BrowserManager
	AI      ports.AIClient
	Actions adapters.ActionService
}

func NewAgentService(params AgentServiceParams) *AgentService {
	return &AgentService{
		config:         params.Config,
		logger:         params.Logger.With(zap.String(logg.Layer, agentServiceName)),
		browser:        params.Browser,
		ai:             params.AI,
		actions:        params.Actions,
		tracer:         otel.Tracer(agentTracer),
		out:            os.Stdout,
		retryDelay:     2 * time.Second,
		iterationPause: 500 * time.Millisecond,
		stopChan:       make(chan struct{}),
	}
}

func (s *AgentService) limits() guard.Limits {
	a := s.config.AutomationConfig

	return guard.Limits{
		MaxTurns:       a.MaxTurns,
		MaxScreenshots: a.MaxScreenshots,
		MaxRepeats:     a.MaxRepeats,
	}
}

func (s *AgentService) Execute(ctx context.Context, taskDescription string) (task *entity.Task, err error) {
	const op = "Execute"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("task_description", taskDescription))
	defer func() {
		step.End(err)
	}()

	if taskDescription == "" {
		return nil, apperr.InvalidReqError(op, "task_description", errors.New("task description cannot be empty"))
	}

	limits := s.limits()
	gate := guard.NewGate(limits)

	task = &entity.Task{
		ID:             uuid.New(),
		Description:    taskDescription,
		Status:         entity.TaskStatusInProgress,
		CreatedAt:      time.Now(),
		Steps:          make([]entity.Step, 0),
		MaxTurns:       limits.MaxTurns,
		MaxScreenshots: limits.MaxScreenshots,
	}

	logger = logger.With(zap.String(logg.TaskID, task.ID.String()))
	step.AddEvent("task created", attribute.String("task_id", task.ID.String()))

	defer func() {
		state := gate.State()
		task.TurnsUsed = state.TurnCount
		task.ScreenshotsTaken = state.ScreenshotCount
		step.SetAttributes(
			attribute.Int("turns_used", state.TurnCount),
			attribute.Int("screenshots_taken", state.ScreenshotCount),
		)
	}()

	if !s.browser.IsReady() {
		task.Status = entity.TaskStatusFailed
		task.Error = "browser is not ready"

		return task, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	stop := s.begin()
	defer s.end()

	messages := []entity.AIMessage{
		{
			Role:    "user",
			Content: buildSystemPrompt(taskDescription, limits),
		},
	}

	iteration := 0
	consecutiveErrors := 0

	for iteration < limits.MaxTurns {
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\n⚠️  Task cancelled")
			s.fail(task, "context cancelled")

			return task, apperr.Wrap(op, apperr.CodeCancelledByUser, ctx.Err(), map[string]any{
				apperr.MetaReason: "context_cancelled",
			})
		case <-stop:
			fmt.Fprintln(s.out, "\n⚠️  Task stopped by user")
			s.fail(task, "stopped by user")

			return task, apperr.WrapErrorWithReason(op, apperr.CodeCancelledByUser, "stopped_by_user")
		default:
		}

		iteration++
		fmt.Fprintf(s.out, "\n🔄 Turn %d/%d: ", iteration, limits.MaxTurns)

		step.AddEvent("sending message to AI", attribute.Int("iteration", iteration))

		response, err := s.ai.SendMessage(ctx, messages)
		if err != nil {
			logger.Error("AI request failed", zap.Error(err))
			consecutiveErrors++

			if consecutiveErrors >= maxConsecutiveErrors {
				s.fail(task, fmt.Sprintf("too many AI errors: %v", err))

				return task, apperr.Wrap(op, apperr.CodeAIError, err, map[string]any{
					apperr.MetaReason: "too_many_ai_errors",
					apperr.MetaStage:  apperr.StageAI,
				})
			}

			_ = sleepCtx(ctx, s.retryDelay)

			continue
		}

		if response.Thought != "" {
			fmt.Fprintln(s.out, response.Thought)
		}

		if response.Complete {
			fmt.Fprintf(s.out, "✅ Task completed: %s\n", response.Result)
			task.Status = entity.TaskStatusCompleted
			task.Result = response.Result
			completedAt := time.Now()
			task.CompletedAt = &completedAt
			step.AddEvent("task completed")

			return task, nil
		}

		if response.Action == nil {
			logger.Warn("Planner answered without an action")
			consecutiveErrors++

			messages = append(messages,
				assistantMessage(response),
				entity.AIMessage{Role: "user", Content: "Continue with exactly one tool call."},
			)

			if consecutiveErrors >= maxConsecutiveErrors {
				s.fail(task, "planner stopped choosing actions")

				return task, apperr.WrapErrorWithReason(op, apperr.CodeAIError, "no_action")
			}

			continue
		}

		outcome := s.handleAction(ctx, task, gate, response.Action)
		messages = append(messages, assistantMessage(response), toolResultMessage(response.ToolUseID, outcome))

		if outcome.Kind == entity.OutcomeFailed {
			consecutiveErrors++

			if consecutiveErrors >= maxConsecutiveErrors {
				s.fail(task, fmt.Sprintf("too many consecutive action errors: %s", outcome.Message))

				return task, apperr.Wrap(op, apperr.CodeActionFailed, outcome.Cause, map[string]any{
					apperr.MetaReason: "too_many_action_errors",
					apperr.MetaStage:  apperr.StageInteraction,
				})
			}
		} else {
			consecutiveErrors = 0
		}

		if gate.Exhausted() {
			fmt.Fprintf(s.out, "\n⛔ Turn limit reached (%d)\n", limits.MaxTurns)
			s.fail(task, "turn limit reached")

			return task, apperr.WrapErrorWithReason(op, apperr.CodeTurnCeiling, "turn_limit_reached")
		}

		_ = sleepCtx(ctx, s.iterationPause)
	}

	s.fail(task, "max iterations reached")

	return task, apperr.WrapErrorWithReason(op, apperr.CodeMaxIterations, "max_iterations_reached")
}

func (s *AgentService) Stop() {
	const op = "Stop"
	logger := s.logger.With(zap.String(logg.Operation, op))

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	logger.Info("Stopping agent...")

	s.running = false
	close(s.stopChan)
}

// begin marks a session as running and returns its stop channel.
func (s *AgentService) begin() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopChan = make(chan struct{})
	s.running = true

	return s.stopChan
}

func (s *AgentService) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
}

func (s *AgentService) fail(task *entity.Task, reason string) {
	task.Status = entity.TaskStatusFailed
	task.Error = reason
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
