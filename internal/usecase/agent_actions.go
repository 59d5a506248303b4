package usecase

import (
	"context"
	"fmt"
	"form-agent/internal/entity"
	"form-agent/internal/guard"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxResultPreview = 300

func (s *AgentService) handleAction(
	ctx context.Context,
	task *entity.Task,
	gate *guard.Gate,
	action *entity.PlannedAction,
) (outcome entity.Outcome) {
	const op = "handleAction"
	logger := s.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.TaskID, task.ID.String()),
		zap.String(logg.Action, string(action.Name)),
	)

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op,
		attribute.String("action", string(action.Name)))
	defer func() {
		step.End(outcome.Cause)
	}()

	taskStep := entity.Step{
		ID:        uuid.New(),
		Action:    action.Name,
		Timestamp: time.Now(),
	}

	fmt.Fprintf(s.out, "🎬 Action: %s %s\n", action.Name, formatActionDescription(action))

	outcome = s.actions.Dispatch(ctx, gate, *action)

	taskStep.Signature = gate.State().LastAction
	taskStep.Kind = outcome.Kind
	taskStep.Success = outcome.OK()
	taskStep.Message = outcome.Text()
	task.Steps = append(task.Steps, taskStep)

	logger.Debug("Action finished",
		zap.String(logg.StepID, taskStep.ID.String()),
		zap.String(logg.Outcome, string(outcome.Kind)),
		zap.String("phase", string(gate.Phase())),
	)

	mark := "✓"
	if !outcome.OK() {
		mark = "✗"
	}

	fmt.Fprintf(s.out, "   %s %s\n", mark, truncateText(outcome.Text(), maxResultPreview))

	return outcome
}

// assistantMessage replays the planner's turn verbatim so that the following
// tool result can refer to its tool_use block.
func assistantMessage(response *entity.AIResponse) entity.AIMessage {
	if len(response.Content) > 0 {
		return entity.AIMessage{Role: "assistant", Content: response.Content}
	}

	return entity.AIMessage{Role: "assistant", Content: response.Thought}
}

func toolResultMessage(toolUseID string, outcome entity.Outcome) entity.AIMessage {
	if toolUseID == "" {
		return entity.AIMessage{Role: "user", Content: outcome.Text()}
	}

	return entity.AIMessage{
		Role: "user",
		Content: []entity.MessageContent{
			{
				Type:      "tool_result",
				ToolUseID: toolUseID,
				Content:   outcome.Text(),
				IsError:   outcome.Kind == entity.OutcomeFailed,
			},
		},
	}
}

func formatActionDescription(action *entity.PlannedAction) string {
	switch action.Name {
	case entity.ActionNavigate:
		return action.URL
	case entity.ActionFill:
		if action.CustomSelector != "" {
			return fmt.Sprintf("%s (%s) = %q", action.Role, action.CustomSelector, action.Value)
		}

		return fmt.Sprintf("%s = %q", action.Role, action.Value)
	case entity.ActionClick:
		return fmt.Sprintf("%q", action.ButtonText)
	case entity.ActionValidate:
		return fmt.Sprintf("%s == %q", action.Role, action.ExpectedValue)
	case entity.ActionScroll:
		return fmt.Sprintf("%s %d", action.Direction, action.Amount)
	case entity.ActionScreenshot:
		return action.Reason
	default:
		return ""
	}
}

func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	return text[:maxLen] + "..."
}

func buildSystemPrompt(taskDescription string, limits guard.Limits) string {
	var prompt strings.Builder

	prompt.WriteString("You are a sequential form automation agent. Fill ONE field at a time and validate each field before proceeding.\n\n")
	prompt.WriteString(fmt.Sprintf("Task: %s\n\n", taskDescription))

	prompt.WriteString(`STRICT SEQUENTIAL WORKFLOW:
1. Navigate to the URL using 'open_url'
2. Analyze the page structure with 'analyze_page_structure'
3. Take an initial screenshot for reference
4. Fill fields ONE AT A TIME, validating each one right after filling it:
   firstName, lastName, email, password, confirmPassword
5. After all fields are filled and validated, scroll down to make the "Create Account" button visible
6. Click the submit button using 'smart_click_button'
7. Call 'complete_task' with a short report of what happened

CRITICAL RULES:
- Use ONLY ONE tool call per response
- NEVER fill multiple fields in one turn
- If validation fails, retry filling that same field
- Extract user data from the task: First Name, Last Name, Email, Password
- For confirmPassword, use the same value as password
- Take screenshots only when there are issues
- Repeating an identical action more than twice is blocked; change approach instead
`)

	prompt.WriteString(fmt.Sprintf("\nLimits: %d turns, %d screenshots.", limits.MaxTurns, limits.MaxScreenshots))

	return prompt.String()
}
