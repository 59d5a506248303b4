package adapters

import (
	"context"
	"form-agent/internal/entity"
	"form-agent/internal/guard"
)

// ActionService executes one planner decision under the session's gate.
type ActionService interface {
	Dispatch(ctx context.Context, gate *guard.Gate, action entity.PlannedAction) entity.Outcome
}

type AgentService interface {
	Execute(ctx context.Context, taskDescription string) (*entity.Task, error)
	Stop()
}
