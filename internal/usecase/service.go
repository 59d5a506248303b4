package usecase

import (
	"form-agent/internal/actions"
	"form-agent/internal/config"
	"form-agent/internal/ports"
	"form-agent/internal/usecase/adapters"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	Agent   adapters.AgentService
	Actions adapters.ActionService
}

type Params struct {
	fx.In

	Logger     *zap.Logger
	Config     *config.Config
	Browser    ports.BrowserManager
	AI         ports.AIClient
	Controller *actions.Controller
}

func NewUsecase(params Params) *Service {
	factory := newServiceFactory(params)
	actionService := factory.CreateActionService()

	return &Service{
		Agent:   factory.CreateAgentService(actionService),
		Actions: actionService,
	}
}
