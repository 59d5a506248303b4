package usecase

import (
	"form-agent/internal/usecase/adapters"
)

type serviceFactory struct {
	deps Params
}

func newServiceFactory(deps Params) *serviceFactory {
	return &serviceFactory{
		deps: deps,
	}
}

func (f *serviceFactory) CreateActionService() adapters.ActionService {
	return f.deps.Controller
}

func (f *serviceFactory) CreateAgentService(actionService adapters.ActionService) adapters.AgentService {
	return NewAgentService(AgentServiceParams{
		Browser: f.deps.Browser,
		AI:      f.deps.AI,
		Actions: actionService,
		Config:  f.deps.Config,
		Logger:  f.deps.Logger,
	})
}
