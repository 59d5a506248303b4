package bootstrap

import (
	"form-agent/internal/actions"
	"form-agent/internal/ai"
	"form-agent/internal/config"
	"form-agent/internal/console"
	"form-agent/internal/ports"
	"form-agent/internal/usecase"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Options is the application graph without the fx runtime settings, so it
// can be validated on its own.
func Options() fx.Option {
	return fx.Options(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			newBrowserManager,
			fx.Annotate(ai.NewClient, fx.As(new(ports.AIClient))),

			actions.NewController,
			usecase.NewUsecase,

			console.NewInterface,
		),

		fx.Invoke(
			// forces the provider, and with it the global tracer, into existence
			func(*sdktrace.TracerProvider) {},
			runConsole,
		),
	)
}

func NewApp() *fx.App {
	return fx.New(
		Options(),

		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),

		// the first launch may download the browser
		fx.StartTimeout(2*time.Minute),
	)
}
