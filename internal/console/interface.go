package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/internal/usecase"
	"form-agent/pkg/apperr"
	"form-agent/pkg/logg"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const separator = "──────────────────────────────────────────────────"

var errExit = errors.New("exit")

type Interface struct {
	config     *config.Config
	logger     *zap.Logger
	usecase    *usecase.Service
	shutdowner fx.Shutdowner
	in         io.Reader
	out        io.Writer

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stopping bool
	sigChan  chan os.Signal
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Usecase    *usecase.Service
	Shutdowner fx.Shutdowner
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, "Console")),
		usecase:    params.Usecase,
		shutdowner: params.Shutdowner,
		in:         os.Stdin,
		out:        os.Stdout,
		ctx:        ctx,
		cancel:     cancel,
		sigChan:    make(chan os.Signal, 1),
	}
}

// Start prints the banner, installs the interrupt handler and reads tasks
// until exit or end of input. It blocks.
func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	signal.Notify(i.sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-i.sigChan:
			fmt.Fprintln(i.out, "\n\n⚠️  Interrupt received, stopping task...")
			i.requestShutdown()
		case <-i.ctx.Done():
		}
	}()

	return i.run()
}

func (i *Interface) run() error {
	scanner := bufio.NewScanner(i.in)

	for !i.isStopping() {
		fmt.Fprint(i.out, "\n> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if errors.Is(err, errExit) {
				break
			}

			i.logger.Error("Command error", zap.Error(err))
			fmt.Fprintf(i.out, "Error: %v\n", err)
		}
	}

	i.requestShutdown()

	return scanner.Err()
}

// Stop cancels the running task and releases the interrupt handler. It is
// safe to call more than once.
func (i *Interface) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stopping {
		return nil
	}

	i.stopping = true
	i.logger.Info("Stopping console interface...")

	signal.Stop(i.sigChan)
	i.cancel()
	i.usecase.Agent.Stop()

	fmt.Fprintln(i.out, "👋 Goodbye!")

	return nil
}

func (i *Interface) isStopping() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.stopping
}

// requestShutdown stops the console and asks fx to tear the app down, which
// closes the browser in its OnStop hook.
func (i *Interface) requestShutdown() {
	if i.isStopping() {
		return
	}

	if err := i.Stop(); err != nil {
		i.logger.Error("Failed to stop console", zap.Error(err))
	}

	if err := i.shutdowner.Shutdown(); err != nil {
		i.logger.Error("Failed to request shutdown", zap.Error(err))
	}
}

func (i *Interface) handleCommand(input string) error {
	switch input {
	case "help", "h":
		i.printHelp()

		return nil
	case "exit", "quit", "q":
		fmt.Fprintln(i.out, "Shutting down...")

		return errExit
	default:
		return i.executeTask(input)
	}
}

func (i *Interface) executeTask(taskDescription string) error {
	fmt.Fprintf(i.out, "\n🤖 Starting task: %s\n", taskDescription)
	fmt.Fprintln(i.out, separator)

	task, err := i.usecase.Agent.Execute(i.ctx, taskDescription)

	fmt.Fprintln(i.out, "\n"+separator)

	if task == nil {
		fmt.Fprintf(i.out, "❌ Task failed: %v\n", err)

		return nil
	}

	i.printSummary(task)

	if task.Status == entity.TaskStatusCompleted {
		fmt.Fprintf(i.out, "\n✅ Final Result: %s\n", task.Result)

		return nil
	}

	reason := task.Error
	if code := apperr.CodeOf(err); code != "" {
		reason = fmt.Sprintf("%s (%s)", reason, code)
	}

	fmt.Fprintf(i.out, "\n❌ Automation failed: %s\n", reason)

	return nil
}

func (i *Interface) printSummary(task *entity.Task) {
	fmt.Fprintln(i.out, "\nAUTOMATION SUMMARY:")
	fmt.Fprintf(i.out, "- Turns used: %d/%d\n", task.TurnsUsed, task.MaxTurns)
	fmt.Fprintf(i.out, "- Screenshots taken: %d/%d\n", task.ScreenshotsTaken, task.MaxScreenshots)
	fmt.Fprintf(i.out, "- Actions attempted: %d\n", len(task.Steps))
}

func (i *Interface) printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║              📝  Form Automation Agent  🌐                ║
║                                                           ║
║   Fills and submits web forms, one validated field at a   ║
║   time, inside a bounded number of turns.                 ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Fprintln(i.out, banner)
}

func (i *Interface) printHelp() {
	a := i.config.AutomationConfig

	help := fmt.Sprintf(`
Available commands:
  help, h       - Show this help message
  exit, quit, q - Exit the application

To start a task, describe the form and the data to enter:
  Examples:
    - Open https://example.com/signup and register First Name: Jane, Last Name: Doe,
      Email: jane@example.com, Password: s3cret!
    - Fill the contact form at https://example.com/contact with my phone 555-0100

Each task is limited to %d turns and %d screenshots.
`, a.MaxTurns, a.MaxScreenshots)

	fmt.Fprintln(i.out, help)
}
