package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/fti/internal/environment"
	"github.com/tyemirov/fti/internal/execshell"
	"github.com/tyemirov/fti/internal/tasks"
)

const (
	// ExitCodeInterrupted is returned when the run is cancelled by a signal.
	ExitCodeInterrupted = 130

	taskLookupNotConfiguredMessage      = "task runner requires a task lookup"
	commandExecutorNotConfiguredMessage = "task runner requires a command executor"
	interruptedErrorTemplate            = "interrupted while running task %q: %v"
	interruptedBeforeStartTemplate      = "interrupted before running task %q: %v"

	runPhaseMessage          = "task run phase"
	runIdentifierFieldName   = "run_id"
	requestedTaskFieldName   = "requested_task"
	phaseFieldName           = "phase"
	planFieldName            = "plan"
	taskFieldName            = "task"
	commandIndexFieldName    = "command_index"
	commandLineFieldName     = "command"
	commandsExecutedField    = "commands_executed"
	durationFieldName        = "duration"
	dryRunFieldName          = "dry_run"
	guardSkippedFieldName    = "guard_skipped"
	environmentPathFieldName = "environment_path"
)

var (
	// ErrTaskLookupNotConfigured indicates a runner without a task source.
	ErrTaskLookupNotConfigured = errors.New(taskLookupNotConfiguredMessage)
	// ErrCommandExecutorNotConfigured indicates a runner without an executor.
	ErrCommandExecutorNotConfigured = errors.New(commandExecutorNotConfiguredMessage)
)

// CommandExecutor runs one tokenized command line to completion.
type CommandExecutor interface {
	ExecuteArguments(executionContext context.Context, commandLine []string, workingDirectory string, environmentVariables map[string]string) (execshell.ExecutionResult, error)
}

// EnvironmentGuard validates the inspected environment before any command runs.
type EnvironmentGuard interface {
	Check(state environment.State) error
}

// Dependencies wires the collaborators of a TaskRunner.
type Dependencies struct {
	Tasks    TaskLookup
	Executor CommandExecutor
	// Guard is optional; a nil guard skips the environment check.
	Guard       EnvironmentGuard
	Environment environment.State
	Logger      *zap.Logger
	Output      io.Writer
	Errors      io.Writer
	Clock       func() time.Time
}

// RunOptions alters a single invocation.
type RunOptions struct {
	DryRun        bool
	RunIdentifier string
}

// InterruptedError reports a run cancelled by its context.
type InterruptedError struct {
	Task  string
	Cause error
	// Started is true when a command of Task had begun when the interruption arrived.
	Started bool
}

// Error implements the error interface.
func (interrupted InterruptedError) Error() string {
	if interrupted.Started {
		return fmt.Sprintf(interruptedErrorTemplate, interrupted.Task, interrupted.Cause)
	}
	return fmt.Sprintf(interruptedBeforeStartTemplate, interrupted.Task, interrupted.Cause)
}

// Unwrap exposes the context error.
func (interrupted InterruptedError) Unwrap() error {
	return interrupted.Cause
}

// ExitCode returns ExitCodeInterrupted.
func (InterruptedError) ExitCode() int {
	return ExitCodeInterrupted
}

// TaskRunner plans a requested task, checks the environment once and runs the plan sequentially.
type TaskRunner struct {
	dependencies Dependencies
	banners      BannerPrinter
}

// NewTaskRunner validates dependencies and applies defaults for optional collaborators.
func NewTaskRunner(dependencies Dependencies) (TaskRunner, error) {
	if dependencies.Tasks == nil {
		return TaskRunner{}, ErrTaskLookupNotConfigured
	}
	if dependencies.Executor == nil {
		return TaskRunner{}, ErrCommandExecutorNotConfigured
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Output == nil {
		dependencies.Output = os.Stdout
	}
	if dependencies.Errors == nil {
		dependencies.Errors = os.Stderr
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	return TaskRunner{
		dependencies: dependencies,
		banners:      NewBannerPrinter(dependencies.Output),
	}, nil
}

// Run executes the named task after its prerequisites. The first failing command stops
// the run and its error is returned unchanged.
func (runner TaskRunner) Run(executionContext context.Context, name string, options RunOptions) error {
	_, runError := runner.Execute(executionContext, name, options)
	return runError
}

// Execute behaves like Run and also reports what the run did.
func (runner TaskRunner) Execute(executionContext context.Context, name string, options RunOptions) (ExecutionOutcome, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	logger := runner.dependencies.Logger.With(zap.String(requestedTaskFieldName, name))
	if len(options.RunIdentifier) > 0 {
		logger = logger.With(zap.String(runIdentifierFieldName, options.RunIdentifier))
	}
	outcome := ExecutionOutcome{StartTime: runner.dependencies.Clock(), Phase: RunPhaseParsed}
	logger.Debug(runPhaseMessage, zap.String(phaseFieldName, string(RunPhaseParsed)), zap.Bool(dryRunFieldName, options.DryRun))

	plan, planError := PlanExecution(runner.dependencies.Tasks, name)
	if planError != nil {
		return runner.fail(logger, outcome, planError)
	}
	outcome.PlannedTasks = plan.Names()
	outcome.Phase = RunPhasePlanComputed
	logger.Info(runPhaseMessage, zap.String(phaseFieldName, string(RunPhasePlanComputed)), zap.Strings(planFieldName, outcome.PlannedTasks))

	if options.DryRun {
		runner.banners.PrintPlan(name, plan)
		return runner.succeed(logger, outcome)
	}

	if runner.dependencies.Guard != nil {
		if guardError := runner.dependencies.Guard.Check(runner.dependencies.Environment); guardError != nil {
			environment.Report(runner.dependencies.Errors, guardError)
			return runner.fail(logger, outcome, guardError)
		}
	}
	outcome.Phase = RunPhaseGuardChecked
	logger.Debug(runPhaseMessage,
		zap.String(phaseFieldName, string(RunPhaseGuardChecked)),
		zap.Bool(guardSkippedFieldName, runner.dependencies.Guard == nil),
		zap.String(environmentPathFieldName, runner.dependencies.Environment.ResolvedPath),
	)

	outcome.Phase = RunPhaseExecuting
	logger.Debug(runPhaseMessage, zap.String(phaseFieldName, string(RunPhaseExecuting)))

	for _, task := range plan.Tasks {
		if contextError := executionContext.Err(); contextError != nil {
			outcome.FailedTask = task.Name
			return runner.fail(logger, outcome, InterruptedError{Task: task.Name, Cause: contextError})
		}
		if taskError := runner.runTask(executionContext, logger, task, &outcome); taskError != nil {
			outcome.FailedTask = task.Name
			return runner.fail(logger, outcome, taskError)
		}
		outcome.CompletedTasks = append(outcome.CompletedTasks, task.Name)
	}

	return runner.succeed(logger, outcome)
}

func (runner TaskRunner) runTask(executionContext context.Context, logger *zap.Logger, task tasks.Task, outcome *ExecutionOutcome) error {
	if task.Composite() {
		return nil
	}
	runner.banners.Print(task.DisplayTitle())
	for commandIndex, command := range task.Commands {
		logger.Debug(runPhaseMessage,
			zap.String(phaseFieldName, string(RunPhaseExecuting)),
			zap.String(taskFieldName, task.Name),
			zap.Int(commandIndexFieldName, commandIndex+1),
			zap.String(commandLineFieldName, command.CommandLine()),
		)
		outcome.CommandsExecuted++
		_, executionError := runner.dependencies.Executor.ExecuteArguments(executionContext, command.Command, command.WorkingDirectory, command.Environment)
		if executionError == nil {
			continue
		}
		if contextError := executionContext.Err(); contextError != nil {
			return InterruptedError{Task: task.Name, Cause: contextError, Started: true}
		}
		return executionError
	}
	return nil
}

func (runner TaskRunner) succeed(logger *zap.Logger, outcome ExecutionOutcome) (ExecutionOutcome, error) {
	outcome.finish(RunPhaseDone, runner.dependencies.Clock())
	logger.Info(runPhaseMessage,
		zap.String(phaseFieldName, string(RunPhaseDone)),
		zap.Int(commandsExecutedField, outcome.CommandsExecuted),
		zap.Duration(durationFieldName, outcome.Duration),
	)
	return outcome, nil
}

func (runner TaskRunner) fail(logger *zap.Logger, outcome ExecutionOutcome, failure error) (ExecutionOutcome, error) {
	outcome.finish(RunPhaseFailed, runner.dependencies.Clock())
	logger.Warn(runPhaseMessage,
		zap.String(phaseFieldName, string(RunPhaseFailed)),
		zap.String(taskFieldName, outcome.FailedTask),
		zap.Int(commandsExecutedField, outcome.CommandsExecuted),
		zap.Duration(durationFieldName, outcome.Duration),
		zap.Error(failure),
	)
	return outcome, failure
}
