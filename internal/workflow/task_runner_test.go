package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/fti/internal/environment"
	"github.com/tyemirov/fti/internal/execshell"
	"github.com/tyemirov/fti/internal/tasks"
	"github.com/tyemirov/fti/internal/workflow"
)

const (
	testRunIdentifierConstant   = "run-1234"
	testEnvironmentPathConstant = "/work/fingrid/.venv"
)

type recordedCommand struct {
	commandLine      []string
	workingDirectory string
	environment      map[string]string
}

type recordingExecutor struct {
	commands     []recordedCommand
	failAtCall   int
	failExitCode int
	onCall       func(call int)
}

func (executor *recordingExecutor) ExecuteArguments(_ context.Context, commandLine []string, workingDirectory string, environmentVariables map[string]string) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, recordedCommand{commandLine: commandLine, workingDirectory: workingDirectory, environment: environmentVariables})
	call := len(executor.commands)
	if executor.onCall != nil {
		executor.onCall(call)
	}
	if executor.failAtCall == call {
		result := execshell.ExecutionResult{ExitCode: executor.failExitCode}
		return result, execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandName(commandLine[0])},
			Result:  result,
		}
	}
	return execshell.ExecutionResult{}, nil
}

type countingGuard struct {
	calls  int
	result error
}

func (guard *countingGuard) Check(environment.State) error {
	guard.calls++
	return guard.result
}

func pipelineRegistry(testInstance *testing.T) *tasks.Registry {
	testInstance.Helper()
	registry, registryError := tasks.NewRegistry(
		tasks.Task{Name: "clean", Title: "Cleanup", Commands: []tasks.CommandSpec{{Command: []string{"uv", "run", "clean"}, WorkingDirectory: ".."}}},
		tasks.Task{Name: "backfill", Title: "Backfill Feature Pipeline", Commands: []tasks.CommandSpec{{Command: []string{"uv", "run", "backfill"}}}},
		tasks.Task{Name: "features", Title: "Daily Feature Pipeline", Commands: []tasks.CommandSpec{{Command: []string{"uv", "run", "features"}}}},
		tasks.Task{Name: "train", Title: "Training Pipeline", Commands: []tasks.CommandSpec{{Command: []string{"uv", "run", "train"}}}},
		tasks.Task{Name: "inference", Title: "Inference Pipeline", Commands: []tasks.CommandSpec{
			{Command: []string{"uv", "run", "features"}},
			{Command: []string{"uv", "run", "inference"}},
		}},
		tasks.Task{Name: "all", Prerequisites: []string{"backfill", "features", "train", "inference"}},
	)
	require.NoError(testInstance, registryError)
	return registry
}

type runnerFixture struct {
	runner   workflow.TaskRunner
	executor *recordingExecutor
	guard    *countingGuard
	output   *bytes.Buffer
	errors   *bytes.Buffer
	logs     *observer.ObservedLogs
}

func newRunnerFixture(testInstance *testing.T, lookup workflow.TaskLookup, executor *recordingExecutor, guard *countingGuard) runnerFixture {
	testInstance.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	fixture := runnerFixture{
		executor: executor,
		guard:    guard,
		output:   &bytes.Buffer{},
		errors:   &bytes.Buffer{},
		logs:     logs,
	}
	dependencies := workflow.Dependencies{
		Tasks:       lookup,
		Executor:    executor,
		Environment: environment.State{DirectoryPath: ".venv", ResolvedPath: testEnvironmentPathConstant, DirectoryExists: true},
		Logger:      zap.New(core),
		Output:      fixture.output,
		Errors:      fixture.errors,
	}
	if guard != nil {
		dependencies.Guard = guard
	}
	runner, runnerError := workflow.NewTaskRunner(dependencies)
	require.NoError(testInstance, runnerError)
	fixture.runner = runner
	return fixture
}

func TestNewTaskRunnerValidatesDependencies(testInstance *testing.T) {
	_, runnerError := workflow.NewTaskRunner(workflow.Dependencies{Executor: &recordingExecutor{}})
	require.ErrorIs(testInstance, runnerError, workflow.ErrTaskLookupNotConfigured)

	_, runnerError = workflow.NewTaskRunner(workflow.Dependencies{Tasks: mapTaskLookup{}})
	require.ErrorIs(testInstance, runnerError, workflow.ErrCommandExecutorNotConfigured)
}

func TestTaskRunnerRunsPlanInOrder(testInstance *testing.T) {
	fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, &countingGuard{})

	runError := fixture.runner.Run(context.Background(), "all", workflow.RunOptions{RunIdentifier: testRunIdentifierConstant})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, fixture.guard.calls)

	executed := make([]string, 0, len(fixture.executor.commands))
	for _, command := range fixture.executor.commands {
		executed = append(executed, strings.Join(command.commandLine, " "))
	}
	require.Equal(testInstance, []string{
		"uv run backfill",
		"uv run features",
		"uv run train",
		"uv run features",
		"uv run inference",
	}, executed)

	output := fixture.output.String()
	titles := []string{"Backfill Feature Pipeline", "Daily Feature Pipeline", "Training Pipeline", "Inference Pipeline"}
	previousIndex := -1
	for _, title := range titles {
		titleIndex := strings.Index(output, title)
		require.Greater(testInstance, titleIndex, previousIndex, title)
		previousIndex = titleIndex
	}
	require.NotContains(testInstance, output, " all ")
	require.Empty(testInstance, fixture.errors.String())
}

func TestTaskRunnerPassesWorkingDirectory(testInstance *testing.T) {
	fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, &countingGuard{})

	require.NoError(testInstance, fixture.runner.Run(context.Background(), "clean", workflow.RunOptions{}))
	require.Equal(testInstance, []recordedCommand{{commandLine: []string{"uv", "run", "clean"}, workingDirectory: ".."}}, fixture.executor.commands)
	require.Contains(testInstance, fixture.output.String(), "Cleanup")
}

func TestTaskRunnerPassesCommandEnvironment(testInstance *testing.T) {
	registry, registryError := tasks.NewRegistry(tasks.Task{
		Name: "train",
		Commands: []tasks.CommandSpec{
			{Command: []string{"uv", "run", "ipython", "notebooks/3 training.ipynb"}, Environment: map[string]string{"FTI_STAGE": "train"}},
			{Command: []string{"uv", "run", "report"}},
		},
	})
	require.NoError(testInstance, registryError)
	fixture := newRunnerFixture(testInstance, registry, &recordingExecutor{}, &countingGuard{})

	require.NoError(testInstance, fixture.runner.Run(context.Background(), "train", workflow.RunOptions{}))
	require.Len(testInstance, fixture.executor.commands, 2)
	require.Equal(testInstance, map[string]string{"FTI_STAGE": "train"}, fixture.executor.commands[0].environment)
	require.Nil(testInstance, fixture.executor.commands[1].environment)

	loggedCommands := make([]string, 0)
	for _, entry := range fixture.logs.All() {
		if commandLine, found := entry.ContextMap()["command"].(string); found {
			loggedCommands = append(loggedCommands, commandLine)
		}
	}
	require.Equal(testInstance, []string{`uv run ipython 'notebooks/3 training.ipynb'`, "uv run report"}, loggedCommands)
}

func TestTaskRunnerStopsAtFirstFailure(testInstance *testing.T) {
	for failingCall := 1; failingCall <= 5; failingCall++ {
		executor := &recordingExecutor{failAtCall: failingCall, failExitCode: 7}
		fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), executor, &countingGuard{})

		outcome, runError := fixture.runner.Execute(context.Background(), "all", workflow.RunOptions{})
		require.Error(testInstance, runError)
		require.Len(testInstance, executor.commands, failingCall)
		require.Equal(testInstance, failingCall, outcome.CommandsExecuted)
		require.Equal(testInstance, workflow.RunPhaseFailed, outcome.Phase)

		var failedError execshell.CommandFailedError
		require.True(testInstance, errors.As(runError, &failedError))
		require.Equal(testInstance, 7, failedError.ExitCode())
	}
}

func TestTaskRunnerGuardFailuresRunNothing(testInstance *testing.T) {
	guard := environment.NewGuard(environment.GuardConfig{})
	testCases := []struct {
		name             string
		state            environment.State
		expectedExitCode int
		expectedMessage  string
	}{
		{
			name:             "not_provisioned",
			state:            environment.State{DirectoryPath: ".venv", DirectoryExists: false},
			expectedExitCode: environment.ExitCodeNotProvisioned,
			expectedMessage:  "./setup-env.sh",
		},
		{
			name:             "not_active",
			state:            environment.State{DirectoryPath: ".venv", ResolvedPath: testEnvironmentPathConstant, DirectoryExists: true},
			expectedExitCode: environment.ExitCodeNotActive,
			expectedMessage:  "source .venv/bin/activate",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &recordingExecutor{}
			output := &bytes.Buffer{}
			errorOutput := &bytes.Buffer{}
			runner, runnerError := workflow.NewTaskRunner(workflow.Dependencies{
				Tasks:       pipelineRegistry(testInstance),
				Executor:    executor,
				Guard:       guard,
				Environment: testCase.state,
				Output:      output,
				Errors:      errorOutput,
			})
			require.NoError(testInstance, runnerError)

			runError := runner.Run(context.Background(), "all", workflow.RunOptions{})
			require.Error(testInstance, runError)
			require.Empty(testInstance, executor.commands)
			require.Empty(testInstance, output.String())
			require.Contains(testInstance, errorOutput.String(), testCase.expectedMessage)

			var remediation environment.RemediationError
			require.True(testInstance, errors.As(runError, &remediation))
			require.Equal(testInstance, testCase.expectedExitCode, remediation.ExitCode())
		})
	}
}

func TestTaskRunnerRejectsCycleBeforeExecution(testInstance *testing.T) {
	guard := &countingGuard{}
	fixture := newRunnerFixture(testInstance, buildLookup(stage("X", "Y"), stage("Y", "X")), &recordingExecutor{}, guard)

	runError := fixture.runner.Run(context.Background(), "X", workflow.RunOptions{})
	var cyclicError tasks.CyclicDependencyError
	require.True(testInstance, errors.As(runError, &cyclicError))
	require.Empty(testInstance, fixture.executor.commands)
	require.Zero(testInstance, guard.calls)
}

func TestTaskRunnerUnknownTask(testInstance *testing.T) {
	guard := &countingGuard{}
	fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, guard)

	runError := fixture.runner.Run(context.Background(), "bogus", workflow.RunOptions{})
	var unknownError workflow.UnknownTaskError
	require.True(testInstance, errors.As(runError, &unknownError))
	require.Equal(testInstance, workflow.ExitCodeUnknownTask, unknownError.ExitCode())
	require.Empty(testInstance, fixture.executor.commands)
	require.Zero(testInstance, guard.calls)
}

func TestTaskRunnerDryRunPrintsPlanOnly(testInstance *testing.T) {
	guard := &countingGuard{result: errors.New("guard must not run")}
	fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, guard)

	outcome, runError := fixture.runner.Execute(context.Background(), "inference", workflow.RunOptions{DryRun: true})
	require.NoError(testInstance, runError)
	require.Zero(testInstance, guard.calls)
	require.Empty(testInstance, fixture.executor.commands)
	require.Equal(testInstance, []string{"inference"}, outcome.PlannedTasks)
	require.Equal(testInstance, workflow.RunPhaseDone, outcome.Phase)
	require.Contains(testInstance, fixture.output.String(), `Execution plan for "inference":`)
	require.Contains(testInstance, fixture.output.String(), "1. inference")
}

func TestTaskRunnerSkipsGuardWhenDisabled(testInstance *testing.T) {
	fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, nil)

	require.NoError(testInstance, fixture.runner.Run(context.Background(), "train", workflow.RunOptions{}))
	require.Len(testInstance, fixture.executor.commands, 1)
}

func TestTaskRunnerInterruption(testInstance *testing.T) {
	testInstance.Run("cancelled_before_start", func(testInstance *testing.T) {
		fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, &countingGuard{})
		executionContext, cancel := context.WithCancel(context.Background())
		cancel()

		runError := fixture.runner.Run(executionContext, "all", workflow.RunOptions{})
		var interrupted workflow.InterruptedError
		require.True(testInstance, errors.As(runError, &interrupted))
		require.False(testInstance, interrupted.Started)
		require.Equal(testInstance, "backfill", interrupted.Task)
		require.Equal(testInstance, workflow.ExitCodeInterrupted, interrupted.ExitCode())
		require.ErrorIs(testInstance, runError, context.Canceled)
		require.Empty(testInstance, fixture.executor.commands)
	})

	testInstance.Run("cancelled_during_command", func(testInstance *testing.T) {
		executionContext, cancel := context.WithCancel(context.Background())
		defer cancel()
		executor := &recordingExecutor{failAtCall: 2, failExitCode: 143}
		executor.onCall = func(call int) {
			if call == 2 {
				cancel()
			}
		}
		fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), executor, &countingGuard{})

		runError := fixture.runner.Run(executionContext, "all", workflow.RunOptions{})
		var interrupted workflow.InterruptedError
		require.True(testInstance, errors.As(runError, &interrupted))
		require.True(testInstance, interrupted.Started)
		require.Equal(testInstance, "features", interrupted.Task)
		require.Len(testInstance, executor.commands, 2)
	})
}

func TestTaskRunnerLogsPhases(testInstance *testing.T) {
	fixture := newRunnerFixture(testInstance, pipelineRegistry(testInstance), &recordingExecutor{}, &countingGuard{})
	require.NoError(testInstance, fixture.runner.Run(context.Background(), "train", workflow.RunOptions{RunIdentifier: testRunIdentifierConstant}))

	phases := make([]string, 0)
	seen := map[string]bool{}
	for _, entry := range fixture.logs.All() {
		fields := entry.ContextMap()
		require.Equal(testInstance, testRunIdentifierConstant, fields["run_id"])
		phase, _ := fields["phase"].(string)
		if len(phase) == 0 || seen[phase] {
			continue
		}
		seen[phase] = true
		phases = append(phases, phase)
	}
	require.Equal(testInstance, []string{
		string(workflow.RunPhaseParsed),
		string(workflow.RunPhasePlanComputed),
		string(workflow.RunPhaseGuardChecked),
		string(workflow.RunPhaseExecuting),
		string(workflow.RunPhaseDone),
	}, phases)
}

func TestTaskRunnerOutcomeTiming(testInstance *testing.T) {
	start := time.Date(2025, time.March, 1, 6, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(90 * time.Second)}
	executor := &recordingExecutor{}
	runner, runnerError := workflow.NewTaskRunner(workflow.Dependencies{
		Tasks:    pipelineRegistry(testInstance),
		Executor: executor,
		Output:   &bytes.Buffer{},
		Clock: func() time.Time {
			current := ticks[0]
			if len(ticks) > 1 {
				ticks = ticks[1:]
			}
			return current
		},
	})
	require.NoError(testInstance, runnerError)

	outcome, runError := runner.Execute(context.Background(), "inference", workflow.RunOptions{})
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 90*time.Second, outcome.Duration)
	require.Equal(testInstance, []string{"inference"}, outcome.CompletedTasks)
	require.Equal(testInstance, 2, outcome.CommandsExecuted)
}
