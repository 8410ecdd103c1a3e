package execshell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultTerminationGracePeriod bounds how long a cancelled child may take to exit before it is killed.
	DefaultTerminationGracePeriod = 10 * time.Second
	signalExitCodeOffsetConstant  = 128
)

// OSCommandRunnerOptions configures the process-backed runner.
type OSCommandRunnerOptions struct {
	Output                 io.Writer
	Errors                 io.Writer
	Input                  io.Reader
	BaseDirectory          string
	TerminationGracePeriod time.Duration
}

// OSCommandRunner spawns real processes whose output streams go straight to the configured writers.
type OSCommandRunner struct {
	output                 io.Writer
	errorOutput            io.Writer
	input                  io.Reader
	baseDirectory          string
	terminationGracePeriod time.Duration
}

// NewOSCommandRunner constructs a runner that inherits the caller's standard streams unless overridden.
func NewOSCommandRunner(options OSCommandRunnerOptions) *OSCommandRunner {
	runner := &OSCommandRunner{
		output:                 options.Output,
		errorOutput:            options.Errors,
		input:                  options.Input,
		baseDirectory:          strings.TrimSpace(options.BaseDirectory),
		terminationGracePeriod: options.TerminationGracePeriod,
	}
	if runner.output == nil {
		runner.output = os.Stdout
	}
	if runner.errorOutput == nil {
		runner.errorOutput = os.Stderr
	}
	if runner.input == nil {
		runner.input = os.Stdin
	}
	if runner.terminationGracePeriod <= 0 {
		runner.terminationGracePeriod = DefaultTerminationGracePeriod
	}
	return runner
}

// Run blocks until the command exits. A non-zero exit is reported through the result, not the error.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = runner.resolveWorkingDirectory(command.Details.WorkingDirectory)
	process.Stdout = runner.output
	process.Stderr = runner.errorOutput
	process.Stdin = runner.input
	process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	process.Cancel = func() error {
		return process.Process.Signal(syscall.SIGTERM)
	}
	process.WaitDelay = runner.terminationGracePeriod

	runError := process.Run()
	if runError == nil {
		return ExecutionResult{ExitCode: 0}, nil
	}

	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		return ExecutionResult{ExitCode: exitCodeFromState(exitError)}, nil
	}

	return ExecutionResult{}, runError
}

func (runner *OSCommandRunner) resolveWorkingDirectory(workingDirectory string) string {
	trimmedDirectory := strings.TrimSpace(workingDirectory)
	if len(trimmedDirectory) == 0 {
		return runner.baseDirectory
	}
	if filepath.IsAbs(trimmedDirectory) || len(runner.baseDirectory) == 0 {
		return trimmedDirectory
	}
	return filepath.Join(runner.baseDirectory, trimmedDirectory)
}

func exitCodeFromState(exitError *exec.ExitError) int {
	exitCode := exitError.ExitCode()
	if exitCode >= 0 {
		return exitCode
	}
	if waitStatus, ok := exitError.Sys().(syscall.WaitStatus); ok && waitStatus.Signaled() {
		return signalExitCodeOffsetConstant + int(waitStatus.Signal())
	}
	return 1
}

func mergeEnvironment(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if _, overridden := overrides[key]; overridden {
			continue
		}
		merged = append(merged, entry)
	}
	for key, value := range overrides {
		merged = append(merged, key+"="+value)
	}
	return merged
}
