package execshell

import (
	"fmt"
	"strings"
)

const (
	currentDirectoryDisplayConstant = "."
	startedMessageTemplate          = "Running %s"
	completedMessageTemplate        = "Completed %s"
	failedMessageTemplate           = "%s failed with exit code %d"
	executionFailedMessageTemplate  = "%s failed: %v"
	commandDescriptionTemplate      = "%s (in %s)"
)

// CommandMessageFormatter renders human-readable lifecycle messages for commands.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplate, formatter.describe(command))
}

// BuildSuccessMessage describes a command that exited with status zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return fmt.Sprintf(completedMessageTemplate, formatter.describe(command))
}

// BuildFailureMessage describes a command that exited with a non-zero status.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return fmt.Sprintf(failedMessageTemplate, formatter.describe(command), result.ExitCode)
}

// BuildExecutionFailureMessage describes a command that could not be run at all.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, cause error) string {
	return fmt.Sprintf(executionFailedMessageTemplate, formatter.describe(command), cause)
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) string {
	parts := make([]string, 0, len(command.Details.Arguments)+1)
	parts = append(parts, string(command.Name))
	parts = append(parts, command.Details.Arguments...)

	workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(workingDirectory) == 0 {
		workingDirectory = currentDirectoryDisplayConstant
	}
	return fmt.Sprintf(commandDescriptionTemplate, strings.Join(parts, " "), workingDirectory)
}
