package environment

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// ExitCodeNotActive is returned when the environment exists but is not the active one.
	ExitCodeNotActive = 1
	// ExitCodeNotProvisioned is returned when the environment directory is missing.
	ExitCodeNotProvisioned = 2
	// DefaultSetupCommand provisions the environment.
	DefaultSetupCommand = "./setup-env.sh"
	// DefaultActivationCommandTemplate receives the environment directory.
	DefaultActivationCommandTemplate = "source %s/bin/activate"

	notProvisionedErrorTemplate  = "virtual environment %s not found"
	notActiveErrorTemplate       = "virtual environment %s is not active (%s=%q)"
	notProvisionedHeadline       = "There is no virtual environment. Did you run the setup step yet?"
	notProvisionedActionTemplate = "  -> %s"
	notActiveHeadline            = "Virtual environment is NOT active."
	notActiveActionHeadline      = "Activate it with:"
	notActiveActionTemplate      = "   %s"
)

// GuardConfig describes the remediation advice printed on failure.
type GuardConfig struct {
	SetupCommand              string
	ActivationCommandTemplate string
}

// RemediationError is implemented by guard failures that carry user-facing advice.
type RemediationError interface {
	error
	ExitCode() int
	Remediation() []string
}

// NotProvisionedError reports a missing environment directory.
type NotProvisionedError struct {
	State        State
	SetupCommand string
}

// Error implements the error interface.
func (notProvisioned NotProvisionedError) Error() string {
	return fmt.Sprintf(notProvisionedErrorTemplate, notProvisioned.State.DirectoryPath)
}

// ExitCode returns ExitCodeNotProvisioned.
func (notProvisioned NotProvisionedError) ExitCode() int {
	return ExitCodeNotProvisioned
}

// Remediation returns the lines guiding the user to the setup step.
func (notProvisioned NotProvisionedError) Remediation() []string {
	return []string{
		notProvisionedHeadline,
		fmt.Sprintf(notProvisionedActionTemplate, notProvisioned.SetupCommand),
	}
}

// NotActiveError reports an environment that exists but is not activated in the caller's shell.
type NotActiveError struct {
	State             State
	ActivationCommand string
}

// Error implements the error interface.
func (notActive NotActiveError) Error() string {
	return fmt.Sprintf(notActiveErrorTemplate, notActive.State.DirectoryPath, notActive.State.IndicatorVariable, notActive.State.ActiveIndicator)
}

// ExitCode returns ExitCodeNotActive.
func (notActive NotActiveError) ExitCode() int {
	return ExitCodeNotActive
}

// Remediation returns the exact activation command.
func (notActive NotActiveError) Remediation() []string {
	return []string{
		notActiveHeadline,
		"",
		notActiveActionHeadline,
		fmt.Sprintf(notActiveActionTemplate, notActive.ActivationCommand),
	}
}

// Guard verifies environment preconditions before any task body runs.
type Guard struct {
	setupCommand              string
	activationCommandTemplate string
}

// NewGuard constructs a Guard, applying defaults for blank configuration values.
func NewGuard(config GuardConfig) Guard {
	guard := Guard{
		setupCommand:              strings.TrimSpace(config.SetupCommand),
		activationCommandTemplate: strings.TrimSpace(config.ActivationCommandTemplate),
	}
	if len(guard.setupCommand) == 0 {
		guard.setupCommand = DefaultSetupCommand
	}
	if len(guard.activationCommandTemplate) == 0 {
		guard.activationCommandTemplate = DefaultActivationCommandTemplate
	}
	return guard
}

// Check returns nil when the environment is provisioned and active.
func (guard Guard) Check(state State) error {
	if !state.DirectoryExists {
		return NotProvisionedError{State: state, SetupCommand: guard.setupCommand}
	}
	if !state.Active() {
		return NotActiveError{State: state, ActivationCommand: guard.ActivationCommand(state)}
	}
	return nil
}

// ActivationCommand renders the activation command for the inspected directory.
func (guard Guard) ActivationCommand(state State) string {
	if !strings.Contains(guard.activationCommandTemplate, "%s") {
		return guard.activationCommandTemplate
	}
	return fmt.Sprintf(guard.activationCommandTemplate, state.DirectoryPath)
}

// Report writes the remediation advice for guardError, returning false when it carries none.
func Report(writer io.Writer, guardError error) bool {
	var remediation RemediationError
	if writer == nil || !errors.As(guardError, &remediation) {
		return false
	}
	for _, line := range remediation.Remediation() {
		fmt.Fprintln(writer, line)
	}
	return true
}
