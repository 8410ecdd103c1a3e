package cli

import (
	"fmt"

	"github.com/tyemirov/fti/internal/environment"
	"github.com/tyemirov/fti/internal/tasks"
)

const (
	configurationLoadFailureTemplateConstant = "unable to load configuration: %v"
	environmentInspectionFailureTemplate     = "unable to inspect virtual environment: %v"
)

// ApplicationConfiguration describes the persisted configuration for the fti CLI.
type ApplicationConfiguration struct {
	Common      ApplicationCommonConfiguration      `mapstructure:"common"`
	Environment ApplicationEnvironmentConfiguration `mapstructure:"environment"`
	Tasks       []tasks.TaskDefinition              `mapstructure:"tasks"`
}

// ApplicationCommonConfiguration stores logging and execution defaults.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DryRun    bool   `mapstructure:"dry_run"`
}

// ApplicationEnvironmentConfiguration controls the virtual environment guard.
type ApplicationEnvironmentConfiguration struct {
	Enabled                   bool   `mapstructure:"enabled"`
	Directory                 string `mapstructure:"directory"`
	IndicatorVariable         string `mapstructure:"indicator_variable"`
	SetupCommand              string `mapstructure:"setup_command"`
	ActivationCommandTemplate string `mapstructure:"activation_command_template"`
}

// InspectionConfiguration converts the section into inspection settings.
func (configuration ApplicationEnvironmentConfiguration) InspectionConfiguration() environment.InspectConfig {
	return environment.InspectConfig{
		Directory:         configuration.Directory,
		IndicatorVariable: configuration.IndicatorVariable,
	}
}

// GuardConfiguration converts the section into guard settings.
func (configuration ApplicationEnvironmentConfiguration) GuardConfiguration() environment.GuardConfig {
	return environment.GuardConfig{
		SetupCommand:              configuration.SetupCommand,
		ActivationCommandTemplate: configuration.ActivationCommandTemplate,
	}
}

type configurationInitializationPlan struct {
	DirectoryPath string
	FilePath      string
}

// ConfigurationLoadError reports configuration that could not be read or decoded.
type ConfigurationLoadError struct {
	Cause error
}

// Error implements the error interface.
func (loadError ConfigurationLoadError) Error() string {
	return fmt.Sprintf(configurationLoadFailureTemplateConstant, loadError.Cause)
}

// Unwrap exposes the underlying cause.
func (loadError ConfigurationLoadError) Unwrap() error {
	return loadError.Cause
}

// ExitCode classifies unreadable configuration as a configuration defect.
func (ConfigurationLoadError) ExitCode() int {
	return tasks.ExitCodeConfigurationDefect
}

// EnvironmentInspectionError reports a configured environment directory that cannot be examined,
// for example because a parent path component is a regular file.
type EnvironmentInspectionError struct {
	Cause error
}

// Error implements the error interface.
func (inspectionError EnvironmentInspectionError) Error() string {
	return fmt.Sprintf(environmentInspectionFailureTemplate, inspectionError.Cause)
}

// Unwrap exposes the underlying cause.
func (inspectionError EnvironmentInspectionError) Unwrap() error {
	return inspectionError.Cause
}

// ExitCode classifies the failure as a configuration defect.
func (EnvironmentInspectionError) ExitCode() int {
	return tasks.ExitCodeConfigurationDefect
}
