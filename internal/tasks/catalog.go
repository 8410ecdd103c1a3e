package tasks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	commandErrorTemplate          = "task %q command %d: %w"
	environmentEntryErrorTemplate = "%w: %q"
	environmentAssignment         = "="
)

var (
	// ErrCommandLineEmpty indicates a catalog command without a program.
	ErrCommandLineEmpty = errors.New("command line is empty")
	// ErrEnvironmentEntryInvalid indicates an env entry that is not KEY=VALUE.
	ErrEnvironmentEntryInvalid = errors.New("environment entry must be KEY=VALUE")
)

// CommandDefinition is the configuration form of a CommandSpec.
type CommandDefinition struct {
	Run         string   `mapstructure:"run"`
	Directory   string   `mapstructure:"dir"`
	Environment []string `mapstructure:"env"`
}

// TaskDefinition is the configuration form of a Task.
type TaskDefinition struct {
	Name          string              `mapstructure:"name"`
	Description   string              `mapstructure:"description"`
	Title         string              `mapstructure:"title"`
	Commands      []CommandDefinition `mapstructure:"commands"`
	Prerequisites []string            `mapstructure:"pre"`
}

// DecodeCatalog converts configuration entries into tasks, splitting each command line
// with POSIX shell quoting rules. No shell is involved when the commands run.
func DecodeCatalog(definitions []TaskDefinition) ([]Task, error) {
	decoded := make([]Task, 0, len(definitions))
	for _, definition := range definitions {
		name := strings.TrimSpace(definition.Name)
		task := Task{
			Name:          name,
			Description:   strings.TrimSpace(definition.Description),
			Title:         strings.TrimSpace(definition.Title),
			Prerequisites: append([]string(nil), definition.Prerequisites...),
		}
		for commandIndex, commandDefinition := range definition.Commands {
			arguments, splitError := shellquote.Split(commandDefinition.Run)
			if splitError != nil {
				return nil, ConfigurationError{Cause: fmt.Errorf(commandErrorTemplate, name, commandIndex+1, splitError)}
			}
			if len(arguments) == 0 {
				return nil, ConfigurationError{Cause: fmt.Errorf(commandErrorTemplate, name, commandIndex+1, ErrCommandLineEmpty)}
			}
			environment, environmentError := parseEnvironment(commandDefinition.Environment)
			if environmentError != nil {
				return nil, ConfigurationError{Cause: fmt.Errorf(commandErrorTemplate, name, commandIndex+1, environmentError)}
			}
			task.Commands = append(task.Commands, CommandSpec{
				Command:          arguments,
				WorkingDirectory: strings.TrimSpace(commandDefinition.Directory),
				Environment:      environment,
			})
		}
		decoded = append(decoded, task)
	}
	return decoded, nil
}

// parseEnvironment keeps entries as a list because configuration keys are case-folded.
func parseEnvironment(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	environment := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, environmentAssignment)
		key = strings.TrimSpace(key)
		if !found || len(key) == 0 || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf(environmentEntryErrorTemplate, ErrEnvironmentEntryInvalid, entry)
		}
		environment[key] = value
	}
	return environment, nil
}

// BuildRegistry decodes the catalog, registers every task in declaration order and validates the graph.
func BuildRegistry(definitions []TaskDefinition) (*Registry, error) {
	decoded, decodeError := DecodeCatalog(definitions)
	if decodeError != nil {
		return nil, decodeError
	}
	return NewRegistry(decoded...)
}

// CommandLine renders a command back into a single shell-quoted line.
func (command CommandSpec) CommandLine() string {
	return shellquote.Join(command.Command...)
}
