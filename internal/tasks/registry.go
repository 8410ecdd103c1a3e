package tasks

import (
	"errors"
	"fmt"
	"strings"
)

const (
	taskNameMissingMessage      = "task name not provided"
	duplicateTaskTemplate       = "task %q defined multiple times"
	unknownPrerequisiteTemplate = "task %q depends on unknown task %q"
	selfPrerequisiteTemplate    = "task %q cannot depend on itself"
	emptyCommandTemplate        = "task %q command %d is empty"
	configurationErrorTemplate  = "invalid task catalog: %v"
	cyclicDependencyTemplate    = "task dependencies contain cycle: %s"
	cycleSeparator              = " -> "

	// ExitCodeConfigurationDefect is returned when the task catalog cannot be built.
	ExitCodeConfigurationDefect = 4
)

// ErrTaskNameMissing indicates a task without a name.
var ErrTaskNameMissing = errors.New(taskNameMissingMessage)

// DuplicateTaskError reports a task name registered twice.
type DuplicateTaskError struct {
	Name string
}

// Error implements the error interface.
func (duplicate DuplicateTaskError) Error() string {
	return fmt.Sprintf(duplicateTaskTemplate, duplicate.Name)
}

// UnknownPrerequisiteError reports a prerequisite that names no registered task.
type UnknownPrerequisiteError struct {
	Task         string
	Prerequisite string
}

// Error implements the error interface.
func (unknown UnknownPrerequisiteError) Error() string {
	return fmt.Sprintf(unknownPrerequisiteTemplate, unknown.Task, unknown.Prerequisite)
}

// CyclicDependencyError reports a prerequisite cycle. Cycle starts and ends with the same task.
type CyclicDependencyError struct {
	Cycle []string
}

// Error implements the error interface.
func (cyclic CyclicDependencyError) Error() string {
	return fmt.Sprintf(cyclicDependencyTemplate, strings.Join(cyclic.Cycle, cycleSeparator))
}

// ExitCode returns ExitCodeConfigurationDefect.
func (CyclicDependencyError) ExitCode() int {
	return ExitCodeConfigurationDefect
}

// ConfigurationError reports a task catalog that cannot be turned into a registry.
type ConfigurationError struct {
	Cause error
}

// Error implements the error interface.
func (configuration ConfigurationError) Error() string {
	return fmt.Sprintf(configurationErrorTemplate, configuration.Cause)
}

// Unwrap exposes the underlying cause.
func (configuration ConfigurationError) Unwrap() error {
	return configuration.Cause
}

// ExitCode returns ExitCodeConfigurationDefect.
func (ConfigurationError) ExitCode() int {
	return ExitCodeConfigurationDefect
}

// Registry holds tasks in declaration order.
type Registry struct {
	order []string
	tasks map[string]Task
}

// NewRegistry registers every definition and then validates the prerequisite graph as a whole,
// so declaration order never matters.
func NewRegistry(definitions ...Task) (*Registry, error) {
	registry := &Registry{tasks: make(map[string]Task, len(definitions))}
	for _, definition := range definitions {
		if registrationError := registry.Register(definition); registrationError != nil {
			return nil, ConfigurationError{Cause: registrationError}
		}
	}
	if validationError := registry.Validate(); validationError != nil {
		return nil, ConfigurationError{Cause: validationError}
	}
	return registry, nil
}

// Register adds a task. Prerequisites may name tasks registered later; Validate checks them.
func (registry *Registry) Register(task Task) error {
	if registry.tasks == nil {
		registry.tasks = map[string]Task{}
	}

	name := strings.TrimSpace(task.Name)
	if len(name) == 0 {
		return ErrTaskNameMissing
	}
	if _, exists := registry.tasks[name]; exists {
		return DuplicateTaskError{Name: name}
	}

	normalized := task.clone()
	normalized.Name = name
	normalized.Prerequisites = normalized.Prerequisites[:0]
	seenPrerequisites := make(map[string]struct{}, len(task.Prerequisites))
	for _, prerequisite := range task.Prerequisites {
		prerequisiteName := strings.TrimSpace(prerequisite)
		if len(prerequisiteName) == 0 {
			continue
		}
		if prerequisiteName == name {
			return fmt.Errorf(selfPrerequisiteTemplate, name)
		}
		if _, seen := seenPrerequisites[prerequisiteName]; seen {
			continue
		}
		seenPrerequisites[prerequisiteName] = struct{}{}
		normalized.Prerequisites = append(normalized.Prerequisites, prerequisiteName)
	}

	for commandIndex, command := range normalized.Commands {
		if len(command.Command) == 0 || len(strings.TrimSpace(command.Command[0])) == 0 {
			return fmt.Errorf(emptyCommandTemplate, name, commandIndex+1)
		}
	}

	registry.tasks[name] = normalized
	registry.order = append(registry.order, name)
	return nil
}

// Lookup returns the task registered under name.
func (registry *Registry) Lookup(name string) (Task, bool) {
	if registry == nil {
		return Task{}, false
	}
	task, exists := registry.tasks[strings.TrimSpace(name)]
	if !exists {
		return Task{}, false
	}
	return task.clone(), true
}

// List returns task names and descriptions in declaration order.
func (registry *Registry) List() []Summary {
	if registry == nil {
		return nil
	}
	summaries := make([]Summary, 0, len(registry.order))
	for _, name := range registry.order {
		summaries = append(summaries, Summary{Name: name, Description: registry.tasks[name].Description})
	}
	return summaries
}

// Validate reports the first prerequisite naming no registered task, then the first cycle,
// scanning tasks in declaration order.
func (registry *Registry) Validate() error {
	if registry == nil {
		return nil
	}
	for _, name := range registry.order {
		for _, prerequisite := range registry.tasks[name].Prerequisites {
			if _, registered := registry.tasks[prerequisite]; !registered {
				return UnknownPrerequisiteError{Task: name, Prerequisite: prerequisite}
			}
		}
	}

	states := make(map[string]visitState, len(registry.order))
	for _, name := range registry.order {
		if cycle := registry.findCycle(name, states, nil); cycle != nil {
			return CyclicDependencyError{Cycle: cycle}
		}
	}
	return nil
}

type visitState int

const (
	visitStateUnvisited visitState = iota
	visitStateOnPath
	visitStateDone
)

func (registry *Registry) findCycle(name string, states map[string]visitState, path []string) []string {
	switch states[name] {
	case visitStateDone:
		return nil
	case visitStateOnPath:
		for pathIndex, pathName := range path {
			if pathName == name {
				return append(append([]string(nil), path[pathIndex:]...), name)
			}
		}
		return []string{name, name}
	}

	states[name] = visitStateOnPath
	path = append(path, name)
	for _, prerequisite := range registry.tasks[name].Prerequisites {
		if cycle := registry.findCycle(prerequisite, states, path); cycle != nil {
			return cycle
		}
	}
	states[name] = visitStateDone
	return nil
}
