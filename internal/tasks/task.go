// Package tasks defines pipeline stages and the registry they are declared in.
//
// A task is an opaque unit of work: a name, a description, a banner title, the
// external commands that make up its body, and the names of the tasks that must run
// before it. The registry is built once at startup and never mutated afterwards.
package tasks

import (
	"maps"
	"strings"
)

// CommandSpec is one external command of a task body.
type CommandSpec struct {
	// Command holds the program followed by its arguments.
	Command []string
	// WorkingDirectory is relative to the invocation directory; blank means the invocation directory.
	WorkingDirectory string
	// Environment overrides inherited variables for this command only.
	Environment map[string]string
}

// Task is a named pipeline stage.
type Task struct {
	Name          string
	Description   string
	Title         string
	Commands      []CommandSpec
	Prerequisites []string
}

// Summary pairs a task name with its description for listings.
type Summary struct {
	Name        string
	Description string
}

// Composite reports whether the task only aggregates prerequisites.
func (task Task) Composite() bool {
	return len(task.Commands) == 0
}

// DisplayTitle returns the banner title, falling back to the task name.
func (task Task) DisplayTitle() string {
	title := strings.TrimSpace(task.Title)
	if len(title) == 0 {
		return task.Name
	}
	return title
}

func (task Task) clone() Task {
	cloned := task
	cloned.Prerequisites = append([]string(nil), task.Prerequisites...)
	cloned.Commands = make([]CommandSpec, len(task.Commands))
	for commandIndex, command := range task.Commands {
		cloned.Commands[commandIndex] = CommandSpec{
			Command:          append([]string(nil), command.Command...),
			WorkingDirectory: command.WorkingDirectory,
			Environment:      maps.Clone(command.Environment),
		}
	}
	return cloned
}
