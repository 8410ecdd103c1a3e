package workflow

import (
	"fmt"
	"strings"

	"github.com/tyemirov/fti/internal/tasks"
)

const (
	// ExitCodeUnknownTask is returned when the requested task is not registered.
	ExitCodeUnknownTask = 3

	unknownTaskTemplate         = "task %q not found"
	unknownPrerequisiteTemplate = "task %q depends on unknown task %q"
)

type visitState int

const (
	visitStateUnvisited visitState = iota
	visitStateOnPath
	visitStateDone
)

// TaskLookup resolves task names to definitions.
type TaskLookup interface {
	Lookup(name string) (tasks.Task, bool)
}

// ExecutionPlan is the ordered list of tasks a single invocation will run.
type ExecutionPlan struct {
	Tasks []tasks.Task
}

// Names returns the planned task names in execution order.
func (plan ExecutionPlan) Names() []string {
	names := make([]string, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		names = append(names, task.Name)
	}
	return names
}

// UnknownTaskError reports a task name with no definition.
type UnknownTaskError struct {
	Name         string
	ReferencedBy string
}

// Error implements the error interface.
func (unknown UnknownTaskError) Error() string {
	if len(unknown.ReferencedBy) > 0 {
		return fmt.Sprintf(unknownPrerequisiteTemplate, unknown.ReferencedBy, unknown.Name)
	}
	return fmt.Sprintf(unknownTaskTemplate, unknown.Name)
}

// ExitCode distinguishes a missing top-level task from a broken catalog.
func (unknown UnknownTaskError) ExitCode() int {
	if len(unknown.ReferencedBy) > 0 {
		return tasks.ExitCodeConfigurationDefect
	}
	return ExitCodeUnknownTask
}

// PlanExecution orders the named task after its transitive prerequisites.
// Prerequisites are visited depth first in declared order and a task reachable through
// several paths appears once, at its first visit. A cycle yields tasks.CyclicDependencyError.
func PlanExecution(lookup TaskLookup, name string) (ExecutionPlan, error) {
	requested := strings.TrimSpace(name)
	if lookup == nil {
		return ExecutionPlan{}, UnknownTaskError{Name: requested}
	}
	if _, exists := lookup.Lookup(requested); !exists {
		return ExecutionPlan{}, UnknownTaskError{Name: requested}
	}

	planner := executionPlanner{
		lookup: lookup,
		states: map[string]visitState{},
	}
	if visitError := planner.visit(requested, ""); visitError != nil {
		return ExecutionPlan{}, visitError
	}
	return ExecutionPlan{Tasks: planner.ordered}, nil
}

type executionPlanner struct {
	lookup  TaskLookup
	states  map[string]visitState
	path    []string
	ordered []tasks.Task
}

func (planner *executionPlanner) visit(name string, referencedBy string) error {
	switch planner.states[name] {
	case visitStateDone:
		return nil
	case visitStateOnPath:
		return tasks.CyclicDependencyError{Cycle: planner.cycleThrough(name)}
	}

	task, exists := planner.lookup.Lookup(name)
	if !exists {
		return UnknownTaskError{Name: name, ReferencedBy: referencedBy}
	}

	planner.states[name] = visitStateOnPath
	planner.path = append(planner.path, name)
	for _, prerequisite := range task.Prerequisites {
		prerequisiteName := strings.TrimSpace(prerequisite)
		if len(prerequisiteName) == 0 {
			continue
		}
		if visitError := planner.visit(prerequisiteName, name); visitError != nil {
			return visitError
		}
	}
	planner.path = planner.path[:len(planner.path)-1]
	planner.states[name] = visitStateDone
	planner.ordered = append(planner.ordered, task)
	return nil
}

func (planner *executionPlanner) cycleThrough(name string) []string {
	for pathIndex, pathName := range planner.path {
		if pathName != name {
			continue
		}
		cycle := append([]string(nil), planner.path[pathIndex:]...)
		return append(cycle, name)
	}
	return []string{name, name}
}
