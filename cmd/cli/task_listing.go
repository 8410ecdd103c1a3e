package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/tyemirov/fti/internal/tasks"
)

const (
	availableTasksHeaderConstant   = "Available tasks:"
	commandNotFoundTemplate        = "Command not found: '%s'"
	taskListIndentConstant         = "  "
	taskListColumnPaddingConstant  = 2
	taskListEmptyMessageConstant   = "  (no tasks configured)"
	taskListLineTerminatorConstant = "\n"
)

// TaskListPrinter renders the task catalog for a destination writer.
type TaskListPrinter struct {
	writer      io.Writer
	headerStyle lipgloss.Style
	nameStyle   lipgloss.Style
	errorStyle  lipgloss.Style
}

// NewTaskListPrinter binds styles to writer; they render as plain text off a terminal.
func NewTaskListPrinter(writer io.Writer) TaskListPrinter {
	if writer == nil {
		writer = io.Discard
	}
	renderer := lipgloss.NewRenderer(writer)
	return TaskListPrinter{
		writer:      writer,
		headerStyle: renderer.NewStyle().Bold(true),
		nameStyle:   renderer.NewStyle().Foreground(lipgloss.Color("6")),
		errorStyle:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// PrintTasks lists task names and descriptions in declaration order.
func (printer TaskListPrinter) PrintTasks(summaries []tasks.Summary) {
	fmt.Fprint(printer.writer, printer.headerStyle.Render(availableTasksHeaderConstant)+taskListLineTerminatorConstant+taskListLineTerminatorConstant)
	if len(summaries) == 0 {
		fmt.Fprint(printer.writer, taskListEmptyMessageConstant+taskListLineTerminatorConstant)
		return
	}

	nameWidth := 0
	for _, summary := range summaries {
		if len(summary.Name) > nameWidth {
			nameWidth = len(summary.Name)
		}
	}
	nameWidth += taskListColumnPaddingConstant

	for _, summary := range summaries {
		paddedName := fmt.Sprintf("%-*s", nameWidth, summary.Name)
		fmt.Fprint(printer.writer, taskListIndentConstant+printer.nameStyle.Render(paddedName)+summary.Description+taskListLineTerminatorConstant)
	}
}

// PrintNotFound explains that name is not a task and lists the tasks that are.
func (printer TaskListPrinter) PrintNotFound(name string, summaries []tasks.Summary) {
	fmt.Fprint(printer.writer, printer.errorStyle.Render(fmt.Sprintf(commandNotFoundTemplate, name))+taskListLineTerminatorConstant+taskListLineTerminatorConstant)
	printer.PrintTasks(summaries)
}
