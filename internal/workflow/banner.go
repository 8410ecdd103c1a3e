package workflow

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	bannerWidth          = 49
	bannerFillCharacter  = "#"
	bannerMinimumPadding = 3
	planHeaderTemplate   = "Execution plan for %q:"
	planEntryTemplate    = "  %d. %s"
	planEntryDescription = "  %d. %s - %s"
)

// BannerPrinter writes stage banners to a destination writer.
type BannerPrinter struct {
	writer io.Writer
	style  lipgloss.Style
}

// NewBannerPrinter binds a renderer to writer so styling degrades to plain text off a terminal.
func NewBannerPrinter(writer io.Writer) BannerPrinter {
	if writer == nil {
		writer = io.Discard
	}
	renderer := lipgloss.NewRenderer(writer)
	return BannerPrinter{
		writer: writer,
		style:  renderer.NewStyle().Bold(true),
	}
}

// Print writes the framed banner for title.
func (printer BannerPrinter) Print(title string) {
	for _, line := range BannerLines(title) {
		fmt.Fprintln(printer.writer, printer.style.Render(line))
	}
}

// PrintPlan lists the planned tasks without running them.
func (printer BannerPrinter) PrintPlan(requested string, plan ExecutionPlan) {
	fmt.Fprintln(printer.writer, printer.style.Render(fmt.Sprintf(planHeaderTemplate, requested)))
	for taskIndex, task := range plan.Tasks {
		if len(task.Description) == 0 {
			fmt.Fprintf(printer.writer, planEntryTemplate+"\n", taskIndex+1, task.Name)
			continue
		}
		fmt.Fprintf(printer.writer, planEntryDescription+"\n", taskIndex+1, task.Name, task.Description)
	}
}

// BannerLines frames title between two rules of the same width.
func BannerLines(title string) []string {
	trimmedTitle := strings.TrimSpace(title)
	label := " " + trimmedTitle + " "
	width := bannerWidth
	if minimumWidth := len(label) + 2*bannerMinimumPadding; minimumWidth > width {
		width = minimumWidth
	}
	leftPadding := (width - len(label)) / 2
	rightPadding := width - len(label) - leftPadding
	rule := strings.Repeat(bannerFillCharacter, width)
	return []string{
		rule,
		strings.Repeat(bannerFillCharacter, leftPadding) + label + strings.Repeat(bannerFillCharacter, rightPadding),
		rule,
	}
}
