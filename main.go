package main

import (
	"fmt"
	"os"

	"github.com/tyemirov/fti/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the fti command-line application.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}
	if cli.ShouldReport(executionError) {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	}
	os.Exit(cli.ExitCodeFor(executionError))
}
