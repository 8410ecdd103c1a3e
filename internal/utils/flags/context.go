package flags

import "github.com/spf13/cobra"

const (
	// DryRunFlagName exposes the shared dry-run flag name.
	DryRunFlagName = "dry-run"
	// DryRunFlagUsage describes the shared dry-run flag purpose.
	DryRunFlagUsage = "Print the execution plan without checking the environment or running commands"
	// ListFlagName exposes the shared task listing flag name.
	ListFlagName = "list"
	// ListFlagShorthand provides the shorthand for the listing flag.
	ListFlagShorthand = "l"
	// ListFlagUsage describes the shared task listing flag purpose.
	ListFlagUsage = "List available tasks and exit"
)

// EnsureListFlag guarantees the shared listing flag is available on the command.
func EnsureListFlag(command *cobra.Command) {
	if command == nil {
		return
	}

	persistentSet := command.PersistentFlags()
	if persistentSet.Lookup(ListFlagName) == nil {
		persistentSet.BoolP(ListFlagName, ListFlagShorthand, false, ListFlagUsage)
	}
}
