// Package flags binds the execution flags shared by the check and update commands.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// ShowAllFlagName lists every repository in the report instead of only those needing attention.
	ShowAllFlagName = "all"
	// ShowAllFlagShorthand is the shorthand of ShowAllFlagName.
	ShowAllFlagShorthand = "a"
	// ShowAllFlagUsage describes ShowAllFlagName.
	ShowAllFlagUsage = "Show all repositories, not only those that need attention"
	// NoParallelFlagName disables the worker pool.
	NoParallelFlagName = "no-parallel"
	// NoParallelFlagUsage describes NoParallelFlagName.
	NoParallelFlagUsage = "Process repositories one at a time"
	// ThreadsFlagName sizes the worker pool.
	ThreadsFlagName = "threads"
	// ThreadsFlagShorthand is the shorthand of ThreadsFlagName.
	ThreadsFlagShorthand = "t"
	// ThreadsFlagUsage describes ThreadsFlagName.
	ThreadsFlagUsage = "Number of repositories processed concurrently (0 uses every CPU)"
)

// ExecutionDefaults carries configured values used as flag defaults.
type ExecutionDefaults struct {
	ShowAll  bool
	Parallel bool
	Threads  int
}

// ExecutionFlagValues stores the parsed execution flags.
type ExecutionFlagValues struct {
	ShowAll    bool
	NoParallel bool
	Threads    int
}

// BindExecutionFlags attaches --all, --no-parallel and --threads to command.
func BindExecutionFlags(command *cobra.Command, defaults ExecutionDefaults) *ExecutionFlagValues {
	values := &ExecutionFlagValues{ShowAll: defaults.ShowAll, NoParallel: !defaults.Parallel, Threads: defaults.Threads}
	if command == nil {
		return values
	}

	flagSet := command.Flags()
	bindOnce(flagSet, ShowAllFlagName, func() {
		flagSet.BoolVarP(&values.ShowAll, ShowAllFlagName, ShowAllFlagShorthand, values.ShowAll, ShowAllFlagUsage)
	})
	bindOnce(flagSet, NoParallelFlagName, func() {
		flagSet.BoolVar(&values.NoParallel, NoParallelFlagName, values.NoParallel, NoParallelFlagUsage)
	})
	bindOnce(flagSet, ThreadsFlagName, func() {
		flagSet.IntVarP(&values.Threads, ThreadsFlagName, ThreadsFlagShorthand, values.Threads, ThreadsFlagUsage)
	})
	return values
}

// Resolve overlays changed flags onto configured defaults.
func (values *ExecutionFlagValues) Resolve(command *cobra.Command, defaults ExecutionDefaults) ExecutionDefaults {
	resolved := defaults
	if values == nil || command == nil {
		return resolved
	}
	flagSet := command.Flags()
	if flagSet.Changed(ShowAllFlagName) {
		resolved.ShowAll = values.ShowAll
	}
	if flagSet.Changed(NoParallelFlagName) {
		resolved.Parallel = !values.NoParallel
	}
	if flagSet.Changed(ThreadsFlagName) {
		resolved.Threads = values.Threads
	}
	return resolved
}

func bindOnce(flagSet *pflag.FlagSet, name string, bind func()) {
	if flagSet == nil || flagSet.Lookup(name) != nil {
		return
	}
	bind()
}
