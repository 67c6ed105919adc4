package main

import (
	"fmt"

	"github.com/spf13/cobra"

	stacktrace "github.com/berrill/StackTrace"
)

var (
	stackAll     bool
	stackCleanup bool
)

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Print the current call stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		var ms *stacktrace.MultiStack
		if stackAll {
			ms = stacktrace.GetAllCallStacks()
		} else {
			ms = stacktrace.NewMultiStack(stacktrace.GetCallStack())
		}
		if stackCleanup {
			stacktrace.CleanupStackTrace(ms)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stacks: %d\n", ms.N)
		for _, line := range ms.Print("") {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	stackCmd.Flags().BoolVar(&stackAll, "all", false, "capture every goroutine, not just the current one")
	stackCmd.Flags().BoolVar(&stackCleanup, "cleanup", false, "strip the capture machinery from the report")
	rootCmd.AddCommand(stackCmd)
}
