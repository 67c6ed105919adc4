package main

import (
	"fmt"

	"github.com/spf13/cobra"

	stacktrace "github.com/berrill/StackTrace"
	"github.com/berrill/StackTrace/utilities"
)

var (
	crashMode   string
	crashSignal int
)

var crashCmd = &cobra.Command{
	Use:   "crash",
	Short: "Install the abort handlers and fail on purpose",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch crashMode {
		case "segfault", "abort", "signal":
		default:
			return fmt.Errorf("unknown mode %q (want segfault, abort or signal)", crashMode)
		}

		utilities.SetErrorHandlers(nil)
		defer utilities.PanicHandler()

		switch crashMode {
		case "segfault":
			utilities.CauseSegfault()
		case "abort":
			utilities.Abort("crash requested from the command line")
		case "signal":
			if err := stacktrace.RaiseSignal(crashSignal); err != nil {
				return err
			}
			select {} // wait for delivery
		}
		return nil
	},
}

func init() {
	crashCmd.Flags().StringVar(&crashMode, "mode", "abort", "failure to provoke: segfault, abort or signal")
	crashCmd.Flags().IntVar(&crashSignal, "signal", 15, "signal number for --mode signal")
	rootCmd.AddCommand(crashCmd)
}
