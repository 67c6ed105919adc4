package main

import (
	"fmt"

	"github.com/spf13/cobra"

	stacktrace "github.com/berrill/StackTrace"
)

var symbolsLimit int

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Dump the executable's symbol table",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := stacktrace.GetSymbols()
		if err != nil {
			return err
		}
		n := len(records)
		if symbolsLimit > 0 && symbolsLimit < n {
			n = symbolsLimit
		}
		for _, r := range records[:n] {
			fmt.Fprintf(cmd.OutOrStdout(), "%016x %c %s\n", r.Address, r.Kind, r.Name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d symbols\n", len(records))
		return nil
	},
}

func init() {
	symbolsCmd.Flags().IntVarP(&symbolsLimit, "limit", "n", 0, "print at most this many symbols (0 = all)")
	rootCmd.AddCommand(symbolsCmd)
}
