// stackdump exercises the stacktrace library from the command line: print
// the current call stacks, dump the executable's symbol table, export the
// aggregate as a profile, or crash on purpose to see the abort path.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stackdump",
	Short: "Inspect and export call stacks of the current process",
	Long: `stackdump demonstrates the stacktrace library on itself.

Examples:
  stackdump stack --all --cleanup
  stackdump symbols | head
  stackdump export --format folded -o stacks.folded
  stackdump crash --mode segfault`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
