// Command vecql is a debug CLI over the engine: start a scripted session,
// run the S2 write benchmark, or print the current Version's level/SST
// layout. It stands in for the out-of-scope SQL
// shell/pretty-printer with the minimum needed to exercise the engine from
// a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "vecql",
		Short: "vecql debug CLI: serve, bench, inspect",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file (defaults to config.Default())")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newBenchCmd(&configPath))
	root.AddCommand(newInspectCmd(&configPath))
	return root
}
