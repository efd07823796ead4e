package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"vecql/logging"
	"vecql/lsm"
)

// newInspectCmd prints the current Version's level/SST layout for one
// LSM-backed table, bypassing storage.Facade since this
// is LSM-internal structure no other backend has.
func newInspectCmd(configPath *string) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "print a table's Version level/SST layout (LSM backend only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			dir := filepath.Join(opts.DataDir, tableDirName(table))
			e, err := lsm.Open(dir, opts.LSM, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, lvl := range e.Inspect() {
				fmt.Fprintf(cmd.OutOrStdout(), "L%d: %d run(s), %d sst(s), %d bytes\n",
					lvl.Level, lvl.NumRuns, lvl.NumSSTs, lvl.SizeBytes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "demo", "table name whose LSM directory to inspect")
	return cmd
}

// tableDirName mirrors storage.tableDirName without importing the
// unexported helper across package boundaries.
func tableDirName(table string) string { return fmt.Sprintf("table_%s", table) }
