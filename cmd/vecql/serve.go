package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vecql/config"
	"vecql/logging"
	"vecql/storage"
)

// newServeCmd starts an engine over the configured backend and runs a
// small scripted batch of Put/Get statements against one demo table — a
// stand-in for a full SQL shell.
func newServeCmd(configPath *string) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start an engine and run a scripted batch of statements against one table",
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

			f, err := storage.Open(opts, logger)
			if err != nil {
				return err
			}
			defer f.Close()

			schema := storage.Schema{Table: table, PrimaryKeyCol: storage.ColumnString}
			if err := f.Create(schema); err != nil {
				return err
			}

			script := [][2]string{
				{"alice", "1"},
				{"bob", "2"},
				{"carol", "3"},
			}
			for _, kv := range script {
				if err := f.Put(table, []byte(kv[0]), []byte(kv[1])); err != nil {
					return err
				}
			}
			for _, kv := range script {
				v, ok, err := f.Get(table, []byte(kv[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (found=%v)\n", kv[0], string(v), ok)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "demo", "table name to create and query")
	return cmd
}

func loadOptions(path string) (*config.Options, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
