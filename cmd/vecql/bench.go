package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"vecql/logging"
	"vecql/storage"
)

// newBenchCmd runs 's S2 scenario: write N keys in shuffled order,
// then full-scan and report whether every key came back in ascending
// order.
func newBenchCmd(configPath *string) *cobra.Command {
	var numKeys int
	var table string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "write N shuffled keys and full-scan them back (spec S2)",
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

			if err := f.Create(storage.Schema{Table: table, PrimaryKeyCol: storage.ColumnString}); err != nil {
				return err
			}

			order := rand.Perm(numKeys)
			start := time.Now()
			for _, i := range order {
				key := fmt.Appendf(nil, "key-%08d", i)
				if err := f.Put(table, key, key); err != nil {
					return err
				}
			}
			writeElapsed := time.Since(start)

			it, err := f.Iterator(table)
			if err != nil {
				return err
			}
			count := 0
			var prev []byte
			ascending := true
			for it.Valid() {
				if prev != nil && string(it.Key()) <= string(prev) {
					ascending = false
				}
				prev = append([]byte(nil), it.Key()...)
				count++
				it.Next()
			}
			if err := it.Err(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d keys in %s (%.0f keys/sec)\n",
				numKeys, writeElapsed, float64(numKeys)/writeElapsed.Seconds())
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d keys, ascending=%v\n", count, ascending)
			return nil
		},
	}
	cmd.Flags().IntVar(&numKeys, "keys", 100000, "number of keys to write (spec S2 default: 100000)")
	cmd.Flags().StringVar(&table, "table", "bench", "table name")
	return cmd
}
