package cli

import (
	"fmt"

	"OnTimeDelay/src/query"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Download, prepare, snapshot and report all configured periods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.execute(cmd.Context(), a.ingest, true)
			return err
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Compute carrier delay statistics from the saved snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.execute(cmd.Context(), a.fromSnapshot, false)
			return err
		},
	}
}

func newQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL",
		Short: "Run SQL against the parquet snapshot (view: flights)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			db, err := query.OpenSnapshotDB(ctx, a.cfg.Snapshot.ParquetPath)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := query.Run(ctx, db, cmd.OutOrStdout(), args[0])
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			a.logger.Debug(fmt.Sprintf("查询返回 %d 行", n))
			return nil
		},
	}
}
