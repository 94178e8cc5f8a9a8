package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"voxelvault.ai/internal/persistence/export"
)

func newInspectCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <zone> <volume>",
		Short: "Print a store's version, corners and block count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.store.Inspect(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <zone> <volume>",
		Short: "Upgrade a store to the current schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.store.Migrate(args[0], args[1]); err != nil {
				return err
			}
			info, err := opts.store.Inspect(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newDumpCommand(opts *rootOptions) *cobra.Command {
	var (
		start, limit int
		out          string
	)
	cmd := &cobra.Command{
		Use:   "dump <zone> <volume>",
		Short: "Write stored blocks as JSON lines",
		Long: `Write stored blocks as JSON lines, one per block in store order.

Coordinates are local to corner one. With --out the lines go to a file,
zstd compressed when the name ends in .zst; otherwise they go to stdout.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var w *export.JSONLWriter
			if out == "" {
				w = export.NewJSONLWriter(cmd.OutOrStdout())
			} else if w, err = export.Create(out); err != nil {
				return err
			}
			defer func() { err = errs.Combine(err, w.Close()) }()

			n, err := export.Dump(opts.store, args[0], args[1], start, limit, w)
			if err != nil {
				return err
			}
			opts.log.Info("dumped volume",
				zap.String("zone", args[0]),
				zap.String("volume", args[1]),
				zap.Int("blocks", n),
				zap.String("out", out))
			if out != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%d blocks written to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "first row")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows (0 = all)")
	cmd.Flags().StringVar(&out, "out", "", "output file (.jsonl or .jsonl.zst)")
	return cmd
}
