package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"voxelvault.ai/internal/config"
	"voxelvault.ai/internal/persistence/volumedb"
)

// rootOptions holds global flags and what PersistentPreRunE builds from them.
type rootOptions struct {
	ConfigPath string
	DataDir    string

	log   *zap.Logger
	store *volumedb.Store
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "volumectl",
		Short:         "Inspect, migrate and export zone volume stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (yaml)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data", "", "runtime data directory (overrides data_dir)")

	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	return cmd
}

func (o *rootOptions) setup() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	codec, err := cfg.Codec()
	if err != nil {
		return err
	}
	if o.log, err = cfg.Logger(); err != nil {
		return err
	}
	o.store = volumedb.New(volumedb.Options{
		DataDir:   cfg.DataDir,
		BatchSize: cfg.BatchSize,
		Codec:     codec,
		Log:       o.log.Named("volumedb"),
	})
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
