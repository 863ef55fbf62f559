package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Minionjack/Trade-info-scraper/config"
)

var (
	version = "dev"
	commit  = "none"
)

type options struct {
	configPath string
	getenv     func(string) string
}

func newRootCmd() *cobra.Command {
	opts := &options{getenv: os.Getenv}
	root := &cobra.Command{
		Use:          "signal-harvester",
		Short:        "Harvest trade-alert cards into a local signal database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (default $SIGNALS_CONFIG or ./config.yaml)")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newParseCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "signal-harvester %s (commit: %s)\n", version, commit)
		},
	}
}

// load reads .env, then the config file. Commands that never log in pass
// strict=false so missing credentials are not an error.
func (o *options) load(strict bool) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	path := config.Path(o.configPath, o.getenv)
	if strict {
		return config.LoadPath(path, o.getenv)
	}
	return config.LoadUnvalidated(path, o.getenv)
}

func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
