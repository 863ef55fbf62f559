package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Minionjack/Trade-info-scraper/model"
	"github.com/Minionjack/Trade-info-scraper/storage"
)

func newStatsCmd(opts *options) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show signal counts and the most recent records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(false)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := storage.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			total, err := st.Count(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := st.CountByDirection(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := st.Recent(cmd.Context(), recent)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), cfg.DBPath, total, counts, recs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", 10, "number of recent records to list")
	return cmd
}

func printStats(w io.Writer, dbPath string, total int, counts map[string]int, recs []model.Record) {
	fmt.Fprintf(w, "Database: %s\n", dbPath)
	fmt.Fprintf(w, "Signals: %d (BUY %d, SELL %d, %s %d)\n",
		total, counts["BUY"], counts["SELL"], storage.UnknownDirection, counts[storage.UnknownDirection])
	if len(recs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent:")
	for _, r := range recs {
		sym := r.Symbol
		if sym == "" {
			sym = "-"
		}
		dir := string(r.Direction)
		if dir == "" {
			dir = "-"
		}
		fmt.Fprintf(w, "  #%-5d %s  %-7s %-4s %s\n", r.ID, r.ObservedAt.Format("2006-01-02 15:04"), sym, dir, r.Title)
	}
}
