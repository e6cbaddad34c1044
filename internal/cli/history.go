package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/repquest/internal/journal"
)

var (
	historyLimit int
	historyAll   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded sessions",
	Long: `Lists sessions from the local journal, newest first.

By default only sessions of the configured user are shown.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of sessions to show")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "show sessions of every user")
	rootCmd.AddCommand(historyCmd)
}

// HistoryReader lists journal entries.
type HistoryReader interface {
	List(ctx context.Context, userID string, limit int) ([]journal.Entry, error)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	userID := cfg.UserID
	if historyAll {
		userID = ""
	}
	return printHistory(cmd.Context(), j, cmd.OutOrStdout(), userID, historyLimit)
}

func printHistory(ctx context.Context, r HistoryReader, out io.Writer, userID string, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := r.List(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No sessions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tLEVEL\tOUTCOME\tDURATION\tXP\tCOINS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%d\n",
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			e.LevelNumber, e.Outcome, e.Duration.Round(time.Second), e.TotalXP, e.TotalCoins)
	}
	return tw.Flush()
}
