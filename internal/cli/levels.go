package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/claude/repquest/internal/client"
	"github.com/claude/repquest/internal/models"
)

var levelsQuery client.LevelQuery

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List levels",
	Args:  cobra.NoArgs,
	RunE:  runLevels,
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show cleared levels and rewards",
	Args:  cobra.NoArgs,
	RunE:  runProgress,
}

func init() {
	levelsCmd.Flags().IntVar(&levelsQuery.Page, "page", 1, "page number")
	levelsCmd.Flags().IntVar(&levelsQuery.Limit, "limit", 10, "levels per page")
	levelsCmd.Flags().StringVar(&levelsQuery.Status, "status", "", "filter by status (active, pending)")
	levelsCmd.Flags().StringVar(&levelsQuery.Difficulty, "difficulty", "", "filter by difficulty")
	rootCmd.AddCommand(levelsCmd, progressCmd)
}

// LevelLister pages through the level catalog.
type LevelLister interface {
	ListLevels(ctx context.Context, q client.LevelQuery) (models.LevelPage, error)
}

// ProgressReader reads the caller's progress.
type ProgressReader interface {
	UserProgress(ctx context.Context) (models.UserProgress, error)
}

func runLevels(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return printLevels(cmd.Context(), client.New(cfg.APIURL, cfg.Token), cmd.OutOrStdout(), levelsQuery)
}

func runProgress(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return printProgress(cmd.Context(), client.New(cfg.APIURL, cfg.Token), cmd.OutOrStdout())
}

func printLevels(ctx context.Context, l LevelLister, out io.Writer, q client.LevelQuery) error {
	if ctx == nil {
		ctx = context.Background()
	}
	page, err := l.ListLevels(ctx, q)
	if err != nil {
		return fmt.Errorf("listing levels: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tDIFFICULTY\tSTATUS\tREWARD\tEXERCISES")
	for _, lv := range page.Levels {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dxp %dc\t%s\n",
			lv.LevelNumber, lv.Difficulty, lv.Status, lv.Rewards.XP, lv.Rewards.Coins, describeExercises(lv.Exercises))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "page %d of %d (%d levels)\n", page.CurrentPage, page.TotalPages, page.TotalLevels)
	return nil
}

func printProgress(ctx context.Context, r ProgressReader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := r.UserProgress(ctx)
	if err != nil {
		return fmt.Errorf("reading progress: %w", err)
	}
	fmt.Fprintf(out, "Cleared levels: %s\n", joinInts(p.ClearedLevels))
	fmt.Fprintf(out, "XP: %d  Coins: %d\n", p.Stats.TotalXP, p.Stats.TotalCoins)
	fmt.Fprintf(out, "Streak: %d (best %d)\n", p.Stats.CurrentStreak, p.Stats.HighestStreak)
	return nil
}

func describeExercises(exs []models.Exercise) string {
	if len(exs) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(exs))
	for _, ex := range exs {
		unit := ""
		if ex.Name.Timed() {
			unit = "s"
		}
		parts = append(parts, fmt.Sprintf("%s %d%s", ex.Name, ex.Target(), unit))
	}
	return strings.Join(parts, ", ")
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return "none"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
