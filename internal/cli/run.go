package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/claude/repquest/internal/capture"
	"github.com/claude/repquest/internal/client"
	"github.com/claude/repquest/internal/journal"
	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/logging"
	"github.com/claude/repquest/internal/metrics"
	"github.com/claude/repquest/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run <level>",
	Short: "Attempt a level",
	Long: `Loads the level from the server, counts reps from the configured pose
recording and reports the level complete once every target is reached.

The attempt is recorded in the local journal whatever its outcome.
Interrupt with Ctrl+C to cancel.

Example:
  repquest-session run 4
  repquest-session --config session.yaml run 1`,
	Args: cobra.ExactArgs(1),
	RunE: runLevel,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// ErrSessionAbandoned is returned when an attempt ends in a fatal error.
var ErrSessionAbandoned = errors.New("session abandoned")

// Recorder stores finished sessions.
type Recorder interface {
	Record(ctx context.Context, userID string, res session.Result) (journal.Entry, error)
}

func runLevel(cmd *cobra.Command, args []string) error {
	levelNumber, err := parseLevelNumber(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Replay.Path == "" {
		return errors.New("replay.path is required to run a level")
	}

	logger, logCloser := logging.New(cfg.Log, cmd.ErrOrStderr())
	defer logCloser.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	obs := newTerminalObserver(cmd.OutOrStdout())
	deps := session.Deps{
		Levels:    client.New(cfg.APIURL, cfg.Token),
		Camera:    capture.NewReplayCamera(cfg.Replay.Path, cfg.Replay.FPS, cfg.Replay.Loop, logger),
		Estimator: capture.ReplayEstimator{},
		Observer:  obs,
	}

	if cfg.MetricsAddr != "" {
		reg := metrics.SetupPrometheus()
		deps.Metrics = metrics.NewManager("repquest", "session", reg)
		stopMetrics := serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
		defer func() {
			if err := stopMetrics(); err != nil {
				logger.Warn("metrics server", "error", err)
			}
		}()
	}

	if cfg.Live {
		lc, err := live.Dial(ctx, live.ClientConfig{
			ServerURL: cfg.APIURL,
			Token:     cfg.Token,
			UserID:    cfg.UserID,
		}, logger)
		if err != nil {
			logger.Warn("live relay unavailable, continuing without it", "error", err)
		} else {
			defer lc.Close()
			lc.Subscribe(obs.Peer)
			deps.Publisher = lc
		}
	}

	ctrl := session.New(session.Config{
		LevelNumber:       levelNumber,
		UserID:            cfg.UserID,
		UserName:          cfg.UserName,
		CompletionTimeout: cfg.CompletionTimeout,
		NavigateDelay:     cfg.NavigateDelay,
	}, deps, logger)

	res := ctrl.Run(ctx)
	// Record even when interrupted.
	return finishSession(context.WithoutCancel(ctx), j, cmd.OutOrStdout(), cfg.UserID, res)
}

// finishSession journals the result and prints a summary.
func finishSession(ctx context.Context, rec Recorder, out io.Writer, userID string, res session.Result) error {
	entry, recErr := rec.Record(ctx, userID, res)

	fmt.Fprintf(out, "\nLevel %d %s after %s\n", res.Level.LevelNumber, res.Outcome, res.Duration.Round(time.Second))
	if res.UserProgress != nil {
		fmt.Fprintf(out, "Total XP: %d  Coins: %d  Cleared: %d levels\n",
			res.UserProgress.Stats.TotalXP, res.UserProgress.Stats.TotalCoins, len(res.UserProgress.ClearedLevels))
	}
	if recErr == nil {
		fmt.Fprintf(out, "Journal entry %s\n", entry.ID)
	}

	if res.Outcome == session.OutcomeAbandoned {
		return fmt.Errorf("%w: %v", ErrSessionAbandoned, res.Err)
	}
	if recErr != nil {
		return fmt.Errorf("recording session: %w", recErr)
	}
	return nil
}

// serveMetrics exposes reg on addr until ctx is done or the returned stop
// function is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) func() error {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		logger.Info("serving session metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	return func() error {
		cancel()
		return g.Wait()
	}
}

func parseLevelNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid level number %q", s)
	}
	return n, nil
}
