package session

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/repquest/internal/capture"
	"github.com/claude/repquest/internal/detect"
	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/progress"
)

// run holds the state of one Run call. Everything here is owned by the
// session goroutine.
type run struct {
	c         *Controller
	startedAt time.Time

	level     models.Level
	detectors []detect.Detector
	timed     detect.Timed
	agg       *progress.Aggregator
	stream    capture.Stream
}

func (r *run) execute(ctx context.Context) Result {
	c := r.c
	c.setState(StateLoading)

	level, err := c.deps.Levels.Level(ctx, c.cfg.LevelNumber)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancelled()
		}
		return r.abandon(fmt.Errorf("loading level %d: %w", c.cfg.LevelNumber, err))
	}
	if err := level.Validate(); err != nil {
		return r.abandon(fmt.Errorf("%w: %v", ErrInvalidLevel, err))
	}
	r.level = level

	r.detectors, err = detect.ForLevel(level, c.deps.Clock)
	if err != nil {
		return r.abandon(fmt.Errorf("building detectors: %w", err))
	}
	for _, d := range r.detectors {
		if t, ok := d.(detect.Timed); ok {
			r.timed = t
		}
	}
	r.agg = progress.New(level)

	defer func() {
		if r.timed != nil {
			r.timed.Pause()
		}
		r.release()
	}()
	if err := r.acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return r.cancelled()
		}
		return r.abandon(err)
	}

	c.logger.Info("session started", "exercises", len(level.Exercises), "user_id", c.cfg.UserID)
	c.setState(StateActive)
	c.deps.Observer.Progress(r.agg.Snapshot())

	if r.agg.Settle() {
		if res, finished := r.complete(ctx); finished {
			return res
		}
	}
	for {
		if res, finished := r.active(ctx); finished {
			return res
		}
		if res, finished := r.complete(ctx); finished {
			return res
		}
	}
}

// active processes frames and timer ticks until every exercise reaches its
// target (finished=false) or the session ends (finished=true).
func (r *run) active(ctx context.Context) (Result, bool) {
	for {
		select {
		case <-ctx.Done():
			return r.cancelled(), true
		case f, ok := <-r.stream.Frames():
			if !ok {
				if ctx.Err() != nil {
					return r.cancelled(), true
				}
				return r.abandon(ErrStreamEnded), true
			}
			if r.onFrame(ctx, f) {
				return Result{}, false
			}
		case now := <-r.timer():
			if ev, ok := r.timed.OnTimer(now); ok && r.apply(ev) {
				return Result{}, false
			}
		}
	}
}

func (r *run) timer() <-chan time.Time {
	if r.timed == nil {
		return nil
	}
	return r.timed.Timer()
}

// onFrame runs one pose through every detector and reports whether the level
// just became complete.
func (r *run) onFrame(ctx context.Context, f capture.Frame) bool {
	p, err := r.c.deps.Estimator.Estimate(ctx, f)
	if err != nil {
		r.c.deps.Metrics.FrameSkipped()
		r.c.logger.Debug("skipping frame", "seq", f.Seq, "error", err)
		return false
	}
	complete := false
	for _, d := range r.detectors {
		if ev, ok := d.OnPose(p); ok && r.apply(ev) {
			complete = true
		}
	}
	return complete
}

func (r *run) apply(ev detect.RepEvent) bool {
	c := r.c
	res := r.agg.Update(ev.Exercise, ev.Value)
	c.deps.Metrics.ProgressRecorded(string(ev.Exercise))

	current := ev.Value
	for _, row := range res.Table {
		if row.Name == ev.Exercise {
			current = row.Current
		}
	}
	c.deps.Publisher.Publish(live.Event{
		UserID:   c.cfg.UserID,
		UserName: c.cfg.UserName,
		Exercise: string(ev.Exercise),
		Progress: current,
	})
	c.deps.Observer.Progress(res.Table)

	if res.JustCompleted {
		c.logger.Info("exercise complete", "exercise", ev.Exercise, "value", current)
		c.deps.Observer.Notice(Notice{Kind: NoticeInfo, Message: fmt.Sprintf("%s complete", ev.Exercise)})
	}
	return res.AllComplete
}

// complete persists the cleared level. On a failure that is not a
// cancellation it reacquires the camera and reports finished=false so the
// session resumes.
func (r *run) complete(ctx context.Context) (Result, bool) {
	c := r.c
	c.setState(StateCompleting)
	if r.timed != nil {
		r.timed.Pause()
	}
	r.release()

	cctx, cancel := context.WithTimeout(ctx, c.cfg.CompletionTimeout)
	up, err := c.deps.Levels.CompleteLevel(cctx, c.cfg.LevelNumber)
	cancel()
	if err == nil {
		c.setState(StateTerminated)
		c.logger.Info("level completed", "total_xp", up.Stats.TotalXP, "total_coins", up.Stats.TotalCoins)
		c.deps.Observer.Notice(Notice{Kind: NoticeInfo, Message: fmt.Sprintf("Level %d complete!", c.cfg.LevelNumber)})
		wait(ctx, c.cfg.NavigateDelay)
		return Result{
			Outcome:      OutcomeCompleted,
			Level:        r.level,
			Progress:     r.snapshot(),
			UserProgress: &up,
		}, true
	}
	if ctx.Err() != nil {
		return r.cancelled(), true
	}

	c.logger.Warn("completing level failed, resuming session", "error", err)
	if aerr := r.acquire(ctx); aerr != nil {
		if ctx.Err() != nil {
			return r.cancelled(), true
		}
		return r.abandon(fmt.Errorf("resuming after failed completion: %w", aerr)), true
	}
	r.agg.Reopen()
	c.setState(StateActive)
	c.deps.Observer.Notice(Notice{
		Kind:    NoticeRetry,
		Message: "Could not save your progress. Keep going to retry.",
		Err:     err,
	})
	return Result{}, false
}

func (r *run) acquire(ctx context.Context) error {
	s, err := r.c.deps.Camera.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting camera: %w", err)
	}
	r.stream = s
	return nil
}

// release stops the current stream once; later calls are no-ops until the
// next acquire.
func (r *run) release() {
	if r.stream == nil {
		return
	}
	r.stream.Stop()
	r.c.deps.Metrics.FramesDropped(r.stream.Dropped())
	r.stream = nil
}

func (r *run) snapshot() []progress.Exercise {
	if r.agg == nil {
		return nil
	}
	return r.agg.Snapshot()
}

func (r *run) cancelled() Result {
	r.c.setState(StateTerminated)
	return Result{Outcome: OutcomeCancelled, Level: r.level, Progress: r.snapshot()}
}

func (r *run) abandon(err error) Result {
	r.c.logger.Error("session abandoned", "error", err)
	r.c.setState(StateTerminated)
	r.c.deps.Observer.Notice(Notice{Kind: NoticeError, Message: err.Error(), Err: err})
	return Result{Outcome: OutcomeAbandoned, Level: r.level, Progress: r.snapshot(), Err: err}
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
