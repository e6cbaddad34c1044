// Package session runs one level attempt: it loads the level, feeds camera poses
// through the exercise detectors, tracks progress, and declares the level
// complete exactly once.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/claude/repquest/internal/capture"
	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/progress"
)

var (
	// ErrStreamEnded is returned when the camera stops delivering frames.
	ErrStreamEnded = errors.New("camera stream ended")
	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrInvalidLevel is returned when the loaded level cannot drive a session.
	ErrInvalidLevel = errors.New("invalid level")
)

// LevelService is the server side of a session.
type LevelService interface {
	Level(ctx context.Context, levelNumber int) (models.Level, error)
	CompleteLevel(ctx context.Context, levelNumber int) (models.UserProgress, error)
}

// Publisher receives progress events for other users. It must not block.
type Publisher interface {
	Publish(ev live.Event)
}

// Observer is told about state changes, progress and notices. Calls come from
// the session goroutine.
type Observer interface {
	StateChanged(s State)
	Progress(table []progress.Exercise)
	Notice(n Notice)
}

// Metrics observes session activity.
type Metrics interface {
	FrameSkipped()
	ProgressRecorded(exercise string)
	FramesDropped(n uint64)
	SessionFinished(outcome string, d time.Duration)
}

// Config holds per-session settings.
type Config struct {
	LevelNumber       int
	UserID            string
	UserName          string
	CompletionTimeout time.Duration
	NavigateDelay     time.Duration
}

// Deps are the collaborators of a Controller. Publisher, Observer, Metrics and
// Clock are optional.
type Deps struct {
	Levels    LevelService
	Camera    capture.Camera
	Estimator capture.Estimator
	Publisher Publisher
	Observer  Observer
	Metrics   Metrics
	Clock     clockwork.Clock
}

// Result describes a finished session.
type Result struct {
	Outcome      Outcome
	State        State
	Level        models.Level
	Progress     []progress.Exercise
	UserProgress *models.UserProgress
	StartedAt    time.Time
	Duration     time.Duration
	Err          error
}

// Controller drives a single session. Create one per attempt.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	started   bool
	cancelled bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a controller. Zero durations in cfg take defaults.
func New(cfg Config, deps Deps, logger *slog.Logger) *Controller {
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 10 * time.Second
	}
	if cfg.NavigateDelay < 0 {
		cfg.NavigateDelay = 0
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("level", cfg.LevelNumber),
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel requests the session to stop. It may be called any number of times
// from any goroutine, before or during Run.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop cancels the session and waits for Run to return.
func (c *Controller) Stop() {
	c.Cancel()
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

// Run executes the session until it completes, fails or is cancelled.
func (c *Controller) Run(ctx context.Context) Result {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return Result{Outcome: OutcomeAbandoned, State: c.State(), Err: ErrAlreadyStarted}
	}
	c.started = true
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	if c.cancelled {
		cancel()
	}
	c.mu.Unlock()
	defer close(c.done)
	defer cancel()

	r := &run{c: c, startedAt: time.Now()}
	res := r.execute(ctx)
	res.StartedAt = r.startedAt
	res.Duration = time.Since(r.startedAt)
	res.State = c.State()

	c.deps.Metrics.SessionFinished(res.Outcome.String(), res.Duration)
	c.logger.Info("session finished", "outcome", res.Outcome.String(), "duration", res.Duration)
	return res
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("session state", "from", prev.String(), "to", s.String())
	}
	c.deps.Observer.StateChanged(s)
}

type nopPublisher struct{}

func (nopPublisher) Publish(live.Event) {}

type nopObserver struct{}

func (nopObserver) StateChanged(State)          {}
func (nopObserver) Progress([]progress.Exercise) {}
func (nopObserver) Notice(Notice)               {}

type nopMetrics struct{}

func (nopMetrics) FrameSkipped()                          {}
func (nopMetrics) ProgressRecorded(string)                {}
func (nopMetrics) FramesDropped(uint64)                   {}
func (nopMetrics) SessionFinished(string, time.Duration) {}
