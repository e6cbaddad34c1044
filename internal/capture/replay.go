package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/claude/repquest/internal/pose"
)

const maxLineSize = 1 << 20

// ReplayCamera plays back a recorded pose stream, one JSON pose per line, at a
// fixed frame rate. Restarting a stopped camera resumes where it left off.
type ReplayCamera struct {
	path   string
	fps    int
	loop   bool
	logger *slog.Logger

	mu     sync.Mutex
	frames [][]byte
	pos    int
	seq    uint64
}

// NewReplayCamera creates a camera over the recording at path.
func NewReplayCamera(path string, fps int, loop bool, logger *slog.Logger) *ReplayCamera {
	if fps <= 0 {
		fps = 30
	}
	return &ReplayCamera{path: path, fps: fps, loop: loop, logger: logger}
}

// Start implements Camera.
func (c *ReplayCamera) Start(ctx context.Context) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frames == nil {
		frames, err := readRecording(c.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.frames = frames
		c.logger.Info("loaded recording", "path", c.path, "frames", len(frames), "fps", c.fps)
	}
	if c.pos >= len(c.frames) && !c.loop {
		return nil, fmt.Errorf("%w: recording exhausted", ErrUnavailable)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &replayStream{
		out:    make(chan Frame, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.pump(ctx, s)
	return s, nil
}

func readRecording(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	var frames [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		frames = append(frames, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading recording: %w", err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("recording %s is empty", path)
	}
	return frames, nil
}

func (c *ReplayCamera) pump(ctx context.Context, s *replayStream) {
	defer close(s.done)
	defer close(s.out)

	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f, ok := c.next(now)
			if !ok {
				c.logger.Info("recording finished", "path", c.path)
				return
			}
			s.offer(f)
		}
	}
}

func (c *ReplayCamera) next(now time.Time) (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos >= len(c.frames) {
		if !c.loop {
			return Frame{}, false
		}
		c.pos = 0
	}
	c.seq++
	f := Frame{Seq: c.seq, At: now, Data: c.frames[c.pos]}
	c.pos++
	return f, true
}

type replayStream struct {
	out     chan Frame
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
}

// offer hands f to the consumer, replacing a frame still sitting in the slot.
// Only the pump goroutine sends, so the second send cannot block.
func (s *replayStream) offer(f Frame) {
	select {
	case s.out <- f:
		return
	default:
	}
	select {
	case <-s.out:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.out <- f:
	default:
		s.dropped.Add(1)
	}
}

func (s *replayStream) Frames() <-chan Frame { return s.out }

func (s *replayStream) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *replayStream) Dropped() uint64 { return s.dropped.Load() }

// ReplayEstimator decodes frames that already carry a PoseNet JSON pose.
type ReplayEstimator struct{}

// Estimate implements Estimator.
func (ReplayEstimator) Estimate(_ context.Context, f Frame) (pose.Pose, error) {
	p, err := pose.Decode(f.Data)
	if err != nil {
		return pose.Pose{}, fmt.Errorf("decoding frame %d: %w", f.Seq, err)
	}
	return p, nil
}
