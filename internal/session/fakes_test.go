package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/claude/repquest/internal/capture"
	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
	"github.com/claude/repquest/internal/progress"
)

type fakeLevels struct {
	mu            sync.Mutex
	level         models.Level
	levelErr      error
	completeErrs  []error
	blockOnce     bool
	completeCalls int
}

func (f *fakeLevels) Level(ctx context.Context, _ int) (models.Level, error) {
	if err := ctx.Err(); err != nil {
		return models.Level{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level, f.levelErr
}

func (f *fakeLevels) CompleteLevel(ctx context.Context, levelNumber int) (models.UserProgress, error) {
	f.mu.Lock()
	f.completeCalls++
	var err error
	if len(f.completeErrs) > 0 {
		err, f.completeErrs = f.completeErrs[0], f.completeErrs[1:]
	}
	block := f.blockOnce
	f.blockOnce = false
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return models.UserProgress{}, ctx.Err()
	}
	if err != nil {
		return models.UserProgress{}, err
	}
	return models.UserProgress{ClearedLevels: []int{levelNumber}, Stats: models.Stats{TotalXP: 50, TotalCoins: 100}}, nil
}

func (f *fakeLevels) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completeCalls
}

type fakeStream struct {
	frames chan capture.Frame
	mu     sync.Mutex
	stops  int
	seq    uint64
}

func (s *fakeStream) Frames() <-chan capture.Frame { return s.frames }
func (s *fakeStream) Dropped() uint64               { return 0 }

func (s *fakeStream) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (s *fakeStream) pushRaw(t *testing.T, data []byte) {
	t.Helper()
	s.seq++
	select {
	case s.frames <- capture.Frame{Seq: s.seq, At: time.Now(), Data: data}:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not take frame")
	}
}

func (s *fakeStream) push(t *testing.T, poses ...pose.Pose) {
	t.Helper()
	for _, p := range poses {
		data, err := pose.Encode(p)
		if err != nil {
			t.Fatal(err)
		}
		s.pushRaw(t, data)
	}
}

var errNoCamera = errors.New("no camera")

type fakeCamera struct {
	mu        sync.Mutex
	startErrs []error
	streams   chan *fakeStream
	starts    int
}

func newFakeCamera(startErrs ...error) *fakeCamera {
	return &fakeCamera{startErrs: startErrs, streams: make(chan *fakeStream, 8)}
}

func (c *fakeCamera) Start(context.Context) (capture.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if len(c.startErrs) > 0 {
		err := c.startErrs[0]
		c.startErrs = c.startErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s := &fakeStream{frames: make(chan capture.Frame)}
	c.streams <- s
	return s, nil
}

func (c *fakeCamera) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

func (c *fakeCamera) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-c.streams:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("camera was not started")
		return nil
	}
}

type fakePublisher struct{ events chan live.Event }

func newFakePublisher() *fakePublisher { return &fakePublisher{events: make(chan live.Event, 64)} }

func (p *fakePublisher) Publish(ev live.Event) {
	select {
	case p.events <- ev:
	default:
	}
}

func (p *fakePublisher) next(t *testing.T) live.Event {
	t.Helper()
	select {
	case ev := <-p.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no progress event published")
		return live.Event{}
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	states  []State
	notices []Notice
	last    []progress.Exercise
}

func (o *recordingObserver) StateChanged(s State) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func (o *recordingObserver) Progress(table []progress.Exercise) {
	o.mu.Lock()
	o.last = table
	o.mu.Unlock()
}

func (o *recordingObserver) Notice(n Notice) {
	o.mu.Lock()
	o.notices = append(o.notices, n)
	o.mu.Unlock()
}

func (o *recordingObserver) noticeKinds() []NoticeKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []NoticeKind
	for _, n := range o.notices {
		out = append(out, n.Kind)
	}
	return out
}

func (o *recordingObserver) stateLog() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.states...)
}

type countingMetrics struct {
	mu       sync.Mutex
	skipped  int
	recorded int
	outcome  string
}

func (m *countingMetrics) FrameSkipped()            { m.mu.Lock(); m.skipped++; m.mu.Unlock() }
func (m *countingMetrics) ProgressRecorded(string)  { m.mu.Lock(); m.recorded++; m.mu.Unlock() }
func (m *countingMetrics) FramesDropped(uint64)     {}
func (m *countingMetrics) SessionFinished(o string, _ time.Duration) {
	m.mu.Lock()
	m.outcome = o
	m.mu.Unlock()
}

func blankPose() pose.Pose {
	p := pose.Pose{Score: 1, Keypoints: make([]pose.Keypoint, pose.NumParts)}
	for i := range p.Keypoints {
		p.Keypoints[i] = pose.Keypoint{Part: pose.Part(i), X: 250, Y: 50, Confidence: 0.9}
	}
	return p
}

func place(p *pose.Pose, part pose.Part, x, y float64) {
	p.Keypoints[part].X = x
	p.Keypoints[part].Y = y
}

// legPose bends both knees to theta degrees.
func legPose(theta float64) pose.Pose {
	p := blankPose()
	r := theta * math.Pi / 180
	for _, leg := range [][3]pose.Part{
		{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
		{pose.RightHip, pose.RightKnee, pose.RightAnkle},
	} {
		x := 235.0
		if leg[0] == pose.RightHip {
			x = 265
		}
		place(&p, leg[0], x, 300)
		place(&p, leg[1], x, 400)
		place(&p, leg[2], x+100*math.Sin(r), 400-100*math.Cos(r))
	}
	return p
}

func squatRep() []pose.Pose { return []pose.Pose{legPose(80), legPose(170)} }

func plankPose() pose.Pose {
	p := blankPose()
	place(&p, pose.LeftShoulder, 100, 300)
	place(&p, pose.RightShoulder, 110, 305)
	place(&p, pose.LeftHip, 250, 300)
	place(&p, pose.RightHip, 260, 305)
	place(&p, pose.LeftAnkle, 400, 300)
	place(&p, pose.RightAnkle, 410, 305)
	return p
}
