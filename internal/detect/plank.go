package detect

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

const (
	plankLevelTolerance = 20.0 // max px height difference between left and right shoulder/hip
	plankAngleTolerance = 30.0 // max deviation of shoulder-hip-ankle from a straight line
	plankInterval       = time.Second
)

var plankParts = []pose.Part{
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftHip, pose.RightHip,
	pose.LeftAnkle, pose.RightAnkle,
}

// Plank measures time held in a valid plank. Entering the posture starts a fresh
// one-second ticker; each tick while the posture holds reports the cumulative
// seconds. Leaving the posture stops the ticker but keeps the seconds already
// reported, so a later segment continues from there. Partial seconds of a
// broken segment are dropped.
type Plank struct {
	clock clockwork.Clock

	inPlank      bool
	ticker       clockwork.Ticker
	segmentStart time.Time
	banked       int
	reported     int
}

// NewPlank returns a plank detector using clock for its interval timer.
func NewPlank(clock clockwork.Clock) *Plank {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Plank{clock: clock}
}

// Exercise implements Detector.
func (d *Plank) Exercise() models.ExerciseKind { return models.Planks }

// OnPose implements Detector. It only starts and stops segments; events come
// from OnTimer.
func (d *Plank) OnPose(p pose.Pose) (RepEvent, bool) {
	if !p.Confident(minConfidence, plankParts...) {
		return RepEvent{}, false
	}
	valid := plankPosture(p)
	switch {
	case valid && !d.inPlank:
		d.startSegment()
	case !valid && d.inPlank:
		d.endSegment()
	}
	return RepEvent{}, false
}

func plankPosture(p pose.Pose) bool {
	k := p.Keypoints
	level := math.Abs(k[pose.LeftShoulder].Y-k[pose.RightShoulder].Y) < plankLevelTolerance &&
		math.Abs(k[pose.LeftHip].Y-k[pose.RightHip].Y) < plankLevelTolerance
	if !level {
		return false
	}
	body := p.JointAngle(pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle)
	return math.Abs(body-180) < plankAngleTolerance
}

func (d *Plank) startSegment() {
	d.stopTicker()
	d.inPlank = true
	d.banked = d.reported
	d.segmentStart = d.clock.Now()
	d.ticker = d.clock.NewTicker(plankInterval)
}

func (d *Plank) endSegment() {
	d.stopTicker()
	d.inPlank = false
	d.banked = d.reported
}

func (d *Plank) stopTicker() {
	if d.ticker != nil {
		d.ticker.Stop()
		d.ticker = nil
	}
}

// Timer implements Timed.
func (d *Plank) Timer() <-chan time.Time {
	if d.ticker == nil {
		return nil
	}
	return d.ticker.Chan()
}

// OnTimer implements Timed.
func (d *Plank) OnTimer(now time.Time) (RepEvent, bool) {
	if !d.inPlank {
		return RepEvent{}, false
	}
	elapsed := d.banked + int(now.Sub(d.segmentStart)/time.Second)
	if elapsed <= d.reported {
		return RepEvent{}, false
	}
	d.reported = elapsed
	return RepEvent{Exercise: models.Planks, Value: elapsed}, true
}

// Pause implements Timed.
func (d *Plank) Pause() {
	if d.inPlank {
		d.endSegment()
	}
}

// Holding reports whether a segment is running.
func (d *Plank) Holding() bool { return d.inPlank }

// Seconds returns the cumulative seconds reported so far.
func (d *Plank) Seconds() int { return d.reported }

// Reset implements Detector.
func (d *Plank) Reset() {
	d.stopTicker()
	clock := d.clock
	*d = Plank{clock: clock}
}
