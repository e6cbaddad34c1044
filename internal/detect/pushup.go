package detect

import (
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

const (
	pushupBent     = 50.0  // both elbows below this: down
	pushupStraight = 150.0 // both elbows above this: up
)

// Pushups requires both arms to bend and both to straighten. One arm dropping
// alone is a form failure and never counts.
type Pushups struct {
	down  bool
	count int
}

// NewPushups returns a detector in the up state.
func NewPushups() *Pushups { return &Pushups{} }

// Exercise implements Detector.
func (d *Pushups) Exercise() models.ExerciseKind { return models.Pushups }

// OnPose implements Detector.
func (d *Pushups) OnPose(p pose.Pose) (RepEvent, bool) {
	if !p.Confident(minPushupConfidence, curlParts...) {
		return RepEvent{}, false
	}
	left := p.JointAngle(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	right := p.JointAngle(pose.RightShoulder, pose.RightElbow, pose.RightWrist)

	switch {
	case left < pushupBent && right < pushupBent && !d.down:
		d.down = true
	case left > pushupStraight && right > pushupStraight && d.down:
		d.down = false
		d.count++
		return RepEvent{Exercise: models.Pushups, Value: d.count}, true
	}
	return RepEvent{}, false
}

// Count returns completed reps.
func (d *Pushups) Count() int { return d.count }

// Reset implements Detector.
func (d *Pushups) Reset() { *d = Pushups{} }
