package detect

import (
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

const (
	squatDown     = 90.0  // knee angle below this on either leg: squatting
	squatStanding = 160.0 // both knee angles above this: standing again
)

var (
	leftLeg  = []pose.Part{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	rightLeg = []pose.Part{pose.RightHip, pose.RightKnee, pose.RightAnkle}
	bothLegs = append(append([]pose.Part{}, leftLeg...), rightLeg...)
)

// Squats enters the squatting state when either leg bends past squatDown, which
// tolerates one leg being hidden, and counts a rep once both legs straighten.
type Squats struct {
	squatting bool
	count     int
}

// NewSquats returns a detector in the standing state.
func NewSquats() *Squats { return &Squats{} }

// Exercise implements Detector.
func (d *Squats) Exercise() models.ExerciseKind { return models.Squats }

// OnPose implements Detector.
func (d *Squats) OnPose(p pose.Pose) (RepEvent, bool) {
	if !d.squatting && (d.legDown(p, leftLeg) || d.legDown(p, rightLeg)) {
		d.squatting = true
		return RepEvent{}, false
	}
	if !d.squatting || !p.Confident(minConfidence, bothLegs...) {
		return RepEvent{}, false
	}

	left := p.JointAngle(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	right := p.JointAngle(pose.RightHip, pose.RightKnee, pose.RightAnkle)
	if left > squatStanding && right > squatStanding {
		d.squatting = false
		d.count++
		return RepEvent{Exercise: models.Squats, Value: d.count}, true
	}
	return RepEvent{}, false
}

func (d *Squats) legDown(p pose.Pose, leg []pose.Part) bool {
	if !p.Confident(minConfidence, leg...) {
		return false
	}
	return p.JointAngle(leg[0], leg[1], leg[2]) < squatDown
}

// Squatting reports whether a rep is in progress.
func (d *Squats) Squatting() bool { return d.squatting }

// Count returns completed reps.
func (d *Squats) Count() int { return d.count }

// Reset implements Detector.
func (d *Squats) Reset() { *d = Squats{} }
