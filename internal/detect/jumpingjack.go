package detect

import (
	"math"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

const (
	feetApart    = 80.0 // ankle separation in px above which legs are apart
	feetTogether = 40.0 // ankle separation in px below which legs are together
)

var (
	jackArmParts = []pose.Part{pose.LeftWrist, pose.RightWrist, pose.LeftShoulder, pose.RightShoulder}
	jackLegParts = []pose.Part{pose.LeftAnkle, pose.RightAnkle}
)

// JumpingJack tracks an arm half-cycle (raised above the shoulders, then
// lowered) and a leg half-cycle (apart, then together). Each completed
// half-cycle leaves a pending flag; a rep counts once both are pending, and
// both flags are then consumed.
type JumpingJack struct {
	armsUp    bool
	legsApart bool
	armDone   bool
	legDone   bool
	count     int
}

// NewJumpingJack returns a detector with arms down and feet together.
func NewJumpingJack() *JumpingJack { return &JumpingJack{} }

// Exercise implements Detector.
func (d *JumpingJack) Exercise() models.ExerciseKind { return models.JumpingJack }

// OnPose implements Detector.
func (d *JumpingJack) OnPose(p pose.Pose) (RepEvent, bool) {
	d.stepArms(p)
	d.stepLegs(p)

	if d.armDone && d.legDone {
		d.armDone, d.legDone = false, false
		d.count++
		return RepEvent{Exercise: models.JumpingJack, Value: d.count}, true
	}
	return RepEvent{}, false
}

func (d *JumpingJack) stepArms(p pose.Pose) {
	if !p.Confident(minConfidence, jackArmParts...) {
		return
	}
	k := p.Keypoints
	// Image y grows downward.
	raised := k[pose.LeftWrist].Y < k[pose.LeftShoulder].Y && k[pose.RightWrist].Y < k[pose.RightShoulder].Y
	switch {
	case raised && !d.armsUp:
		d.armsUp = true
	case !raised && d.armsUp:
		d.armsUp = false
		d.armDone = true
	}
}

func (d *JumpingJack) stepLegs(p pose.Pose) {
	if !p.Confident(minConfidence, jackLegParts...) {
		return
	}
	k := p.Keypoints
	dist := math.Abs(k[pose.LeftAnkle].X - k[pose.RightAnkle].X)
	switch {
	case dist > feetApart && !d.legsApart:
		d.legsApart = true
	case dist < feetTogether && d.legsApart:
		d.legsApart = false
		d.legDone = true
	}
}

// Pending reports the half-cycles completed since the last counted rep.
func (d *JumpingJack) Pending() (arms, legs bool) { return d.armDone, d.legDone }

// Count returns completed reps.
func (d *JumpingJack) Count() int { return d.count }

// Reset implements Detector.
func (d *JumpingJack) Reset() { *d = JumpingJack{} }
