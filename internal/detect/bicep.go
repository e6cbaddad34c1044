package detect

import (
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

const (
	curlContracted = 60.0  // elbow angle below this: curl is up
	curlExtended   = 160.0 // elbow angle above this: arm is down again
)

var curlParts = []pose.Part{
	pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist,
	pose.RightShoulder, pose.RightElbow, pose.RightWrist,
}

// armCurl tracks one arm through contracted -> extended cycles.
type armCurl struct {
	contracted bool
	count      int
}

func (a *armCurl) step(angle float64) {
	switch {
	case angle < curlContracted && !a.contracted:
		a.contracted = true
	case angle > curlExtended && a.contracted:
		a.contracted = false
		a.count++
	}
}

// BicepCurl counts curls on each arm independently and reports the larger count,
// so a curl on either arm is a rep but alternating arms are not summed.
type BicepCurl struct {
	left, right armCurl
	reported    int
}

// NewBicepCurl returns a detector in the arms-down state.
func NewBicepCurl() *BicepCurl { return &BicepCurl{} }

// Exercise implements Detector.
func (d *BicepCurl) Exercise() models.ExerciseKind { return models.BicepCurl }

// OnPose implements Detector.
func (d *BicepCurl) OnPose(p pose.Pose) (RepEvent, bool) {
	if !p.Confident(minConfidence, curlParts...) {
		return RepEvent{}, false
	}
	d.left.step(p.JointAngle(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist))
	d.right.step(p.JointAngle(pose.RightShoulder, pose.RightElbow, pose.RightWrist))

	if n := d.Count(); n > d.reported {
		d.reported = n
		return RepEvent{Exercise: models.BicepCurl, Value: n}, true
	}
	return RepEvent{}, false
}

// Count returns max(left, right).
func (d *BicepCurl) Count() int { return max(d.left.count, d.right.count) }

// Sides returns the per-arm counts.
func (d *BicepCurl) Sides() (left, right int) { return d.left.count, d.right.count }

// Reset implements Detector.
func (d *BicepCurl) Reset() { *d = BicepCurl{} }
