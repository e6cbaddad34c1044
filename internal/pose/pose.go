// Package pose holds the keypoint model produced by the pose estimator and the
// geometry helpers the exercise detectors evaluate against it.
package pose

import "math"

// Part identifies a body keypoint. Values follow the PoseNet output order.
type Part int

const (
	Nose Part = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle

	// NumParts is the number of keypoints in a complete pose.
	NumParts = 17
)

var partNames = [NumParts]string{
	"nose", "leftEye", "rightEye", "leftEar", "rightEar",
	"leftShoulder", "rightShoulder", "leftElbow", "rightElbow",
	"leftWrist", "rightWrist", "leftHip", "rightHip",
	"leftKnee", "rightKnee", "leftAnkle", "rightAnkle",
}

// String returns the PoseNet part name.
func (p Part) String() string {
	if p < 0 || int(p) >= NumParts {
		return "unknown"
	}
	return partNames[p]
}

// ParsePart maps a PoseNet part name to its Part.
func ParsePart(name string) (Part, bool) {
	for i, n := range partNames {
		if n == name {
			return Part(i), true
		}
	}
	return 0, false
}

// Keypoint is one tracked joint in image pixel coordinates.
type Keypoint struct {
	Part       Part    `json:"part"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Pose is a full-body snapshot from one video frame, indexed by Part.
type Pose struct {
	Score     float64    `json:"score"`
	Keypoints []Keypoint `json:"keypoints"`
}

// Complete reports whether the pose carries all keypoints.
func (p Pose) Complete() bool {
	return len(p.Keypoints) == NumParts
}

// At returns the keypoint for part. ok is false when the pose is malformed.
func (p Pose) At(part Part) (Keypoint, bool) {
	if part < 0 || int(part) >= len(p.Keypoints) {
		return Keypoint{}, false
	}
	return p.Keypoints[part], true
}

// Confident reports whether every listed part is present with confidence at or
// above threshold.
func (p Pose) Confident(threshold float64, parts ...Part) bool {
	if !p.Complete() {
		return false
	}
	for _, part := range parts {
		kp, ok := p.At(part)
		if !ok || math.IsNaN(kp.Confidence) || kp.Confidence < threshold {
			return false
		}
	}
	return true
}

// Angle returns the angle at vertex b formed by a-b-c, in degrees within [0, 180].
func Angle(a, b, c Keypoint) float64 {
	rad := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// JointAngle is Angle over three parts of the same pose.
func (p Pose) JointAngle(a, b, c Part) float64 {
	return Angle(p.Keypoints[a], p.Keypoints[b], p.Keypoints[c])
}
