package detect

import (
	"math"

	"github.com/claude/repquest/internal/pose"
)

// standing returns a fully confident pose: arms hanging straight, legs straight,
// feet together.
func standing() pose.Pose {
	p := pose.Pose{Score: 1, Keypoints: make([]pose.Keypoint, pose.NumParts)}
	for i := range p.Keypoints {
		p.Keypoints[i] = pose.Keypoint{Part: pose.Part(i), Confidence: 1}
	}
	place(&p, pose.LeftShoulder, 200, 100)
	place(&p, pose.RightShoulder, 300, 100)
	setJoint(&p, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, 180)
	setJoint(&p, pose.RightShoulder, pose.RightElbow, pose.RightWrist, 180)
	place(&p, pose.LeftHip, 235, 300)
	place(&p, pose.RightHip, 265, 300)
	setJoint(&p, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, 180)
	setJoint(&p, pose.RightHip, pose.RightKnee, pose.RightAnkle, 180)
	return p
}

func place(p *pose.Pose, part pose.Part, x, y float64) {
	p.Keypoints[part].X = x
	p.Keypoints[part].Y = y
}

// setJoint positions b 100px below a and c so that the angle at b is theta.
func setJoint(p *pose.Pose, a, b, c pose.Part, theta float64) {
	ax, ay := p.Keypoints[a].X, p.Keypoints[a].Y
	bx, by := ax, ay+100
	r := theta * math.Pi / 180
	place(p, b, bx, by)
	place(p, c, bx+100*math.Sin(r), by-100*math.Cos(r))
}

func arms(left, right float64) pose.Pose {
	p := standing()
	setJoint(&p, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, left)
	setJoint(&p, pose.RightShoulder, pose.RightElbow, pose.RightWrist, right)
	return p
}

func legs(left, right float64) pose.Pose {
	p := standing()
	setJoint(&p, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, left)
	setJoint(&p, pose.RightHip, pose.RightKnee, pose.RightAnkle, right)
	return p
}

func withConfidence(p pose.Pose, part pose.Part, c float64) pose.Pose {
	out := pose.Pose{Score: p.Score, Keypoints: append([]pose.Keypoint(nil), p.Keypoints...)}
	out.Keypoints[part].Confidence = c
	return out
}

// feed runs poses through d and returns the values of emitted events.
func feed(d Detector, poses ...pose.Pose) []int {
	var out []int
	for _, p := range poses {
		if ev, ok := d.OnPose(p); ok {
			out = append(out, ev.Value)
		}
	}
	return out
}
