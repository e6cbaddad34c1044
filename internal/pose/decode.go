package pose

import (
	"encoding/json"
	"fmt"
)

// wirePose mirrors the PoseNet estimateSinglePose output.
type wirePose struct {
	Score     float64        `json:"score"`
	Keypoints []wireKeypoint `json:"keypoints"`
}

type wireKeypoint struct {
	Part     string  `json:"part"`
	Score    float64 `json:"score"`
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
}

// Decode parses a PoseNet-shaped JSON document. Keypoints are placed by part name,
// so input order does not matter. Missing parts keep zero confidence.
func Decode(data []byte) (Pose, error) {
	var w wirePose
	if err := json.Unmarshal(data, &w); err != nil {
		return Pose{}, fmt.Errorf("decoding pose: %w", err)
	}
	if len(w.Keypoints) == 0 {
		return Pose{}, fmt.Errorf("decoding pose: no keypoints")
	}

	p := Pose{Score: w.Score, Keypoints: make([]Keypoint, NumParts)}
	for i := range p.Keypoints {
		p.Keypoints[i].Part = Part(i)
	}
	for _, kp := range w.Keypoints {
		part, ok := ParsePart(kp.Part)
		if !ok {
			return Pose{}, fmt.Errorf("decoding pose: unknown part %q", kp.Part)
		}
		p.Keypoints[part] = Keypoint{
			Part:       part,
			X:          kp.Position.X,
			Y:          kp.Position.Y,
			Confidence: kp.Score,
		}
	}
	return p, nil
}

// Encode renders a pose in the PoseNet JSON shape accepted by Decode.
func Encode(p Pose) ([]byte, error) {
	w := wirePose{Score: p.Score, Keypoints: make([]wireKeypoint, 0, len(p.Keypoints))}
	for _, kp := range p.Keypoints {
		var wk wireKeypoint
		wk.Part = kp.Part.String()
		wk.Score = kp.Confidence
		wk.Position.X = kp.X
		wk.Position.Y = kp.Y
		w.Keypoints = append(w.Keypoints, wk)
	}
	return json.Marshal(w)
}
