// Package detect turns a stream of poses into exercise repetition events.
//
// Each exercise has its own finite-state detector. Detectors use two thresholds
// per motion (hysteresis) and count only on the edge from the contracted to the
// extended state, so a pose that lingers near a boundary is never counted twice.
// A detector owns its state exclusively; the session loop calls it from a single
// goroutine, so no locking is needed.
//
// Detectors never fail. A pose whose required keypoints fall below the
// confidence threshold, or a malformed pose, is a skipped tick that neither
// advances nor resets the detector.
package detect

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

// Keypoint confidence thresholds.
const (
	minConfidence       = 0.5
	minPushupConfidence = 0.3 // arm keypoints are often occluded in a pushup
)

// RepEvent reports progress for one exercise. Value is cumulative: a rep count,
// or elapsed seconds for timed exercises.
type RepEvent struct {
	Exercise models.ExerciseKind `json:"exercise"`
	Value    int                 `json:"value"`
}

// Detector consumes one pose per tick.
type Detector interface {
	Exercise() models.ExerciseKind
	// OnPose evaluates a pose and returns an event when the cumulative value
	// changed on this tick.
	OnPose(p pose.Pose) (RepEvent, bool)
	// Reset returns the detector to its initial state and releases any timer.
	Reset()
}

// Timed is a detector that also reports on a wall-clock interval. Timer returns
// nil while no interval is running, which blocks forever in a select.
type Timed interface {
	Detector
	Timer() <-chan time.Time
	OnTimer(now time.Time) (RepEvent, bool)
	// Pause ends a running interval without losing the time already reported.
	Pause()
}

// New builds the detector for kind.
func New(kind models.ExerciseKind, clock clockwork.Clock) (Detector, error) {
	switch kind {
	case models.BicepCurl:
		return NewBicepCurl(), nil
	case models.Squats:
		return NewSquats(), nil
	case models.Pushups:
		return NewPushups(), nil
	case models.Planks:
		return NewPlank(clock), nil
	case models.JumpingJack:
		return NewJumpingJack(), nil
	default:
		return nil, fmt.Errorf("no detector for exercise %q", kind)
	}
}

// ForLevel builds one detector per exercise required by the level, in level order.
func ForLevel(level models.Level, clock clockwork.Clock) ([]Detector, error) {
	out := make([]Detector, 0, len(level.Exercises))
	for _, ex := range level.Exercises {
		d, err := New(ex.Name, clock)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
