// Package capture adapts a frame source and a pose estimator into the pose
// stream a session consumes.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/claude/repquest/internal/pose"
)

// ErrUnavailable is returned by Camera.Start when no frames can be produced.
var ErrUnavailable = errors.New("camera unavailable")

// Frame is one captured image or, for replayed sources, one recorded pose payload.
type Frame struct {
	Seq  uint64
	At   time.Time
	Data []byte
}

// Stream delivers frames until stopped. The channel holds at most one frame:
// a frame that arrives while the previous one is still waiting replaces it.
// Frames is closed when the stream ends or is stopped.
type Stream interface {
	Frames() <-chan Frame
	// Stop releases the source. It is safe to call more than once.
	Stop()
	// Dropped counts frames replaced before the consumer read them.
	Dropped() uint64
}

// Camera acquires a frame stream. Start may be called again after the previous
// stream was stopped.
type Camera interface {
	Start(ctx context.Context) (Stream, error)
}

// Estimator turns a frame into a pose. An error marks the frame as skipped.
type Estimator interface {
	Estimate(ctx context.Context, f Frame) (pose.Pose, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(ctx context.Context, f Frame) (pose.Pose, error)

// Estimate implements Estimator.
func (fn EstimatorFunc) Estimate(ctx context.Context, f Frame) (pose.Pose, error) {
	return fn(ctx, f)
}
