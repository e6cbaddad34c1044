package detect

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/pose"
)

// TestBicepCurlCountsOnExtension verifies a rep is counted on the contracted to
// extended edge and not on the contraction.
func TestBicepCurlCountsOnExtension(t *testing.T) {
	d := NewBicepCurl()
	assert.Empty(t, feed(d, arms(170, 170), arms(45, 45)))
	assert.Equal(t, []int{1}, feed(d, arms(170, 170)))
	assert.Equal(t, 1, d.Count())
}

// TestBicepCurlHysteresis verifies that dithering between the thresholds never
// counts.
func TestBicepCurlHysteresis(t *testing.T) {
	d := NewBicepCurl()
	got := feed(d, arms(100, 100), arms(65, 65), arms(155, 155), arms(70, 70), arms(150, 150))
	assert.Empty(t, got)

	got = feed(d, arms(59, 59), arms(100, 100), arms(59, 59), arms(161, 161), arms(161, 161))
	assert.Equal(t, []int{1}, got)
}

// TestBicepCurlReportsMaxOfArms checks the count is max(left, right) and that
// alternating arms are not summed.
func TestBicepCurlReportsMaxOfArms(t *testing.T) {
	d := NewBicepCurl()
	var got []int
	for i := 0; i < 3; i++ {
		got = append(got, feed(d, arms(40, 170), arms(170, 170))...)
	}
	for i := 0; i < 2; i++ {
		got = append(got, feed(d, arms(170, 40), arms(170, 170))...)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	left, right := d.Sides()
	assert.Equal(t, 3, left)
	assert.Equal(t, 2, right)
	assert.Equal(t, 3, d.Count())

	// Right arm catches up and overtakes.
	got = feed(d, arms(170, 40), arms(170, 170), arms(170, 40), arms(170, 170))
	assert.Equal(t, []int{4}, got)
}

// TestBicepCurlRandomSequences feeds seeded random arm angles and checks the
// count against contracted-to-extended edges counted per arm by hand.
func TestBicepCurlRandomSequences(t *testing.T) {
	angles := []float64{30, 59, 61, 100, 159, 161, 175}
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		d := NewBicepCurl()
		var (
			leftDown, rightDown   bool
			leftEdges, rightEdges int
			last                  int
		)
		edge := func(down *bool, edges *int, angle float64) {
			switch {
			case angle < curlContracted:
				*down = true
			case angle > curlExtended && *down:
				*down = false
				*edges++
			}
		}

		for step := 0; step < 60; step++ {
			l, r := angles[rng.Intn(len(angles))], angles[rng.Intn(len(angles))]
			edge(&leftDown, &leftEdges, l)
			edge(&rightDown, &rightEdges, r)

			ev, ok := d.OnPose(arms(l, r))
			want := max(leftEdges, rightEdges)
			if ok {
				require.Greater(t, ev.Value, last, "run %d step %d", run, step)
				require.Equal(t, want, ev.Value, "run %d step %d", run, step)
				last = ev.Value
			} else {
				require.Equal(t, last, want, "run %d step %d: missed an event", run, step)
			}
		}

		left, right := d.Sides()
		assert.Equal(t, leftEdges, left, "run %d", run)
		assert.Equal(t, rightEdges, right, "run %d", run)
		assert.Equal(t, max(leftEdges, rightEdges), d.Count(), "run %d", run)
	}
}

// TestBicepCurlSkipsLowConfidence ensures an unconfident tick neither advances
// nor resets the arm state.
func TestBicepCurlSkipsLowConfidence(t *testing.T) {
	d := NewBicepCurl()
	feed(d, arms(40, 40))
	assert.Empty(t, feed(d, withConfidence(arms(170, 170), pose.LeftWrist, 0.49)))
	assert.Equal(t, []int{1}, feed(d, arms(170, 170)))
}

// TestSquatsCountsFullCycle covers a normal squat and the single-leg entry.
func TestSquatsCountsFullCycle(t *testing.T) {
	d := NewSquats()
	assert.Empty(t, feed(d, legs(170, 170), legs(80, 85)))
	assert.True(t, d.Squatting())
	assert.Equal(t, []int{1}, feed(d, legs(170, 170)))

	// Only the right leg is visible going down.
	down := withConfidence(legs(170, 70), pose.LeftKnee, 0.1)
	assert.Empty(t, feed(d, down))
	assert.True(t, d.Squatting())
	assert.Equal(t, []int{2}, feed(d, legs(165, 165)))
}

// TestSquatsNeedsBothLegsStraight verifies one straight leg does not finish the rep.
func TestSquatsNeedsBothLegsStraight(t *testing.T) {
	d := NewSquats()
	assert.Empty(t, feed(d, legs(80, 80), legs(170, 120), legs(120, 170)))
	assert.True(t, d.Squatting())
	assert.Equal(t, []int{1}, feed(d, legs(170, 170)))
}

// TestSquatsSkipsLowConfidenceTick checks an in-progress squat survives an
// unconfident tick that would otherwise count.
func TestSquatsSkipsLowConfidenceTick(t *testing.T) {
	d := NewSquats()
	feed(d, legs(80, 80))
	require.True(t, d.Squatting())

	assert.Empty(t, feed(d, withConfidence(legs(170, 170), pose.LeftKnee, 0.2)))
	assert.True(t, d.Squatting())
	assert.Equal(t, 0, d.Count())

	assert.Equal(t, []int{1}, feed(d, legs(170, 170)))
}

// TestSquatsMalformedPose ensures a pose with missing keypoints is ignored.
func TestSquatsMalformedPose(t *testing.T) {
	d := NewSquats()
	feed(d, legs(80, 80))
	assert.Empty(t, feed(d, pose.Pose{Keypoints: make([]pose.Keypoint, 5)}))
	assert.True(t, d.Squatting())
}

// TestPushupsRequireBothArms verifies a single bent arm never counts.
func TestPushupsRequireBothArms(t *testing.T) {
	d := NewPushups()
	assert.Empty(t, feed(d, arms(160, 160), arms(40, 160), arms(160, 160)))
	assert.Equal(t, 0, d.Count())

	assert.Equal(t, []int{1}, feed(d, arms(40, 45), arms(155, 155)))
	assert.Equal(t, []int{2}, feed(d, arms(40, 45), arms(100, 100), arms(155, 155)))
}

// TestPushupsLowerConfidenceThreshold checks arm keypoints between 0.3 and 0.5
// are accepted and those below 0.3 are not.
func TestPushupsLowerConfidenceThreshold(t *testing.T) {
	d := NewPushups()
	feed(d, withConfidence(arms(40, 40), pose.RightElbow, 0.35))
	assert.Empty(t, feed(d, withConfidence(arms(160, 160), pose.RightElbow, 0.29)))
	assert.Equal(t, []int{1}, feed(d, withConfidence(arms(160, 160), pose.RightElbow, 0.31)))
}

func jackPose(armsUp, feetApart bool) pose.Pose {
	p := standing()
	if armsUp {
		place(&p, pose.LeftWrist, 150, 40)
		place(&p, pose.RightWrist, 350, 40)
	}
	if feetApart {
		place(&p, pose.LeftAnkle, 180, 500)
		place(&p, pose.RightAnkle, 320, 500)
	}
	return p
}

// TestJumpingJackCountsBothHalves verifies a rep needs both an arm and a leg
// half-cycle.
func TestJumpingJackCountsBothHalves(t *testing.T) {
	d := NewJumpingJack()
	got := feed(d, jackPose(false, false), jackPose(true, true), jackPose(false, false))
	assert.Equal(t, []int{1}, got)
	arms, legs := d.Pending()
	assert.False(t, arms)
	assert.False(t, legs)
}

// TestJumpingJackPendingFlags checks that an arm half-cycle alone waits for the
// legs and does not count twice.
func TestJumpingJackPendingFlags(t *testing.T) {
	d := NewJumpingJack()
	assert.Empty(t, feed(d, jackPose(true, false), jackPose(false, false)))
	arms, legs := d.Pending()
	assert.True(t, arms)
	assert.False(t, legs)

	// A second arm cycle does not add a second pending rep.
	assert.Empty(t, feed(d, jackPose(true, false), jackPose(false, false)))

	assert.Equal(t, []int{1}, feed(d, jackPose(false, true), jackPose(false, false)))
	assert.Equal(t, 1, d.Count())
}

// TestJumpingJackFeetHysteresis ensures a separation between the thresholds
// leaves the legs state unchanged.
func TestJumpingJackFeetHysteresis(t *testing.T) {
	d := NewJumpingJack()
	mid := standing()
	place(&mid, pose.LeftAnkle, 200, 500)
	place(&mid, pose.RightAnkle, 260, 500)

	feed(d, standing(), mid, standing())
	_, legs := d.Pending()
	assert.False(t, legs, "60px apart is not apart")

	feed(d, jackPose(false, true), mid)
	_, legs = d.Pending()
	assert.False(t, legs, "60px apart is not together")

	feed(d, standing())
	_, legs = d.Pending()
	assert.True(t, legs)
}

func plankPose(valid bool) pose.Pose {
	p := standing()
	place(&p, pose.LeftShoulder, 100, 300)
	place(&p, pose.RightShoulder, 110, 305)
	place(&p, pose.LeftHip, 250, 300)
	place(&p, pose.RightHip, 260, 305)
	place(&p, pose.LeftAnkle, 400, 300)
	place(&p, pose.RightAnkle, 410, 305)
	if !valid {
		// Hips piked up.
		place(&p, pose.LeftHip, 250, 150)
		place(&p, pose.RightHip, 260, 155)
	}
	return p
}

// requireTickers waits until exactly n tickers are registered on clock.
func requireTickers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n), "want %d active tickers", n)
}

func tick(t *testing.T, d Timed, clock *clockwork.FakeClock) (RepEvent, bool) {
	t.Helper()
	clock.Advance(time.Second)
	select {
	case now := <-d.Timer():
		return d.OnTimer(now)
	default:
		return RepEvent{}, false
	}
}

// TestPlankCountsSeconds holds a plank for 5.4s and expects events 1 through 5.
func TestPlankCountsSeconds(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	d := NewPlank(clock)
	assert.Nil(t, d.Timer())

	feed(d, plankPose(true))
	require.True(t, d.Holding())
	require.NotNil(t, d.Timer())

	var got []int
	for i := 0; i < 5; i++ {
		feed(d, plankPose(true))
		ev, ok := tick(t, d, clock)
		require.True(t, ok)
		assert.Equal(t, models.Planks, ev.Exercise)
		got = append(got, ev.Value)
	}
	clock.Advance(400 * time.Millisecond)
	feed(d, plankPose(false))

	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.False(t, d.Holding())
	assert.Nil(t, d.Timer())
	requireTickers(t, clock, 0)
	assert.Equal(t, 5, d.Seconds())
}

// TestPlankResumesCumulative verifies a broken plank keeps its whole seconds and
// drops the partial one.
func TestPlankResumesCumulative(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	d := NewPlank(clock)

	feed(d, plankPose(true))
	tick(t, d, clock)
	tick(t, d, clock)
	clock.Advance(700 * time.Millisecond)
	feed(d, plankPose(false))

	_, ok := tick(t, d, clock)
	assert.False(t, ok, "no ticks while out of the plank")

	feed(d, plankPose(true))
	ev, ok := tick(t, d, clock)
	require.True(t, ok)
	assert.Equal(t, 3, ev.Value)
}

// TestPlankIgnoresUnconfidentPose checks a low-confidence tick does not stop
// the running segment.
func TestPlankIgnoresUnconfidentPose(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	d := NewPlank(clock)
	feed(d, plankPose(true))
	feed(d, withConfidence(plankPose(false), pose.LeftHip, 0.1))
	assert.True(t, d.Holding())
	ev, ok := tick(t, d, clock)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Value)
}

// TestPlankResetStopsTicker verifies Reset releases the timer.
func TestPlankResetStopsTicker(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	d := NewPlank(clock)
	feed(d, plankPose(true))
	requireTickers(t, clock, 1)
	d.Reset()
	requireTickers(t, clock, 0)
	assert.Nil(t, d.Timer())
	assert.Equal(t, 0, d.Seconds())
}

// TestPlankPauseKeepsSeconds verifies Pause stops the timer and a later
// segment continues from the reported total.
func TestPlankPauseKeepsSeconds(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	d := NewPlank(clock)
	feed(d, plankPose(true))
	tick(t, d, clock)
	d.Pause()
	assert.Nil(t, d.Timer())
	requireTickers(t, clock, 0)

	feed(d, plankPose(true))
	ev, ok := tick(t, d, clock)
	require.True(t, ok)
	assert.Equal(t, 2, ev.Value)
}

// TestForLevel builds detectors in level order and rejects unknown kinds.
func TestForLevel(t *testing.T) {
	lvl := models.Level{Exercises: []models.Exercise{
		{Name: models.Squats, Reps: 10},
		{Name: models.Planks, Duration: 30},
	}}
	ds, err := ForLevel(lvl, clockwork.NewFakeClock())
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, models.Squats, ds[0].Exercise())
	_, timed := ds[1].(Timed)
	assert.True(t, timed)

	_, err = New("burpees", clockwork.NewRealClock())
	assert.Error(t, err)
}
