package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/repquest/internal/auth"
	"github.com/claude/repquest/internal/client"
	"github.com/claude/repquest/internal/journal"
	"github.com/claude/repquest/internal/live"
	"github.com/claude/repquest/internal/metrics"
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/progress"
	"github.com/claude/repquest/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeRecorder struct {
	entries []session.Result
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, userID string, res session.Result) (journal.Entry, error) {
	if f.err != nil {
		return journal.Entry{}, f.err
	}
	f.entries = append(f.entries, res)
	return journal.Entry{ID: uuid.New(), UserID: userID, LevelNumber: res.Level.LevelNumber}, nil
}

type fakeHistory struct {
	gotUser  string
	gotLimit int
	entries  []journal.Entry
}

func (f *fakeHistory) List(_ context.Context, userID string, limit int) ([]journal.Entry, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.entries, nil
}

type fakeAPI struct {
	query    client.LevelQuery
	page     models.LevelPage
	progress models.UserProgress
	err      error
}

func (f *fakeAPI) ListLevels(_ context.Context, q client.LevelQuery) (models.LevelPage, error) {
	f.query = q
	return f.page, f.err
}

func (f *fakeAPI) UserProgress(context.Context) (models.UserProgress, error) {
	return f.progress, f.err
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "history", "levels", "progress", "mint-token", "mcp"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestRunCommand_RequiresOneLevel(t *testing.T) {
	assert.Error(t, runCmd.Args(runCmd, []string{}))
	assert.NoError(t, runCmd.Args(runCmd, []string{"3"}))
	assert.Error(t, runCmd.Args(runCmd, []string{"3", "4"}))
}

func TestParseLevelNumber(t *testing.T) {
	n, err := parseLevelNumber("12")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseLevelNumber(bad)
		assert.Error(t, err, bad)
	}
}

func TestFinishSession_Completed(t *testing.T) {
	rec := &fakeRecorder{}
	var out bytes.Buffer
	res := session.Result{
		Outcome:  session.OutcomeCompleted,
		Level:    models.Level{LevelNumber: 2},
		Duration: 42 * time.Second,
		UserProgress: &models.UserProgress{
			ClearedLevels: []int{1, 2},
			Stats:         models.Stats{TotalXP: 50, TotalCoins: 100},
		},
	}

	err := finishSession(context.Background(), rec, &out, "u1", res)
	require.NoError(t, err)
	require.Len(t, rec.entries, 1)
	assert.Contains(t, out.String(), "Level 2 completed after 42s")
	assert.Contains(t, out.String(), "Total XP: 50  Coins: 100  Cleared: 2 levels")
	assert.Contains(t, out.String(), "Journal entry")
}

func TestFinishSession_AbandonedIsAnError(t *testing.T) {
	rec := &fakeRecorder{}
	res := session.Result{Outcome: session.OutcomeAbandoned, Err: session.ErrStreamEnded}

	err := finishSession(context.Background(), rec, io.Discard, "u1", res)
	require.ErrorIs(t, err, ErrSessionAbandoned)
	assert.Contains(t, err.Error(), "camera stream ended")
	assert.Len(t, rec.entries, 1, "abandoned sessions are still journaled")
}

func TestFinishSession_CancelledIsNotAnError(t *testing.T) {
	err := finishSession(context.Background(), &fakeRecorder{}, io.Discard, "u1",
		session.Result{Outcome: session.OutcomeCancelled})
	assert.NoError(t, err)
}

func TestFinishSession_RecordFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	err := finishSession(context.Background(), rec, io.Discard, "u1",
		session.Result{Outcome: session.OutcomeCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPrintHistory(t *testing.T) {
	now := time.Now()
	h := &fakeHistory{entries: []journal.Entry{
		{LevelNumber: 2, Outcome: "completed", StartedAt: now, Duration: time.Minute, TotalXP: 50},
		{LevelNumber: 4, Outcome: "abandoned", StartedAt: now.Add(-time.Hour)},
	}}
	var out bytes.Buffer
	require.NoError(t, printHistory(context.Background(), h, &out, "u1", 5))

	assert.Equal(t, "u1", h.gotUser)
	assert.Equal(t, 5, h.gotLimit)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "OUTCOME")
	assert.Contains(t, lines[1], "completed")
	assert.Contains(t, lines[2], "abandoned")
}

func TestPrintHistory_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printHistory(context.Background(), &fakeHistory{}, &out, "", 20))
	assert.Equal(t, "No sessions recorded\n", out.String())
}

func TestPrintLevels(t *testing.T) {
	api := &fakeAPI{page: models.LevelPage{
		Levels: []models.Level{
			{LevelNumber: 3, Difficulty: "beginner", Status: "active", Rewards: models.Rewards{Coins: 50, XP: 25},
				Exercises: []models.Exercise{{Name: models.Planks, Duration: 20}}},
			{LevelNumber: 8, Difficulty: "beginner", Status: "pending"},
		},
		CurrentPage: 1, TotalPages: 1, TotalLevels: 2,
	}}
	q := client.LevelQuery{Page: 1, Limit: 10, Status: "active"}

	var out bytes.Buffer
	require.NoError(t, printLevels(context.Background(), api, &out, q))
	assert.Equal(t, q, api.query)
	assert.Contains(t, out.String(), "Planks 20s")
	assert.Contains(t, out.String(), "25xp 50c")
	assert.Contains(t, out.String(), "page 1 of 1 (2 levels)")
}

func TestPrintLevels_Error(t *testing.T) {
	err := printLevels(context.Background(), &fakeAPI{err: client.ErrUnauthorized}, io.Discard, client.LevelQuery{})
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestPrintProgress(t *testing.T) {
	api := &fakeAPI{progress: models.UserProgress{
		ClearedLevels: []int{1, 2, 3},
		Stats:         models.Stats{TotalXP: 75, TotalCoins: 150, CurrentStreak: 3, HighestStreak: 3},
	}}
	var out bytes.Buffer
	require.NoError(t, printProgress(context.Background(), api, &out))
	assert.Contains(t, out.String(), "Cleared levels: 1, 2, 3")
	assert.Contains(t, out.String(), "XP: 75  Coins: 150")
	assert.Contains(t, out.String(), "Streak: 3 (best 3)")

	out.Reset()
	require.NoError(t, printProgress(context.Background(), &fakeAPI{}, &out))
	assert.Contains(t, out.String(), "Cleared levels: none")
}

func TestMintToken(t *testing.T) {
	id := uuid.New()
	var out bytes.Buffer
	require.NoError(t, mintToken(&out, testSecret, id.String(), "Ada", time.Hour))

	var token string
	for _, line := range strings.Split(out.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "token: "); ok {
			token = v
		}
	}
	require.NotEmpty(t, token)

	mgr, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)
	claims, err := mgr.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID())
	assert.Equal(t, "Ada", claims.Name)
}

func TestMintToken_Rejects(t *testing.T) {
	assert.Error(t, mintToken(io.Discard, "short", "", "", time.Hour))
	assert.Error(t, mintToken(io.Discard, testSecret, "not-a-uuid", "", time.Hour))
}

func TestTerminalObserver(t *testing.T) {
	var out bytes.Buffer
	o := newTerminalObserver(&out)

	o.StateChanged(session.StateActive)
	table := []progress.Exercise{
		{Name: models.Squats, Current: 1, Target: 10, Unit: progress.UnitReps},
		{Name: models.Planks, Current: 0, Target: 20, Unit: progress.UnitSeconds},
	}
	o.Progress(table)
	table[0].Current = 2
	o.Progress(table)
	o.Notice(session.Notice{Kind: session.NoticeRetry, Message: "server busy"})
	o.Peer(live.Event{UserName: "Bo", Exercise: "Squats", Progress: 4})

	got := out.String()
	assert.Contains(t, got, "[active]")
	assert.Equal(t, 1, strings.Count(got, "Planks"), "unchanged exercises are not reprinted")
	assert.Contains(t, got, "Squats       2/10 reps")
	assert.Contains(t, got, "Planks       0/20 s")
	assert.Contains(t, got, "retrying: server busy")
	assert.Contains(t, got, "Bo: Squats 4")
}

func TestServeMetrics_StopsCleanly(t *testing.T) {
	_, reg := metrics.NewTestManagerAndRegistry()
	stop := serveMetrics(context.Background(), "127.0.0.1:0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, stop())
}
