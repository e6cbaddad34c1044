package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repquest/internal/auth"
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

const testSecret = "server-test-secret-0123456789abcdef"

// fakeStore keeps levels and progress in memory.
type fakeStore struct {
	mu          sync.Mutex
	levels      map[int]models.Level
	users       map[uuid.UUID]string
	progress    map[uuid.UUID]models.UserProgress
	completions map[uuid.UUID][]storage.Completion
	getCalls    int
	failWith    error
}

func newFakeStore(levels ...models.Level) *fakeStore {
	fs := &fakeStore{
		levels:      make(map[int]models.Level),
		users:       make(map[uuid.UUID]string),
		progress:    make(map[uuid.UUID]models.UserProgress),
		completions: make(map[uuid.UUID][]storage.Completion),
	}
	for _, l := range levels {
		fs.levels[l.LevelNumber] = l.WithDefaults()
	}
	return fs
}

func (f *fakeStore) ListLevels(_ context.Context, filter storage.LevelFilter) ([]models.Level, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, 0, f.failWith
	}
	var matched []models.Level
	for _, l := range f.levels {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Difficulty != "" && l.Difficulty != filter.Difficulty {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].LevelNumber < matched[j].LevelNumber })
	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return append([]models.Level{}, matched[start:end]...), total, nil
}

func (f *fakeStore) GetLevel(ctx context.Context, n int) (models.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if err := ctx.Err(); err != nil {
		return models.Level{}, err
	}
	if f.failWith != nil {
		return models.Level{}, f.failWith
	}
	l, ok := f.levels[n]
	if !ok {
		return models.Level{}, storage.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) UpsertUser(_ context.Context, id uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = name
	return nil
}

func (f *fakeStore) getOrCreate(id uuid.UUID) models.UserProgress {
	p, ok := f.progress[id]
	if !ok {
		p = models.UserProgress{UserID: id, ClearedLevels: []int{}}
		f.progress[id] = p
	}
	return p
}

func (f *fakeStore) GetOrCreateUserProgress(_ context.Context, id uuid.UUID) (models.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrCreate(id), nil
}

func (f *fakeStore) CompleteLevel(_ context.Context, id uuid.UUID, n int) (models.UserProgress, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return models.UserProgress{}, false, f.failWith
	}
	l, ok := f.levels[n]
	if !ok {
		return models.UserProgress{}, false, storage.ErrNotFound
	}
	p := f.getOrCreate(id)
	p.ClearedLevels = append([]int{}, p.ClearedLevels...)
	paid := p.Clear(n, l.Rewards)
	if paid {
		f.completions[id] = append(f.completions[id], storage.Completion{LevelNumber: n, CompletedAt: time.Now()})
	}
	f.progress[id] = p
	return p, paid, nil
}

func (f *fakeStore) ListCompletions(_ context.Context, id uuid.UUID) ([]storage.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completions[id], nil
}

func (f *fakeStore) Ping(context.Context) error {
	return f.failWith
}

type recordedRequest struct {
	method, route string
	status        int
}

type fakeMetrics struct {
	mu        sync.Mutex
	requests  []recordedRequest
	completed map[bool]int
}

func (m *fakeMetrics) RequestServed(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, route, status})
}

func (m *fakeMetrics) LevelCompleted(rewarded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completed == nil {
		m.completed = make(map[bool]int)
	}
	m.completed[rewarded]++
}

var errStoreDown = errors.New("store down")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testLevels() []models.Level {
	return []models.Level{
		{LevelNumber: 1, Exercises: []models.Exercise{{Name: models.BicepCurl, Reps: 10}}},
		{LevelNumber: 2, Exercises: []models.Exercise{{Name: models.Squats, Reps: 10}}},
		{LevelNumber: 3, Exercises: []models.Exercise{{Name: models.Planks, Duration: 20}}},
		{LevelNumber: 4, Difficulty: models.DifficultyIntermediate, Rewards: models.Rewards{Coins: 75, XP: 40},
			Exercises: []models.Exercise{{Name: models.Pushups, Reps: 10}}},
		{LevelNumber: 5, Difficulty: models.DifficultyAdvanced},
	}
}

// newTestServer wires a Server over a fake store and returns a token for a
// fresh user.
func newTestServer(t *testing.T) (*Server, *fakeStore, *fakeMetrics, string, uuid.UUID) {
	t.Helper()
	mgr, err := auth.NewManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	user := uuid.New()
	token, _, err := mgr.Issue(user, "tester")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	store := newFakeStore(testLevels()...)
	metrics := &fakeMetrics{}
	return New(store, mgr, metrics, Options{}, testLogger()), store, metrics, token, user
}
