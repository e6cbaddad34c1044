// Package progress folds detector events into per-exercise progress for one level
// and decides when the level is complete.
package progress

import (
	"github.com/claude/repquest/internal/models"
)

// Unit of an exercise's progress value.
type Unit string

const (
	UnitReps    Unit = "reps"
	UnitSeconds Unit = "duration_seconds"
)

// Exercise is the progress of one exercise in the current session.
type Exercise struct {
	Name    models.ExerciseKind `json:"exerciseName"`
	Current int                 `json:"current"`
	Target  int                 `json:"target"`
	Unit    Unit                `json:"unit"`
}

// Done reports whether the exercise reached its target.
func (e Exercise) Done() bool { return e.Current >= e.Target }

// Result is returned by Update.
type Result struct {
	Table []Exercise
	// JustCompleted is set when this update moved the exercise onto its target.
	JustCompleted bool
	// AllComplete is set exactly once per latch, on the update that finishes the level.
	AllComplete bool
}

// Aggregator holds the progress table. It is not safe for concurrent use; the
// session loop owns it.
type Aggregator struct {
	table   []Exercise
	index   map[models.ExerciseKind]int
	latched bool
}

// New builds a zeroed table from the level's exercises, in level order.
func New(level models.Level) *Aggregator {
	a := &Aggregator{
		table: make([]Exercise, 0, len(level.Exercises)),
		index: make(map[models.ExerciseKind]int, len(level.Exercises)),
	}
	for _, ex := range level.Exercises {
		unit := UnitReps
		if ex.Name.Timed() {
			unit = UnitSeconds
		}
		a.index[ex.Name] = len(a.table)
		a.table = append(a.table, Exercise{Name: ex.Name, Target: ex.Target(), Unit: unit})
	}
	return a
}

// Update records a cumulative value for name. Values for exercises not in the
// level are ignored, and a value lower than the current one never decreases it.
func (a *Aggregator) Update(name models.ExerciseKind, value int) Result {
	i, ok := a.index[name]
	if !ok {
		return Result{Table: a.Snapshot()}
	}
	row := &a.table[i]
	wasDone := row.Done()
	row.Current = max(row.Current, value)

	res := Result{JustCompleted: !wasDone && row.Done()}
	if row.Done() && !a.latched && a.allDone() {
		a.latched = true
		res.AllComplete = true
	}
	res.Table = a.Snapshot()
	return res
}

func (a *Aggregator) allDone() bool {
	for _, row := range a.table {
		if !row.Done() {
			return false
		}
	}
	return true
}

// Complete reports whether every exercise is at its target.
func (a *Aggregator) Complete() bool { return a.allDone() }

// Settle declares completion when every exercise already meets its target
// without any update, as with zero targets. It shares the latch with Update.
func (a *Aggregator) Settle() bool {
	if a.latched || !a.allDone() {
		return false
	}
	a.latched = true
	return true
}

// Latched reports whether completion has been declared.
func (a *Aggregator) Latched() bool { return a.latched }

// Reopen clears the completion latch so the next qualifying update declares
// completion again. Progress values are kept.
func (a *Aggregator) Reopen() { a.latched = false }

// Snapshot returns a copy of the table in level order.
func (a *Aggregator) Snapshot() []Exercise {
	out := make([]Exercise, len(a.table))
	copy(out, a.table)
	return out
}
