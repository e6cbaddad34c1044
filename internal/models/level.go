package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ExerciseKind names one of the exercises the detectors recognize.
type ExerciseKind string

const (
	BicepCurl   ExerciseKind = "BicepCurl"
	Squats      ExerciseKind = "Squats"
	Pushups     ExerciseKind = "Pushups"
	Planks      ExerciseKind = "Planks"
	JumpingJack ExerciseKind = "JumpingJack"
)

// ExerciseKinds lists every supported exercise in a stable order.
var ExerciseKinds = []ExerciseKind{BicepCurl, Squats, Pushups, Planks, JumpingJack}

// Valid reports whether k is a supported exercise.
func (k ExerciseKind) Valid() bool {
	for _, known := range ExerciseKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Timed reports whether progress for k is measured in seconds rather than reps.
func (k ExerciseKind) Timed() bool {
	return k == Planks
}

// Level difficulties.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// Level statuses. A level with no exercises stays pending.
const (
	LevelPending = "pending"
	LevelActive  = "active"
)

// Exercise is one required exercise of a level.
type Exercise struct {
	Name     ExerciseKind `json:"name"`
	Reps     int          `json:"reps"`
	Duration int          `json:"duration"`
	Calories int          `json:"calories"`
}

// Target returns the amount the session must reach for this exercise.
// Timed exercises fall back to Duration when no rep target is set.
func (e Exercise) Target() int {
	if e.Name.Timed() && e.Reps == 0 {
		return e.Duration
	}
	return e.Reps
}

// Rewards is the payout for clearing a level.
type Rewards struct {
	Coins int `json:"coins"`
	XP    int `json:"xp"`
}

// Level is a bundle of required exercises with a reward payout.
type Level struct {
	LevelNumber int        `json:"levelNumber"`
	Aim         string     `json:"aim"`
	Exercises   []Exercise `json:"exercises"`
	Difficulty  string     `json:"difficulty"`
	Rewards     Rewards    `json:"rewards"`
	Status      string     `json:"status"`

	// Per-user view fields, filled when a level is read on behalf of a user.
	IsCompleted bool `json:"isCompleted"`
	IsUnlocked  bool `json:"isUnlocked"`
}

// Validate checks that a level payload can drive a session.
func (l Level) Validate() error {
	if l.LevelNumber < 1 {
		return fmt.Errorf("invalid level number %d", l.LevelNumber)
	}
	if len(l.Exercises) == 0 {
		return fmt.Errorf("level %d has no exercises", l.LevelNumber)
	}
	seen := make(map[ExerciseKind]bool, len(l.Exercises))
	for _, ex := range l.Exercises {
		if !ex.Name.Valid() {
			return fmt.Errorf("level %d: unknown exercise %q", l.LevelNumber, ex.Name)
		}
		if seen[ex.Name] {
			return fmt.Errorf("level %d: duplicate exercise %q", l.LevelNumber, ex.Name)
		}
		seen[ex.Name] = true
		if ex.Target() < 0 {
			return fmt.Errorf("level %d: negative target for %s", l.LevelNumber, ex.Name)
		}
	}
	return nil
}

// UnlockedFor reports whether levelNumber is playable given the cleared levels.
// The first three levels are always open; later ones need the previous cleared.
func UnlockedFor(levelNumber int, cleared []int) bool {
	if levelNumber <= 3 {
		return true
	}
	for _, n := range cleared {
		if n == levelNumber-1 {
			return true
		}
	}
	return false
}

// Stats is the running reward tally of a user.
type Stats struct {
	TotalXP       int `json:"totalXP"`
	TotalCoins    int `json:"totalCoins"`
	CurrentStreak int `json:"currentStreak"`
	HighestStreak int `json:"highestStreak"`
}

// UserProgress is the server-owned record of cleared levels and rewards.
type UserProgress struct {
	UserID        uuid.UUID `json:"userId"`
	ClearedLevels []int     `json:"clearedLevels"`
	Stats         Stats     `json:"stats"`
}

// HasCleared reports whether levelNumber is already cleared.
func (p UserProgress) HasCleared(levelNumber int) bool {
	for _, n := range p.ClearedLevels {
		if n == levelNumber {
			return true
		}
	}
	return false
}

// Clear records levelNumber as cleared and credits the rewards. It is a no-op
// for a level that is already cleared, so rewards are never paid twice.
// It reports whether anything changed.
func (p *UserProgress) Clear(levelNumber int, rewards Rewards) bool {
	if p.HasCleared(levelNumber) {
		return false
	}
	p.ClearedLevels = append(p.ClearedLevels, levelNumber)
	p.Stats.TotalXP += rewards.XP
	p.Stats.TotalCoins += rewards.Coins
	p.Stats.CurrentStreak++
	p.Stats.HighestStreak = max(p.Stats.HighestStreak, p.Stats.CurrentStreak)
	return true
}

// Level defaults applied when a level is stored without them.
const (
	DefaultAim   = "Complete all exercises to advance"
	DefaultCoins = 50
	DefaultXP    = 25
)

// WithDefaults fills unset fields and derives the status from the exercise list.
func (l Level) WithDefaults() Level {
	if l.Aim == "" {
		l.Aim = DefaultAim
	}
	if l.Difficulty == "" {
		l.Difficulty = DifficultyBeginner
	}
	if l.Rewards.Coins == 0 {
		l.Rewards.Coins = DefaultCoins
	}
	if l.Rewards.XP == 0 {
		l.Rewards.XP = DefaultXP
	}
	if l.Exercises == nil {
		l.Exercises = []Exercise{}
	}
	l.Status = LevelPending
	if len(l.Exercises) > 0 {
		l.Status = LevelActive
	}
	return l
}
