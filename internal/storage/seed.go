package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/claude/repquest/internal/models"
)

type seedFile struct {
	Levels []seedLevel `yaml:"levels"`
}

type seedLevel struct {
	LevelNumber int    `yaml:"level_number"`
	Aim         string `yaml:"aim"`
	Difficulty  string `yaml:"difficulty"`
	Coins       int    `yaml:"coins"`
	XP          int    `yaml:"xp"`
	Exercises   []struct {
		Name     string `yaml:"name"`
		Reps     int    `yaml:"reps"`
		Duration int    `yaml:"duration"`
		Calories int    `yaml:"calories"`
	} `yaml:"exercises"`
}

// LoadSeedFile reads level definitions from a YAML file of the form
//
//	levels:
//	  - level_number: 9
//	    difficulty: advanced
//	    exercises:
//	      - {name: Pushups, reps: 20}
func LoadSeedFile(path string) ([]models.Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	levels := make([]models.Level, 0, len(f.Levels))
	for _, sl := range f.Levels {
		l := models.Level{
			LevelNumber: sl.LevelNumber,
			Aim:         sl.Aim,
			Difficulty:  sl.Difficulty,
			Rewards:     models.Rewards{Coins: sl.Coins, XP: sl.XP},
		}
		for _, ex := range sl.Exercises {
			l.Exercises = append(l.Exercises, models.Exercise{
				Name:     models.ExerciseKind(ex.Name),
				Reps:     ex.Reps,
				Duration: ex.Duration,
				Calories: ex.Calories,
			})
		}
		l = l.WithDefaults()
		if len(l.Exercises) > 0 {
			if err := l.Validate(); err != nil {
				return nil, fmt.Errorf("seed file: %w", err)
			}
		} else if l.LevelNumber < 1 {
			return nil, fmt.Errorf("seed file: invalid level number %d", l.LevelNumber)
		}
		levels = append(levels, l)
	}
	return levels, nil
}

// SeedLevels upserts every level and returns how many were written.
func (db *DB) SeedLevels(ctx context.Context, levels []models.Level) (int, error) {
	for i, l := range levels {
		if err := db.UpsertLevel(ctx, l); err != nil {
			return i, fmt.Errorf("seeding level %d: %w", l.LevelNumber, err)
		}
	}
	return len(levels), nil
}
