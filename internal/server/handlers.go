package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

var serverError = map[string]string{"message": "Server error"}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), defaultPage)
	limit := min(positiveInt(q.Get("limit"), defaultLimit), maxLimit)

	levels, total, err := s.store.ListLevels(r.Context(), storage.LevelFilter{
		Status:     q.Get("status"),
		Difficulty: q.Get("difficulty"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		s.log.Error("listing levels", "error", err)
		writeJSON(w, http.StatusInternalServerError, serverError)
		return
	}

	writeJSON(w, http.StatusOK, models.LevelPage{
		Levels:      levels,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		TotalLevels: total,
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	notFound := models.LevelEnvelope{Success: false, Message: "Level not found"}
	n, ok := levelNumberParam(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, notFound)
		return
	}

	level, err := s.level(r.Context(), n)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, notFound)
		return
	}
	if err != nil {
		s.log.Error("fetching level", "level", n, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.LevelEnvelope{Message: "Server error"})
		return
	}

	progress, err := s.store.GetOrCreateUserProgress(r.Context(), identity(r).UserID)
	if err != nil {
		s.log.Error("fetching progress", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.LevelEnvelope{Message: "Server error"})
		return
	}
	level.IsCompleted = progress.HasCleared(n)
	level.IsUnlocked = models.UnlockedFor(n, progress.ClearedLevels)

	env := models.LevelEnvelope{Success: true}
	env.Data = &struct {
		Level *models.Level `json:"level"`
	}{Level: &level}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleCompleteLevel(w http.ResponseWriter, r *http.Request) {
	n, ok := levelNumberParam(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Level not found"})
		return
	}

	id := identity(r)
	progress, rewarded, err := s.store.CompleteLevel(r.Context(), id.UserID, n)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Level not found"})
		return
	}
	if err != nil {
		s.log.Error("completing level", "level", n, "user_id", id.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, serverError)
		return
	}
	s.metrics.LevelCompleted(rewarded)
	s.log.Info("level completed", "level", n, "user_id", id.UserID, "rewarded", rewarded)

	writeJSON(w, http.StatusOK, models.CompleteResponse{
		Message:  "Level completed successfully",
		Progress: progress,
	})
}

func (s *Server) handleUserProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.store.GetOrCreateUserProgress(r.Context(), identity(r).UserID)
	if err != nil {
		s.log.Error("fetching progress", "error", err)
		writeJSON(w, http.StatusInternalServerError, serverError)
		return
	}
	writeJSON(w, http.StatusOK, models.ProgressResponse{Progress: progress})
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	completions, err := s.store.ListCompletions(r.Context(), identity(r).UserID)
	if err != nil {
		s.log.Error("listing completions", "error", err)
		writeJSON(w, http.StatusInternalServerError, serverError)
		return
	}
	if completions == nil {
		completions = []storage.Completion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"completions": completions})
}

// level reads a level definition through the cache.
func (s *Server) level(ctx context.Context, n int) (models.Level, error) {
	if l, ok := s.levels.get(n); ok {
		return l, nil
	}
	// Callers coalesced onto this load must not fail because the first one left.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.levels.loads.Do(strconv.Itoa(n), func() (any, error) {
		l, err := s.store.GetLevel(loadCtx, n)
		if err != nil {
			return nil, err
		}
		s.levels.set(l)
		return l, nil
	})
	if err != nil {
		return models.Level{}, err
	}
	return v.(models.Level), nil
}

func levelNumberParam(r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "levelNumber"))
	return n, err == nil && n >= 1
}

func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
