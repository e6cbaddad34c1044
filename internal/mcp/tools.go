package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// --- Tool definitions ---

var toolListLevels = mcp.NewTool("list_levels",
	mcp.WithDescription("List training levels ordered by level number. Each level has required exercises with rep or second targets and a coin/xp reward."),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum(models.LevelActive, models.LevelPending)),
	mcp.WithString("difficulty", mcp.Description("Filter by difficulty"), mcp.Enum(models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced)),
	mcp.WithNumber("page", mcp.Description("Page number starting at 1. Defaults to 1.")),
	mcp.WithNumber("limit", mcp.Description("Levels per page, at most 100. Defaults to 10.")),
)

var toolGetLevel = mcp.NewTool("get_level",
	mcp.WithDescription("Get one level with its exercises and rewards, plus whether the caller has completed and unlocked it."),
	mcp.WithNumber("level_number", mcp.Required(), mcp.Description("Level number, starting at 1")),
)

var toolGetUserProgress = mcp.NewTool("get_user_progress",
	mcp.WithDescription("Get the caller's cleared levels, total XP and coins, and current and highest streak."),
)

var toolGetCompletions = mcp.NewTool("get_completions",
	mcp.WithDescription("List the levels the caller has cleared with the time each was first cleared, most recent first."),
)

// --- Tool handlers ---

func (h *handlers) listLevels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := req.GetInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := req.GetInt("limit", defaultLimit)
	if limit < 1 || limit > maxLimit {
		limit = defaultLimit
	}

	levels, total, err := h.ds.ListLevels(ctx, storage.LevelFilter{
		Status:     req.GetString("status", ""),
		Difficulty: req.GetString("difficulty", ""),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		h.log.Error("mcp list_levels", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(models.LevelPage{
		Levels:      levels,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		TotalLevels: total,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getLevel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := req.RequireInt("level_number")
	if err != nil || n < 1 {
		return mcp.NewToolResultError("level_number must be a positive integer"), nil
	}
	uid, err := h.userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	level, err := h.ds.GetLevel(ctx, n)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("level %d not found", n)), nil
	}
	if err != nil {
		h.log.Error("mcp get_level", "level", n, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	progress, err := h.ds.GetOrCreateUserProgress(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_level progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	level.IsCompleted = progress.HasCleared(n)
	level.IsUnlocked = models.UnlockedFor(n, progress.ClearedLevels)

	result, err := mcp.NewToolResultJSON(level)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getUserProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := h.userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	progress, err := h.ds.GetOrCreateUserProgress(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_user_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(progress)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCompletions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, err := h.userID(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completions, err := h.ds.ListCompletions(ctx, uid)
	if err != nil {
		h.log.Error("mcp get_completions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if completions == nil {
		completions = []storage.Completion{}
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"completions": completions})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
