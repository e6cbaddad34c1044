package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

func (h *handlers) levelCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	levels, _, err := h.ds.ListLevels(ctx, storage.LevelFilter{Status: models.LevelActive})
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, levels)
}

func (h *handlers) progressSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid, err := h.userID(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := h.ds.GetOrCreateUserProgress(ctx, uid)
	if err != nil {
		return nil, err
	}

	levels, _, err := h.ds.ListLevels(ctx, storage.LevelFilter{Status: models.LevelActive})
	if err != nil {
		h.log.Warn("progress_summary: level query failed", "error", err)
	}

	summary := map[string]any{
		"progress":   progress,
		"next_level": nextLevel(levels, progress),
	}
	return jsonContents(req.Params.URI, summary)
}

// nextLevel returns the lowest unlocked level not yet cleared, or nil.
func nextLevel(levels []models.Level, progress models.UserProgress) *models.Level {
	for _, l := range levels {
		if progress.HasCleared(l.LevelNumber) || !models.UnlockedFor(l.LevelNumber, progress.ClearedLevels) {
			continue
		}
		l.IsUnlocked = true
		return &l
	}
	return nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
