package server

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"golang.org/x/sync/singleflight"

	"github.com/claude/repquest/internal/models"
)

const (
	defaultLevelCacheBytes = 4 * 1024 * 1024
	defaultLevelCacheTTL   = time.Minute
)

// levelCache holds level definitions by number. Entries never carry the
// per-user view fields. Concurrent misses for one level share a single load.
type levelCache struct {
	cache      *freecache.Cache
	ttlSeconds int
	loads      singleflight.Group
}

func newLevelCache(sizeBytes int, ttl time.Duration) *levelCache {
	if sizeBytes <= 0 {
		sizeBytes = defaultLevelCacheBytes
	}
	if ttl <= 0 {
		ttl = defaultLevelCacheTTL
	}
	return &levelCache{
		cache:      freecache.NewCache(sizeBytes),
		ttlSeconds: max(1, int(ttl/time.Second)),
	}
}

func levelKey(levelNumber int) []byte {
	return []byte("level::" + strconv.Itoa(levelNumber))
}

func (c *levelCache) get(levelNumber int) (models.Level, bool) {
	raw, err := c.cache.Get(levelKey(levelNumber))
	if err != nil {
		return models.Level{}, false
	}
	var l models.Level
	if err := json.Unmarshal(raw, &l); err != nil {
		return models.Level{}, false
	}
	return l, true
}

func (c *levelCache) set(l models.Level) {
	l.IsCompleted, l.IsUnlocked = false, false
	raw, err := json.Marshal(l)
	if err != nil {
		return
	}
	_ = c.cache.Set(levelKey(l.LevelNumber), raw, c.ttlSeconds)
}
