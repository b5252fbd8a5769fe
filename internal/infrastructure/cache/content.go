// Package cache persists extraction results keyed by the SHA-256 of the
// raw file bytes. Entries live as small JSON records under a two-character
// hash-prefix fan-out and expire on a pure TTL measured from insertion.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
)

// HashBytes returns the content hash used as cache key and dedup identity.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type ContentCache struct {
	basePath string
	ttl      time.Duration
	now      func() time.Time
}

func New(basePath string, ttl time.Duration) (*ContentCache, error) {
	if basePath == "" {
		basePath = "./data/cache"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &ContentCache{basePath: basePath, ttl: ttl, now: time.Now}, nil
}

func (c *ContentCache) entryPath(hash string) string {
	return filepath.Join(c.basePath, hash[:2], hash+".json")
}

// Lookup returns the cached entry for hash, or a miss when the entry is
// absent or older than the TTL. Expired entries are evicted on the way out.
func (c *ContentCache) Lookup(ctx context.Context, hash string) (*ports.CacheEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if len(hash) < 2 {
		return nil, false, nil
	}

	raw, err := os.ReadFile(c.entryPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	var entry ports.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt record: treat as miss and drop it.
		_ = os.Remove(c.entryPath(hash))
		return nil, false, nil
	}

	if c.now().Sub(entry.StoredAt) > c.ttl {
		_ = os.Remove(c.entryPath(hash))
		return nil, false, nil
	}
	return &entry, true, nil
}

// Store writes the entry atomically. Concurrent writers for the same hash
// race harmlessly: extraction for identical bytes is deterministic enough
// that last write wins.
func (c *ContentCache) Store(ctx context.Context, hash string, entry ports.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(hash) < 2 {
		return fmt.Errorf("store cache entry: hash too short: %q", hash)
	}
	if entry.StoredAt.IsZero() {
		entry.StoredAt = c.now().UTC()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	dest := c.entryPath(hash)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp_*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// Sweep evicts every expired entry, independent of lookups, and returns
// the eviction count.
func (c *ContentCache) Sweep(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.ttl)
	removed := 0

	err := filepath.WalkDir(c.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var entry ports.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.StoredAt.Before(cutoff) {
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep cache: %w", err)
	}
	return removed, nil
}
