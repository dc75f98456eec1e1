package tilecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/f0rge/go-gpxreel/internal/config"
	"github.com/f0rge/go-gpxreel/internal/logger"
)

// ErrTileUnavailable is returned after the fetch retries are exhausted.
var ErrTileUnavailable = errors.New("tile unavailable")

// Key identifies one raster tile.
type Key struct {
	Source config.MapSource
	Zoom   int
	X      int
	Y      int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d/%d", k.Source, k.Zoom, k.X, k.Y)
}

// path is the stable on-disk encoding of a key.
func (k Key) path(dir string) string {
	return filepath.Join(dir,
		fmt.Sprintf("%d", k.Source),
		fmt.Sprintf("%d", k.Zoom),
		fmt.Sprintf("%d", k.X),
		fmt.Sprintf("%d.png", k.Y))
}

// Tile is raw raster bytes plus the key that addresses them.
type Tile struct {
	Key  Key
	Data []byte
}

// Fetcher is the external transport capability. The cache is the only
// caller; implementations do not need to deduplicate or retry.
type Fetcher interface {
	FetchTile(ctx context.Context, key Key) ([]byte, error)
}

// Cache is a persistent key-value store of tiles. Entries are addressed
// by Key only, never by retrieval time: re-fetching an identical key is
// a hit. Concurrent misses on the same key are coalesced into a single
// outstanding fetch.
type Cache struct {
	dir     string
	fetcher Fetcher
	group   singleflight.Group
}

func New(dir string, fetcher Fetcher) *Cache {
	return &Cache{dir: dir, fetcher: fetcher}
}

// Fetch returns the tile for key, from disk when present, otherwise via
// the fetch collaborator with bounded retries and backoff.
func (c *Cache) Fetch(ctx context.Context, key Key) (Tile, error) {
	log := logger.Log.WithField("scope", "tilecache")

	path := key.path(c.dir)
	if data, err := os.ReadFile(path); err == nil {
		log.Debugf("hit %s", key)
		return Tile{Key: key, Data: data}, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// a coalesced waiter may arrive after the winner persisted the tile
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}
		data, err := c.fetchWithRetry(ctx, key)
		if err != nil {
			return nil, err
		}
		if err := c.persist(path, data); err != nil {
			return nil, fmt.Errorf("persisting tile %s: %w", key, err)
		}
		return data, nil
	})
	if err != nil {
		return Tile{}, err
	}
	return Tile{Key: key, Data: v.([]byte)}, nil
}

func (c *Cache) fetchWithRetry(ctx context.Context, key Key) ([]byte, error) {
	log := logger.Log.WithField("scope", "tilecache")

	var data []byte
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, config.TileFetchTimeout)
		defer cancel()
		var err error
		data, err = c.fetcher.FetchTile(attemptCtx, key)
		if err != nil {
			log.Debugf("fetch %s failed: %v", key, err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), config.TileFetchRetries),
		ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("fetching tile %s: %w: %v", key, ErrTileUnavailable, err)
	}
	return data, nil
}

// persist writes atomically so a cancelled run never leaves a partial
// cache entry behind.
func (c *Cache) persist(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tile-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Clear purges the whole on-disk store.
func (c *Cache) Clear() error {
	log := logger.Log.WithField("scope", "tilecache")
	log.Debugf("clearing cache dir %s", c.dir)
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("clearing tile cache: %w", err)
	}
	return nil
}
