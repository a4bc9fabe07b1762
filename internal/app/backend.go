package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/harvest"
	"github.com/ibeckermayer/xharvest/internal/store"
)

// backend provides the checkpoint and stop signal shared by harvest, stop, status and export
type backend interface {
	Checkpoint(slot string) harvest.CheckpointStore
	Signal() harvest.StopSignal
	Close() error
}

// openBackend builds the configured backend. db is the run history database, reused
// as the checkpoint store for the sqlite backend.
func openBackend(cfg *config.Config, cacheDir string, db *store.Store) (backend, error) {
	switch cfg.Harvest.CheckpointBackend {
	case config.BackendFile:
		return &fileBackend{dir: cacheDir, maxBytes: cfg.Harvest.CheckpointMaxBytes}, nil
	case config.BackendSQLite:
		return &sqliteBackend{db: db}, nil
	case config.BackendRedis:
		client := store.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		return &redisBackend{client: client, prefix: cfg.Redis.KeyPrefix}, nil
	case config.BackendMemory:
		return newMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Harvest.CheckpointBackend)
}

type fileBackend struct {
	dir      string
	maxBytes int64
}

func (b *fileBackend) Checkpoint(slot string) harvest.CheckpointStore {
	cp := store.NewFileCheckpoint(store.CheckpointPath(b.dir, slot))
	cp.MaxBytes = b.maxBytes
	return cp
}

func (b *fileBackend) Signal() harvest.StopSignal {
	return store.NewFileSignal(filepath.Join(b.dir, "stop"))
}

func (b *fileBackend) Close() error { return nil }

type sqliteBackend struct {
	db *store.Store
}

func (b *sqliteBackend) Checkpoint(slot string) harvest.CheckpointStore {
	return b.db.Checkpoint(slot)
}

func (b *sqliteBackend) Signal() harvest.StopSignal {
	return b.db.Signal()
}

// Close leaves the database open; the App owns it
func (b *sqliteBackend) Close() error { return nil }

type redisBackend struct {
	client *redis.Client
	prefix string
}

func (b *redisBackend) Checkpoint(slot string) harvest.CheckpointStore {
	return store.NewRedisCheckpoint(b.client, b.prefix, slot)
}

func (b *redisBackend) Signal() harvest.StopSignal {
	return store.NewRedisSignal(b.client, b.prefix)
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}

// memoryBackend only reaches callers in the same process
type memoryBackend struct {
	mu          sync.Mutex
	checkpoints map[string]*harvest.MemoryCheckpoint
	signal      *harvest.MemorySignal
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		checkpoints: make(map[string]*harvest.MemoryCheckpoint),
		signal:      &harvest.MemorySignal{},
	}
}

func (b *memoryBackend) Checkpoint(slot string) harvest.CheckpointStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp, ok := b.checkpoints[slot]
	if !ok {
		cp = harvest.NewMemoryCheckpoint()
		b.checkpoints[slot] = cp
	}
	return cp
}

func (b *memoryBackend) Signal() harvest.StopSignal {
	return b.signal
}

func (b *memoryBackend) Close() error { return nil }

// ping checks that a remote backend is reachable
func ping(ctx context.Context, b backend) error {
	if rb, ok := b.(*redisBackend); ok {
		if err := rb.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
	}
	return nil
}
