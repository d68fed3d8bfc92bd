package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

// SwapStore persists swap records. Save is an atomic upsert keyed by swap
// id; LoadAll enumerates every record on start-up. Every failure is an
// htlc.ErrStoreIO.
type SwapStore interface {
	Save(ctx context.Context, info *swap.Info) error
	LoadAll(ctx context.Context) ([]*swap.Info, error)
	Close() error
}

// StatusCounter is implemented by stores that count records per status
// without loading every record.
type StatusCounter interface {
	CountByStatus(ctx context.Context, status swap.Status) (int, error)
}

// Stats returns the number of stored swaps per status.
func Stats(ctx context.Context, store SwapStore) (map[swap.Status]int, error) {
	counts := make(map[swap.Status]int)
	if sc, ok := store.(StatusCounter); ok {
		for _, status := range swap.Statuses() {
			n, err := sc.CountByStatus(ctx, status)
			if err != nil {
				return nil, err
			}
			counts[status] = n
		}
		return counts, nil
	}

	infos, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range swap.Statuses() {
		counts[status] = 0
	}
	for _, info := range infos {
		counts[info.Status]++
	}
	return counts, nil
}

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string
	// Path is the database file of the sqlite and bolt backends.
	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// RedisKey names the hash holding all swaps.
	RedisKey string
}

func DefaultConfig() *Config {
	return &Config{
		Backend:  BackendSQLite,
		Path:     "swaps.db",
		RedisKey: "atomic-swap:swaps",
	}
}

// Open returns the store selected by cfg.Backend.
func Open(cfg *Config) (SwapStore, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLiteStore(cfg.Path)
	case BackendBolt:
		return OpenBoltStore(cfg.Path)
	case BackendRedis:
		return NewRedisStore(cfg)
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", htlc.ErrConfigInvalid, cfg.Backend)
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", htlc.ErrStoreIO, op, err)
}

func encodeInfo(info *swap.Info) ([]byte, error) {
	if info.ID == "" {
		return nil, fmt.Errorf("swap without id")
	}
	if !info.Status.Valid() {
		return nil, fmt.Errorf("swap %s has unknown status %q", info.ID, info.Status)
	}
	return json.Marshal(info)
}

func decodeInfo(data []byte) (*swap.Info, error) {
	info := &swap.Info{}
	if err := json.Unmarshal(data, info); err != nil {
		return nil, err
	}
	return info, nil
}
