package state

import (
	"context"

	"github.com/go-redis/redis"

	"github.com/TEENet-io/atomic-swap/swap"
)

// RedisStore keeps all swaps in one redis hash, field per swap id.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg *Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, ioError("connect "+cfg.RedisAddr, err)
	}
	key := cfg.RedisKey
	if key == "" {
		key = DefaultConfig().RedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

func (r *RedisStore) Save(ctx context.Context, info *swap.Info) error {
	if err := ctx.Err(); err != nil {
		return ioError("save", err)
	}
	record, err := encodeInfo(info)
	if err != nil {
		return ioError("encode", err)
	}
	if err := r.client.HSet(r.key, info.ID, record).Err(); err != nil {
		return ioError("save "+info.ID, err)
	}
	return nil
}

func (r *RedisStore) LoadAll(ctx context.Context) ([]*swap.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, ioError("load", err)
	}
	fields, err := r.client.HGetAll(r.key).Result()
	if err != nil {
		return nil, ioError("load", err)
	}
	infos := make([]*swap.Info, 0, len(fields))
	for id, record := range fields {
		info, err := decodeInfo([]byte(record))
		if err != nil {
			return nil, ioError("decode "+id, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
