package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/timshannon/bolthold"
	bolt "go.etcd.io/bbolt"

	"github.com/TEENet-io/atomic-swap/swap"
)

// BoltStore keeps swaps in an embedded bolt database, one key per swap id.
type BoltStore struct {
	db *bolthold.Store
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolthold.Open(path, 0666, &bolthold.Options{
		Encoder: json.Marshal,
		Decoder: json.Unmarshal,
		Options: &bolt.Options{Timeout: 3 * time.Second},
	})
	if err != nil {
		return nil, ioError("open "+path, err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Save(ctx context.Context, info *swap.Info) error {
	if err := ctx.Err(); err != nil {
		return ioError("save", err)
	}
	if _, err := encodeInfo(info); err != nil {
		return ioError("encode", err)
	}
	if err := b.db.Upsert(info.ID, info); err != nil {
		return ioError("save "+info.ID, err)
	}
	return nil
}

func (b *BoltStore) LoadAll(ctx context.Context) ([]*swap.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, ioError("load", err)
	}
	var records []swap.Info
	if err := b.db.Find(&records, nil); err != nil {
		return nil, ioError("load", err)
	}
	infos := make([]*swap.Info, 0, len(records))
	for i := range records {
		infos = append(infos, &records[i])
	}
	return infos, nil
}

// FindByStatus returns the swaps currently in status.
func (b *BoltStore) FindByStatus(status swap.Status) ([]*swap.Info, error) {
	var records []swap.Info
	if err := b.db.Find(&records, bolthold.Where("Status").Eq(status)); err != nil {
		return nil, ioError("find", err)
	}
	infos := make([]*swap.Info, 0, len(records))
	for i := range records {
		infos = append(infos, &records[i])
	}
	return infos, nil
}

func (b *BoltStore) CountByStatus(ctx context.Context, status swap.Status) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, ioError("count", err)
	}
	infos, err := b.FindByStatus(status)
	if err != nil {
		return 0, err
	}
	return len(infos), nil
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
