package state

import (
	"context"
	"sort"
	"sync"

	"github.com/TEENet-io/atomic-swap/swap"
)

// MemoryStore keeps encoded records in memory. It is used by tests and the
// simulated server mode.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
	failure error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// FailWith makes every following call fail with err until it is called
// again with nil.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

func (m *MemoryStore) Save(_ context.Context, info *swap.Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return ioError("save "+info.ID, m.failure)
	}
	record, err := encodeInfo(info)
	if err != nil {
		return ioError("encode", err)
	}
	m.records[info.ID] = record
	return nil
}

func (m *MemoryStore) LoadAll(_ context.Context) ([]*swap.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return nil, ioError("load", m.failure)
	}
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	infos := make([]*swap.Info, 0, len(ids))
	for _, id := range ids {
		info, err := decodeInfo(m.records[id])
		if err != nil {
			return nil, ioError("decode "+id, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
