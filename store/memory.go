package store

import (
	"context"
	"sync"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// MemoryStore keeps records in process memory. It is the default store.
type MemoryStore struct {
	records []wslog.Record
	index   map[string]int
	lock    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (m *MemoryStore) Save(_ context.Context, rec wslog.Record) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if i, ok := m.index[rec.ID]; ok {
		m.records[i] = rec
		return nil
	}
	m.index[rec.ID] = len(m.records)
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (wslog.Record, bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return wslog.Record{}, false, nil
	}
	return m.records[i], true, nil
}

func (m *MemoryStore) List(_ context.Context, q Query) ([]wslog.Record, error) {
	m.lock.RLock()
	all := append([]wslog.Record(nil), m.records...)
	m.lock.RUnlock()
	return selectRecords(all, q), nil
}

func (m *MemoryStore) Reset(_ context.Context) error {
	m.lock.Lock()
	m.records = nil
	m.index = make(map[string]int)
	m.lock.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
