package store

import (
	"context"
	"iter"
	"sort"
	"sync"

	diary "github.com/dai175/smart-photo-diary-sub001"
)

// Mem keeps entries in a map. It is the ephemeral-mode store and the
// reference implementation of the contract.
type Mem struct {
	lock    sync.RWMutex
	entries map[string]*diary.DiaryEntry
}

func NewMem() *Mem {
	return &Mem{entries: make(map[string]*diary.DiaryEntry)}
}

func (m *Mem) Get(ctx context.Context, id string) (*diary.DiaryEntry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.entries[id].Clone(), nil
}

func (m *Mem) Put(ctx context.Context, entry *diary.DiaryEntry) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.entries[entry.ID] = entry.Clone()
	return nil
}

func (m *Mem) Delete(ctx context.Context, id string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *Mem) Values(ctx context.Context) iter.Seq2[*diary.DiaryEntry, error] {
	m.lock.RLock()
	snapshot := make([]*diary.DiaryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		snapshot = append(snapshot, e.Clone())
	}
	m.lock.RUnlock()
	// deterministic scan order
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	return func(yield func(*diary.DiaryEntry, error) bool) {
		for _, e := range snapshot {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (m *Mem) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.entries)
}
