package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. Suitable for a single replica
// and for development; sessions are lost on restart.
type MemoryStore struct {
	records sync.Map
	now     func() time.Time
}

// NewMemoryStore returns an empty store. Expired records are evicted lazily on
// Get and in bulk by Cleanup, which the Manager's janitor calls periodically.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Save stores a copy of rec.
func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	m.records.Store(rec.ID, copyRecord(rec))
	return nil
}

// Get returns a copy of the record for id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrInvalid
	}
	v, ok := m.records.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec := v.(*Record)
	if rec.Expired(m.now()) {
		m.records.Delete(id)
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Delete removes the record for id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.records.Delete(id)
	return nil
}

// Cleanup evicts expired records.
func (m *MemoryStore) Cleanup(_ context.Context) (int, error) {
	count := 0
	now := m.now()
	m.records.Range(func(key, value any) bool {
		if value.(*Record).Expired(now) {
			m.records.Delete(key)
			count++
		}
		return true
	})
	return count, nil
}

// Count returns the number of stored records, expired or not.
func (m *MemoryStore) Count() int {
	count := 0
	m.records.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func copyRecord(rec *Record) *Record {
	c := *rec
	c.Session = rec.Session.Clone()
	return &c
}
