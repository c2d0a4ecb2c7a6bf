package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and by single-node
// deployments without Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Fields

	subMu   sync.Mutex
	nextSub int64
	subs    map[int64]subscription
}

type subscription struct {
	key      string // "" means all keys
	onChange func(key string, fields Fields)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Fields),
		subs:    make(map[int64]subscription),
	}
}

func (ms *MemoryStore) Read(ctx context.Context, key string) (Fields, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.records[key]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (ms *MemoryStore) Write(ctx context.Context, key string, fields Fields) error {
	ms.mu.Lock()
	ms.records[key] = fields.Clone()
	snapshot := ms.records[key].Clone()
	ms.mu.Unlock()

	ms.notify(key, snapshot)
	return nil
}

func (ms *MemoryStore) Update(ctx context.Context, key string, fields Fields) error {
	ms.mu.Lock()
	rec, ok := ms.records[key]
	if !ok {
		rec = make(Fields)
		ms.records[key] = rec
	}
	for k, v := range fields {
		if v == nil {
			delete(rec, k)
			continue
		}
		cp := make([]byte, len(v))
		copy(cp, v)
		rec[k] = cp
	}
	snapshot := rec.Clone()
	ms.mu.Unlock()

	ms.notify(key, snapshot)
	return nil
}

func (ms *MemoryStore) Remove(ctx context.Context, key string) error {
	ms.mu.Lock()
	delete(ms.records, key)
	ms.mu.Unlock()

	ms.notify(key, nil)
	return nil
}

func (ms *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	keys := make([]string, 0, len(ms.records))
	for k := range ms.records {
		keys = append(keys, k)
	}
	return keys, nil
}

func (ms *MemoryStore) Subscribe(key string, onChange func(key string, fields Fields)) func() {
	return ms.subscribe(key, onChange)
}

func (ms *MemoryStore) SubscribeAll(onChange func(key string, fields Fields)) func() {
	return ms.subscribe("", onChange)
}

func (ms *MemoryStore) subscribe(key string, onChange func(key string, fields Fields)) func() {
	ms.subMu.Lock()
	ms.nextSub++
	id := ms.nextSub
	ms.subs[id] = subscription{key: key, onChange: onChange}
	ms.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ms.subMu.Lock()
			delete(ms.subs, id)
			ms.subMu.Unlock()
		})
	}
}

func (ms *MemoryStore) notify(key string, fields Fields) {
	ms.subMu.Lock()
	targets := make([]func(string, Fields), 0, len(ms.subs))
	for _, sub := range ms.subs {
		if sub.key == "" || sub.key == key {
			targets = append(targets, sub.onChange)
		}
	}
	ms.subMu.Unlock()

	for _, fn := range targets {
		fn(key, fields)
	}
}
