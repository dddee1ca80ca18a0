package store

import (
	"context"
	"sync"

	"giftflow/internal/types"

	"go.uber.org/zap"
)

// MemoryStore keeps items in a map plus an insertion-order index.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]*types.WorkItem
	order  []string
	logger *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{items: make(map[string]*types.WorkItem), logger: logger}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*types.WorkItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return it.Clone(), nil
}

func (m *MemoryStore) List(ctx context.Context, pred Predicate) ([]*types.WorkItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.WorkItem, 0, len(m.order))
	for _, id := range m.order {
		it := m.items[id]
		if pred == nil || pred(it) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, patch types.Patch) (*types.WorkItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(it)
	return it.Clone(), nil
}

func (m *MemoryStore) ReplaceAll(ctx context.Context, items []*types.WorkItem) error {
	if err := validateAll(items); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*types.WorkItem, len(items))
	m.order = make([]string, 0, len(items))
	for _, it := range items {
		m.items[it.ID] = it.Clone()
		m.order = append(m.order, it.ID)
	}
	m.logger.Info("replaced work items", zap.Int("count", len(items)))
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*types.WorkItem)
	m.order = nil
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
