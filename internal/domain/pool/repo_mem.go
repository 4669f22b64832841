package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory ItemRepository with the same compare-and-swap
// contract as the Postgres implementation. It backs development mode
// (STORE=memory) and the package tests. All methods are safe for
// concurrent use; every read hands out a deep copy so callers can never
// mutate stored state except through UpdateVersioned.
type memRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*PoolItem
}

// NewMemoryRepo returns an empty in-memory item repository.
func NewMemoryRepo() ItemRepository {
	return &memRepo{items: make(map[uuid.UUID]*PoolItem)}
}

func (m *memRepo) Create(_ context.Context, item *PoolItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[item.ID]; exists {
		return fmt.Errorf("pool item %s already exists", item.ID)
	}
	m.items[item.ID] = item.Clone()
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*PoolItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (m *memRepo) UpdateVersioned(_ context.Context, item *PoolItem, expected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expected {
		return fmt.Errorf("%w: expected version %d, found %d", ErrConflict, expected, cur.Version)
	}
	stored := item.Clone()
	stored.UpdatedAt = time.Now().UTC()
	m.items[item.ID] = stored
	return nil
}

func (m *memRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*PoolItem, int, error) {
	m.mu.RLock()
	var matched []*PoolItem
	for _, item := range m.items {
		if matchesFilter(item, f) {
			matched = append(matched, item.Clone())
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(a, b int) bool {
		if matched[a].Urgency.Rank() != matched[b].Urgency.Rank() {
			return matched[a].Urgency.Rank() > matched[b].Urgency.Rank()
		}
		return matched[a].CreatedAt.Before(matched[b].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func matchesFilter(item *PoolItem, f ListFilter) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if item.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Urgency != "" && item.Urgency != f.Urgency {
		return false
	}
	if f.Kind != "" && item.Kind != f.Kind {
		return false
	}
	if f.OwnerID != nil && !item.OwnedBy(*f.OwnerID) {
		return false
	}
	if f.ActorID != nil {
		w := *f.ActorID
		if !item.OwnedBy(w) && !item.ClosedBy(w) {
			return false
		}
	}
	return true
}
