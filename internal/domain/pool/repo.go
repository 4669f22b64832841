package pool

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows repository reads. Zero values mean "no filter".
type ListFilter struct {
	Statuses []Status
	Urgency  Urgency
	Kind     Kind
	// OwnerID matches the current owner of CLAIMED/IN_PROGRESS items.
	OwnerID *uuid.UUID
	// ActorID matches the current owner or, for terminal items, the
	// worker recorded in completed_by/cancelled_by. Used for history views.
	ActorID *uuid.UUID
}

// ItemRepository is the durable store for pool items. The conditional
// write is the primitive everything else is built on: it must have
// compare-and-swap semantics so that no two writes against the same
// version both succeed.
type ItemRepository interface {
	Create(ctx context.Context, item *PoolItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*PoolItem, error)
	// List returns items matching f ordered by urgency descending then
	// createdAt ascending, plus the total match count.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*PoolItem, int, error)
	// UpdateVersioned persists item if and only if the stored version
	// still equals expected. It returns ErrConflict (not an exception
	// path) when another write committed first. The repository does not
	// judge state-machine legality; that happened before the call.
	UpdateVersioned(ctx context.Context, item *PoolItem, expected int) error
}
