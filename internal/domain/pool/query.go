package pool

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// QueryFacade is the read side of the pool: unclaimed work for pickers
// and per-worker views. It never mutates state.
type QueryFacade struct {
	items ItemRepository
}

// NewQueryFacade returns a read facade over the given store.
func NewQueryFacade(items ItemRepository) *QueryFacade {
	return &QueryFacade{items: items}
}

// AvailableFilter narrows the available-work listing.
type AvailableFilter struct {
	Urgency Urgency
	Kind    Kind
}

// ListAvailable returns PENDING items matching f, most urgent first and
// oldest first within an urgency band, so a STAT item never waits behind
// routine work.
func (q *QueryFacade) ListAvailable(ctx context.Context, f AvailableFilter, limit, offset int) ([]*PoolItem, int, error) {
	if f.Urgency != "" && !f.Urgency.Valid() {
		ve := newValidationError()
		ve.add("urgency", fmt.Sprintf("urgency must be %s, %s or %s", UrgencyRoutine, UrgencyUrgent, UrgencyStat))
		return nil, 0, ve
	}
	if f.Kind != "" && !f.Kind.Valid() {
		ve := newValidationError()
		ve.add("kind", fmt.Sprintf("kind must be %s or %s", KindLabTest, KindLabRequest))
		return nil, 0, ve
	}
	return q.items.List(ctx, ListFilter{
		Statuses: []Status{StatusPending},
		Urgency:  f.Urgency,
		Kind:     f.Kind,
	}, limit, offset)
}

// MineFilter narrows a worker's own listing.
type MineFilter struct {
	// Status restricts the listing to one status when set.
	Status Status
	// IncludeTerminal also returns COMPLETED/CANCELLED items the worker
	// closed, for history views.
	IncludeTerminal bool
}

// ListMine returns the items workerID currently holds and, when
// requested, the terminal items it closed.
func (q *QueryFacade) ListMine(ctx context.Context, workerID uuid.UUID, f MineFilter, limit, offset int) ([]*PoolItem, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		ve := newValidationError()
		ve.add("status", "unknown status")
		return nil, 0, ve
	}

	filter := ListFilter{ActorID: &workerID}
	switch {
	case f.Status != "":
		filter.Statuses = []Status{f.Status}
	case f.IncludeTerminal:
		filter.Statuses = []Status{StatusClaimed, StatusInProgress, StatusCompleted, StatusCancelled}
	default:
		filter.Statuses = []Status{StatusClaimed, StatusInProgress}
	}
	return q.items.List(ctx, filter, limit, offset)
}
