package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Coordinator performs the atomic claim: the only path by which OwnerID
// goes from nil to non-nil, and the only operation that has to win a
// race. Every later transition is already ownership-gated.
type Coordinator struct {
	items ItemRepository
	now   func() time.Time
}

// NewCoordinator returns a claim coordinator over the given store.
func NewCoordinator(items ItemRepository) *Coordinator {
	return &Coordinator{items: items, now: time.Now}
}

// Claim attempts to take ownership of a PENDING item for workerID.
//
// The algorithm is read, check, conditional-write: losing the
// compare-and-swap means another claim committed first, and the caller
// gets ErrAlreadyClaimed rather than an automatic retry. The worker
// should re-query the pool and pick something else.
//
// A claim against an item the worker already holds is an idempotent
// repeat of the original claim (retried network calls must not error).
// The boolean result reports whether this call performed the claim, as
// opposed to repeating one that had already committed.
func (c *Coordinator) Claim(ctx context.Context, itemID, workerID uuid.UUID) (*PoolItem, bool, error) {
	item, err := c.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}

	if item.OwnedBy(workerID) {
		return item, false, nil
	}

	next, err := Transition(item.Status, EventClaim, workerID, item.OwnerID)
	if err != nil {
		return nil, false, err
	}

	expected := item.Version
	now := c.now().UTC()
	item.Status = next
	item.OwnerID = &workerID
	item.ClaimedAt = &now
	item.Version = expected + 1

	if err := c.items.UpdateVersioned(ctx, item, expected); err != nil {
		if errors.Is(err, ErrConflict) {
			return c.lostRace(ctx, itemID, workerID)
		}
		return nil, false, err
	}
	return item, true, nil
}

// lostRace re-reads an item after a failed conditional write. If our own
// earlier claim is the one that committed (a duplicate in flight), the
// claim still succeeds idempotently; otherwise someone else took it.
func (c *Coordinator) lostRace(ctx context.Context, itemID, workerID uuid.UUID) (*PoolItem, bool, error) {
	cur, err := c.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if cur.OwnedBy(workerID) {
		return cur, false, nil
	}
	return nil, false, fmt.Errorf("%w: another worker won the claim", ErrAlreadyClaimed)
}
