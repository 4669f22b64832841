package pool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/labpool/labpool/internal/platform/metrics"
)

// TransitionEvent describes one accepted lifecycle transition, delivered
// fire-and-forget to the notification/audit sink.
type TransitionEvent struct {
	ItemID  uuid.UUID
	Kind    Kind
	Urgency Urgency
	From    Status
	To      Status
	Actor   uuid.UUID
	At      time.Time
}

// TransitionNotifier receives transition events. Implementations must not
// block the caller for long and must never fail the transition: delivery
// is best-effort and not required for correctness.
type TransitionNotifier interface {
	OnTransition(ctx context.Context, e TransitionEvent)
}

// Service orchestrates the pool item lifecycle: it validates payloads,
// consults the state machine, and commits every accepted transition with
// a conditional write against the version the caller's read observed.
// Nothing is cached across calls; the store is the single authority.
type Service struct {
	items    ItemRepository
	claims   *Coordinator
	notifier TransitionNotifier
	now      func() time.Time
}

// NewService creates the lifecycle service over the given store.
func NewService(items ItemRepository) *Service {
	return &Service{
		items:  items,
		claims: NewCoordinator(items),
		now:    time.Now,
	}
}

// SetNotifier attaches an optional transition sink.
func (s *Service) SetNotifier(n TransitionNotifier) { s.notifier = n }

// CreateItem registers a new unit of work in PENDING state. This is the
// interface the upstream order workflow calls; items are never created in
// any other state.
func (s *Service) CreateItem(ctx context.Context, kind Kind, urgency Urgency, payload json.RawMessage) (*PoolItem, error) {
	ve := newValidationError()
	if !kind.Valid() {
		ve.add("kind", fmt.Sprintf("kind must be %s or %s", KindLabTest, KindLabRequest))
	}
	if urgency == "" {
		urgency = UrgencyRoutine
	}
	if !urgency.Valid() {
		ve.add("urgency", fmt.Sprintf("urgency must be %s, %s or %s", UrgencyRoutine, UrgencyUrgent, UrgencyStat))
	}
	if err := ve.err(); err != nil {
		return nil, err
	}

	item := &PoolItem{
		Kind:    kind,
		Status:  StatusPending,
		Urgency: urgency,
	}
	if len(payload) > 0 {
		raw := make(json.RawMessage, len(payload))
		copy(raw, payload)
		item.Payload = &raw
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem reads one item.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*PoolItem, error) {
	return s.items.GetByID(ctx, id)
}

// Claim takes ownership of a PENDING item for workerID. An idempotent
// repeat of an already-committed claim does not fire a second
// notification.
func (s *Service) Claim(ctx context.Context, itemID, workerID uuid.UUID) (*PoolItem, error) {
	item, claimed, err := s.claims.Claim(ctx, itemID, workerID)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			metrics.ClaimConflictsTotal.Inc()
		}
		return nil, err
	}
	if claimed {
		s.notify(ctx, item, StatusPending, StatusClaimed, workerID, *item.ClaimedAt)
	}
	return item, nil
}

// Start moves a CLAIMED item to IN_PROGRESS for its owner.
func (s *Service) Start(ctx context.Context, itemID, workerID uuid.UUID) (*PoolItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	from := item.Status
	next, err := Transition(from, EventStart, workerID, item.OwnerID)
	if err != nil {
		return nil, err
	}

	expected := item.Version
	now := s.now().UTC()
	item.Status = next
	item.StartedAt = &now
	item.Version = expected + 1

	if err := s.commit(ctx, item, expected); err != nil {
		return nil, err
	}
	s.notify(ctx, item, from, next, workerID, now)
	return item, nil
}

// Complete attaches a validated result payload and moves an IN_PROGRESS
// item to COMPLETED. A repeat of the same call by the worker that
// completed the item returns the stored record unchanged.
func (s *Service) Complete(ctx context.Context, itemID, workerID uuid.UUID, results []ResultEntry) (*PoolItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status.Terminal() {
		if item.Status == StatusCompleted && item.ClosedBy(workerID) {
			return item, nil
		}
		if item.ClosedBy(workerID) {
			return nil, fmt.Errorf("%w: cannot complete a %s item", ErrInvalidTransition, item.Status)
		}
		return nil, fmt.Errorf("%w: item was closed by another worker", ErrNotOwner)
	}

	validated, err := ValidateResults(results)
	if err != nil {
		return nil, err
	}

	from := item.Status
	next, err := Transition(from, EventComplete, workerID, item.OwnerID)
	if err != nil {
		return nil, err
	}

	expected := item.Version
	now := s.now().UTC()
	item.Status = next
	item.Results = validated
	item.OwnerID = nil
	item.CompletedBy = &workerID
	item.CompletedAt = &now
	item.Version = expected + 1

	if err := s.commit(ctx, item, expected); err != nil {
		return nil, err
	}
	s.notify(ctx, item, from, next, workerID, now)
	return item, nil
}

// Cancel moves a CLAIMED or IN_PROGRESS item to CANCELLED with a
// non-empty reason. force bypasses the owner check; it is reserved for
// administrative recovery of abandoned claims and never reassigns the
// item. A repeat of the same cancel by the same actor returns the stored
// record unchanged.
func (s *Service) Cancel(ctx context.Context, itemID, workerID uuid.UUID, reason string, force bool) (*PoolItem, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status.Terminal() {
		if item.Status == StatusCancelled && item.ClosedBy(workerID) {
			return item, nil
		}
		if item.ClosedBy(workerID) {
			return nil, fmt.Errorf("%w: cannot cancel a %s item", ErrInvalidTransition, item.Status)
		}
		return nil, fmt.Errorf("%w: item was closed by another worker", ErrNotOwner)
	}

	reason, err = ValidateCancelReason(reason)
	if err != nil {
		return nil, err
	}

	from := item.Status
	next, err := Transition(from, EventCancel, workerID, item.OwnerID)
	if err != nil {
		if force && errors.Is(err, ErrNotOwner) {
			next, _ = transitionFor(from, EventCancel)
		} else {
			return nil, err
		}
	}

	expected := item.Version
	now := s.now().UTC()
	item.Status = next
	item.OwnerID = nil
	item.CancellationReason = &reason
	item.CancelledBy = &workerID
	item.CancelledAt = &now
	item.Version = expected + 1

	if err := s.commit(ctx, item, expected); err != nil {
		return nil, err
	}
	s.notify(ctx, item, from, next, workerID, now)
	return item, nil
}

// commit performs the conditional write. A version mismatch means some
// other call, possibly by the same worker, committed between our read and
// write: the caller gets ErrConflict and must re-read, never a silent
// overwrite.
func (s *Service) commit(ctx context.Context, item *PoolItem, expected int) error {
	if err := s.items.UpdateVersioned(ctx, item, expected); err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.WriteConflictsTotal.Inc()
		}
		return err
	}
	return nil
}

func (s *Service) notify(ctx context.Context, item *PoolItem, from, to Status, actor uuid.UUID, at time.Time) {
	metrics.TransitionsTotal.WithLabelValues(string(item.Kind), string(to)).Inc()
	if s.notifier == nil {
		return
	}
	s.notifier.OnTransition(ctx, TransitionEvent{
		ItemID:  item.ID,
		Kind:    item.Kind,
		Urgency: item.Urgency,
		From:    from,
		To:      to,
		Actor:   actor,
		At:      at,
	})
}
