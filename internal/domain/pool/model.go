package pool

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pool item.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusClaimed    Status = "CLAIMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusClaimed:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return validStatuses[s] }

// Kind discriminates the two pool item flavors. Transition rules do not
// depend on it.
type Kind string

const (
	KindLabTest    Kind = "lab_test"
	KindLabRequest Kind = "lab_request"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindLabTest || k == KindLabRequest }

// Urgency orders items for presentation; it never affects claim eligibility.
type Urgency string

const (
	UrgencyRoutine Urgency = "ROUTINE"
	UrgencyUrgent  Urgency = "URGENT"
	UrgencyStat    Urgency = "STAT"
)

var urgencyRank = map[Urgency]int{
	UrgencyRoutine: 0,
	UrgencyUrgent:  1,
	UrgencyStat:    2,
}

// Rank returns the sort weight of the urgency (higher sorts first).
func (u Urgency) Rank() int { return urgencyRank[u] }

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	_, ok := urgencyRank[u]
	return ok
}

// ResultFlag marks a result entry as normal or critical.
type ResultFlag string

const (
	FlagNormal   ResultFlag = "NORMAL"
	FlagCritical ResultFlag = "CRITICAL"
)

// ResultEntry is a single structured lab result attached on completion.
// Value is free text: qualitative results ("positive", "trace") are as
// legitimate as numeric ones.
type ResultEntry struct {
	Label          string     `json:"label"`
	Value          string     `json:"value"`
	Unit           string     `json:"unit,omitempty"`
	ReferenceRange string     `json:"reference_range,omitempty"`
	Flag           ResultFlag `json:"flag,omitempty"`
	Note           string     `json:"note,omitempty"`
}

// PoolItem is one unit of lab work awaiting a technician.
//
// OwnerID is non-nil exactly while the item is CLAIMED or IN_PROGRESS.
// Once the item reaches a terminal state the owner is cleared and the
// acting worker is recorded in CompletedBy or CancelledBy for history
// and idempotent-retry checks.
//
// Version increments by one on every accepted transition and is the
// compare-and-swap token for conditional writes.
type PoolItem struct {
	ID                 uuid.UUID        `db:"id" json:"id"`
	Kind               Kind             `db:"kind" json:"kind"`
	Status             Status           `db:"status" json:"status"`
	OwnerID            *uuid.UUID       `db:"owner_id" json:"owner_id,omitempty"`
	Version            int              `db:"version" json:"version"`
	Urgency            Urgency          `db:"urgency" json:"urgency"`
	Payload            *json.RawMessage `db:"payload" json:"payload,omitempty"`
	Results            []ResultEntry    `db:"results" json:"results,omitempty"`
	CancellationReason *string          `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CompletedBy        *uuid.UUID       `db:"completed_by" json:"completed_by,omitempty"`
	CancelledBy        *uuid.UUID       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	ClaimedAt          *time.Time       `db:"claimed_at" json:"claimed_at,omitempty"`
	StartedAt          *time.Time       `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt        *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether the item is currently held by worker.
func (i *PoolItem) OwnedBy(worker uuid.UUID) bool {
	return i.OwnerID != nil && *i.OwnerID == worker
}

// ClosedBy reports whether worker drove the item into its terminal state.
func (i *PoolItem) ClosedBy(worker uuid.UUID) bool {
	switch i.Status {
	case StatusCompleted:
		return i.CompletedBy != nil && *i.CompletedBy == worker
	case StatusCancelled:
		return i.CancelledBy != nil && *i.CancelledBy == worker
	}
	return false
}

// Clone returns a deep copy so stored items cannot be mutated through
// returned pointers.
func (i *PoolItem) Clone() *PoolItem {
	out := *i
	out.OwnerID = cloneUUID(i.OwnerID)
	out.CompletedBy = cloneUUID(i.CompletedBy)
	out.CancelledBy = cloneUUID(i.CancelledBy)
	out.ClaimedAt = cloneTime(i.ClaimedAt)
	out.StartedAt = cloneTime(i.StartedAt)
	out.CompletedAt = cloneTime(i.CompletedAt)
	out.CancelledAt = cloneTime(i.CancelledAt)
	if i.CancellationReason != nil {
		reason := *i.CancellationReason
		out.CancellationReason = &reason
	}
	if i.Payload != nil {
		raw := make(json.RawMessage, len(*i.Payload))
		copy(raw, *i.Payload)
		out.Payload = &raw
	}
	if i.Results != nil {
		out.Results = make([]ResultEntry, len(i.Results))
		copy(out.Results, i.Results)
	}
	return &out
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
