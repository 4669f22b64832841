package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func seedPendingItem(t *testing.T, repo ItemRepository) *PoolItem {
	t.Helper()
	item := &PoolItem{Kind: KindLabTest, Status: StatusPending, Urgency: UrgencyRoutine}
	if err := repo.Create(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func TestClaim_Success(t *testing.T) {
	repo := NewMemoryRepo()
	coord := NewCoordinator(repo)
	item := seedPendingItem(t, repo)
	worker := uuid.New()

	got, claimed, err := coord.Claim(context.Background(), item.ID, worker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claimed {
		t.Error("expected claimed=true on fresh claim")
	}
	if got.Status != StatusClaimed {
		t.Errorf("expected CLAIMED, got %s", got.Status)
	}
	if !got.OwnedBy(worker) {
		t.Error("expected worker to own the item")
	}
	if got.Version != 1 {
		t.Errorf("expected version 1, got %d", got.Version)
	}
	if got.ClaimedAt == nil {
		t.Error("expected ClaimedAt to be set")
	}
}

func TestClaim_NotFound(t *testing.T) {
	coord := NewCoordinator(NewMemoryRepo())
	_, _, err := coord.Claim(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaim_AlreadyClaimedByOther(t *testing.T) {
	repo := NewMemoryRepo()
	coord := NewCoordinator(repo)
	item := seedPendingItem(t, repo)

	if _, _, err := coord.Claim(context.Background(), item.ID, uuid.New()); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	_, _, err := coord.Claim(context.Background(), item.ID, uuid.New())
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaim_IdempotentRepeat(t *testing.T) {
	repo := NewMemoryRepo()
	coord := NewCoordinator(repo)
	item := seedPendingItem(t, repo)
	worker := uuid.New()

	first, _, err := coord.Claim(context.Background(), item.ID, worker)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}

	second, claimed, err := coord.Claim(context.Background(), item.ID, worker)
	if err != nil {
		t.Fatalf("repeat claim should succeed: %v", err)
	}
	if claimed {
		t.Error("repeat claim should not report a fresh claim")
	}
	if second.Version != first.Version {
		t.Errorf("repeat claim must not bump version: %d vs %d", second.Version, first.Version)
	}
}

func TestClaim_TerminalItem(t *testing.T) {
	repo := NewMemoryRepo()
	coord := NewCoordinator(repo)
	svc := NewService(repo)
	item := seedPendingItem(t, repo)
	worker := uuid.New()

	mustClaimStart(t, svc, item.ID, worker)
	if _, err := svc.Complete(context.Background(), item.ID, worker, []ResultEntry{{Label: "WBC", Value: "6.1"}}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, _, err := coord.Claim(context.Background(), item.ID, uuid.New())
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed on terminal item, got %v", err)
	}
}

// Many workers race for the same item; exactly one wins and each loser
// gets ErrAlreadyClaimed.
func TestClaim_ConcurrentWorkers(t *testing.T) {
	repo := NewMemoryRepo()
	coord := NewCoordinator(repo)
	item := seedPendingItem(t, repo)

	const workers = 32
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, errs[n] = coord.Claim(context.Background(), item.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrAlreadyClaimed):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}

	got, err := repo.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("expected version 1 after the race, got %d", got.Version)
	}
	if got.OwnerID == nil {
		t.Error("expected an owner after the race")
	}
}

func mustClaimStart(t *testing.T, svc *Service, itemID, worker uuid.UUID) {
	t.Helper()
	if _, err := svc.Claim(context.Background(), itemID, worker); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.Start(context.Background(), itemID, worker); err != nil {
		t.Fatalf("start: %v", err)
	}
}
