package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sellerhub/affiliate-api/internal/domain/referral"
)

type repoStub struct {
	approved map[uuid.UUID]int64
	requests map[uuid.UUID]*Request

	// createHook runs once at the start of the next Create, before the
	// balance guard, standing in for a concurrent writer.
	createHook func()
}

func newRepoStub() *repoStub {
	return &repoStub{
		approved: make(map[uuid.UUID]int64),
		requests: make(map[uuid.UUID]*Request),
	}
}

func (r *repoStub) ApprovedEarningsCents(_ context.Context, userID uuid.UUID) (int64, error) {
	return r.approved[userID], nil
}

func (r *repoStub) ReservedCents(_ context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	for _, req := range r.requests {
		if req.UserID != userID {
			continue
		}
		switch req.Status {
		case StatusRequested, StatusApproved, StatusPaid:
			total += req.AmountCents
		case StatusRejected:
		}
	}
	return total, nil
}

// Create mirrors the conditional reserve insert: the balance is
// re-checked atomically with the write.
func (r *repoStub) Create(ctx context.Context, req *Request) error {
	if r.createHook != nil {
		hook := r.createHook
		r.createHook = nil
		hook()
	}
	reserved, _ := r.ReservedCents(ctx, req.UserID)
	if r.approved[req.UserID]-reserved < req.AmountCents {
		return ErrInsufficientBalance
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *repoStub) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	if req, ok := r.requests[id]; ok {
		cp := *req
		return &cp, nil
	}
	return nil, ErrRequestNotFound
}

func (r *repoStub) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]Request, error) {
	out := make([]Request, 0)
	for _, req := range r.requests {
		if req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *repoStub) ListByStatus(_ context.Context, _ *Status, _, _ int) ([]Request, error) {
	return nil, nil
}

func (r *repoStub) Transition(_ context.Context, id uuid.UUID, from, to Status) error {
	req, ok := r.requests[id]
	if !ok || req.Status != from {
		return ErrStatusConflict
	}
	req.Status = to
	return nil
}

type profileStub struct {
	profiles map[uuid.UUID]*referral.Profile
}

func (p *profileStub) GetProfile(_ context.Context, id uuid.UUID) (*referral.Profile, error) {
	if prof, ok := p.profiles[id]; ok {
		return prof, nil
	}
	return nil, referral.ErrProfileNotFound
}

type auditStub struct {
	records int
}

func (a *auditStub) Record(_ context.Context, _ uuid.UUID, _, _ string, _ []uuid.UUID, _, _, _ string) {
	a.records++
}

func fixture(approvedCents int64) (*repoStub, *Service, uuid.UUID) {
	repo := newRepoStub()
	userID := uuid.New()
	repo.approved[userID] = approvedCents

	profiles := &profileStub{profiles: map[uuid.UUID]*referral.Profile{
		userID: {ID: userID, AffiliateEnabled: true},
	}}
	svc := NewService(repo, profiles, &auditStub{})
	return repo, svc, userID
}

func bank() BankInfo {
	return BankInfo{BankName: "First Bank", AccountName: "A Seller", AccountNumber: "0011223344"}
}

func TestAvailableBalanceFormula(t *testing.T) {
	repo, svc, userID := fixture(50000)
	repo.requests[uuid.New()] = &Request{ID: uuid.New(), UserID: userID, AmountCents: 10000, Status: StatusRequested}
	repo.requests[uuid.New()] = &Request{ID: uuid.New(), UserID: userID, AmountCents: 15000, Status: StatusPaid}
	// Rejected requests release their reservation.
	repo.requests[uuid.New()] = &Request{ID: uuid.New(), UserID: userID, AmountCents: 99999, Status: StatusRejected}

	balance, err := svc.AvailableBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.AvailableCents != 25000 {
		t.Fatalf("expected 25000 available, got %d", balance.AvailableCents)
	}
}

func TestAvailableBalanceFlooredAtZero(t *testing.T) {
	repo, svc, userID := fixture(10000)
	// A reversal after payout can push reserved past approved.
	repo.requests[uuid.New()] = &Request{ID: uuid.New(), UserID: userID, AmountCents: 15000, Status: StatusPaid}

	balance, err := svc.AvailableBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.AvailableCents != 0 {
		t.Fatalf("expected 0 available, got %d", balance.AvailableCents)
	}
}

func TestAvailableBalanceIsolatedPerAffiliate(t *testing.T) {
	repo, svc, userID := fixture(30000)
	other := uuid.New()
	repo.approved[other] = 30000
	repo.requests[uuid.New()] = &Request{ID: uuid.New(), UserID: other, AmountCents: 30000, Status: StatusRequested}

	balance, err := svc.AvailableBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance.AvailableCents != 30000 {
		t.Fatalf("another affiliate's requests must not affect balance, got %d", balance.AvailableCents)
	}
}

func TestCreateRequestReservesImmediately(t *testing.T) {
	_, svc, userID := fixture(50000)

	before, _ := svc.AvailableBalance(context.Background(), userID)
	req, err := svc.CreateRequest(context.Background(), userID, 20000, bank())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != StatusRequested {
		t.Fatalf("expected REQUESTED, got %s", req.Status)
	}

	after, _ := svc.AvailableBalance(context.Background(), userID)
	if before.AvailableCents-after.AvailableCents != 20000 {
		t.Fatalf("expected available to drop by exactly 20000, got %d -> %d",
			before.AvailableCents, after.AvailableCents)
	}
}

func TestCreateRequestMinimumBoundary(t *testing.T) {
	_, svc, userID := fixture(MinPayoutCents)

	// Exactly the minimum with exactly that much available succeeds.
	if _, err := svc.CreateRequest(context.Background(), userID, MinPayoutCents, bank()); err != nil {
		t.Fatalf("exact minimum must succeed, got %v", err)
	}

	_, svc2, user2 := fixture(MinPayoutCents)
	if _, err := svc2.CreateRequest(context.Background(), user2, MinPayoutCents-1, bank()); !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("one cent below minimum must fail, got %v", err)
	}
}

func TestCreateRequestInsufficientBalance(t *testing.T) {
	_, svc, userID := fixture(20000)

	if _, err := svc.CreateRequest(context.Background(), userID, 20001, bank()); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("one cent over available must fail, got %v", err)
	}
}

func TestCreateRequestConcurrentReserve(t *testing.T) {
	repo, svc, userID := fixture(30000)

	// A competing request lands between our balance read and our insert.
	// The reserve guard inside Create must reject the loser: the two
	// requests would jointly exceed the 30000 of approved earnings.
	repo.createHook = func() {
		id := uuid.New()
		repo.requests[id] = &Request{ID: id, UserID: userID, AmountCents: 20000, Status: StatusRequested}
	}

	if _, err := svc.CreateRequest(context.Background(), userID, 20000, bank()); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("racing request must lose to the reserve guard, got %v", err)
	}
	if len(repo.requests) != 1 {
		t.Fatalf("expected only the winner's request stored, got %d", len(repo.requests))
	}
}

func TestCreateRequestNotEnabled(t *testing.T) {
	repo := newRepoStub()
	userID := uuid.New()
	repo.approved[userID] = 50000
	profiles := &profileStub{profiles: map[uuid.UUID]*referral.Profile{
		userID: {ID: userID, AffiliateEnabled: false},
	}}
	svc := NewService(repo, profiles, &auditStub{})

	if _, err := svc.CreateRequest(context.Background(), userID, 20000, bank()); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}
}

func seedRequest(repo *repoStub, status Status) uuid.UUID {
	id := uuid.New()
	repo.requests[id] = &Request{ID: id, UserID: uuid.New(), AmountCents: 15000, Status: status}
	return id
}

func TestPayoutTransitions(t *testing.T) {
	repo, svc, _ := fixture(0)

	id := seedRequest(repo, StatusRequested)
	req, err := svc.Transition(context.Background(), uuid.New(), id, ActionApprove, "")
	if err != nil {
		t.Fatalf("approve: unexpected error %v", err)
	}
	if req.Status != StatusApproved {
		t.Fatalf("expected APPROVED, got %s", req.Status)
	}

	req, err = svc.Transition(context.Background(), uuid.New(), id, ActionMarkPaid, "wired")
	if err != nil {
		t.Fatalf("mark_paid: unexpected error %v", err)
	}
	if req.Status != StatusPaid {
		t.Fatalf("expected PAID, got %s", req.Status)
	}

	rejectedFromRequested := seedRequest(repo, StatusRequested)
	if _, err := svc.Transition(context.Background(), uuid.New(), rejectedFromRequested, ActionReject, "invalid account"); err != nil {
		t.Fatalf("reject from REQUESTED: %v", err)
	}
	rejectedFromApproved := seedRequest(repo, StatusApproved)
	if _, err := svc.Transition(context.Background(), uuid.New(), rejectedFromApproved, ActionReject, ""); err != nil {
		t.Fatalf("reject from APPROVED: %v", err)
	}
}

func TestPayoutIllegalTransitions(t *testing.T) {
	repo, svc, _ := fixture(0)

	cases := []struct {
		status Status
		action Action
	}{
		{StatusApproved, ActionApprove},
		{StatusPaid, ActionApprove},
		{StatusRejected, ActionApprove},
		{StatusRequested, ActionMarkPaid},
		{StatusPaid, ActionMarkPaid},
		{StatusRejected, ActionMarkPaid},
		{StatusPaid, ActionReject},
		{StatusRejected, ActionReject},
	}
	for _, c := range cases {
		id := seedRequest(repo, c.status)
		if _, err := svc.Transition(context.Background(), uuid.New(), id, c.action, ""); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s on %s: expected ErrInvalidTransition, got %v", c.action, c.status, err)
		}
		if repo.requests[id].Status != c.status {
			t.Errorf("%s on %s: status mutated", c.action, c.status)
		}
	}
}

func TestPayoutTransitionNotFound(t *testing.T) {
	_, svc, _ := fixture(0)

	if _, err := svc.Transition(context.Background(), uuid.New(), uuid.New(), ActionApprove, ""); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}

func TestPayoutTransitionInvalidAction(t *testing.T) {
	repo, svc, _ := fixture(0)
	id := seedRequest(repo, StatusRequested)

	if _, err := svc.Transition(context.Background(), uuid.New(), id, Action("cancel"), ""); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}
