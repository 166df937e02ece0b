package commission

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sellerhub/affiliate-api/internal/domain/referral"
)

type repoStub struct {
	events  map[string]*Event
	entries map[uuid.UUID]*LedgerEntry

	insertEventErr   error
	insertEntriesErr error
	insertBatches    int
}

func newRepoStub() *repoStub {
	return &repoStub{
		events:  make(map[string]*Event),
		entries: make(map[uuid.UUID]*LedgerEntry),
	}
}

func (r *repoStub) GetEventByExternalRef(_ context.Context, ref string) (*Event, error) {
	if e, ok := r.events[ref]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, ErrEventNotFound
}

// InsertEventWithEntries mirrors the transactional write: an error on
// either side stores nothing.
func (r *repoStub) InsertEventWithEntries(_ context.Context, event *Event, entries []LedgerEntry) error {
	if r.insertEventErr != nil {
		return r.insertEventErr
	}
	if _, ok := r.events[event.ExternalRef]; ok {
		return ErrDuplicateRef
	}
	if r.insertEntriesErr != nil {
		return r.insertEntriesErr
	}
	cp := *event
	r.events[event.ExternalRef] = &cp
	if len(entries) > 0 {
		r.insertBatches++
	}
	for _, e := range entries {
		ecp := e
		r.entries[e.ID] = &ecp
	}
	return nil
}

func (r *repoStub) GetEntriesByIDs(_ context.Context, ids []uuid.UUID) ([]LedgerEntry, error) {
	out := make([]LedgerEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *repoStub) TransitionEntries(_ context.Context, ids []uuid.UUID, from, to LedgerStatus, note string) error {
	// Mirrors the conditional bulk update: all rows must still match
	// `from` or nothing is applied.
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok || e.Status != from {
			return ErrStatusConflict
		}
	}
	for _, id := range ids {
		e := r.entries[id]
		e.Status = to
		if note != "" {
			e.Note.String = note
			e.Note.Valid = true
		}
	}
	return nil
}

func (r *repoStub) Search(_ context.Context, _ SearchFilter) ([]LedgerEntry, error) {
	return nil, nil
}

func (r *repoStub) TotalsByEarner(_ context.Context, _ uuid.UUID) (*StatusTotals, error) {
	return &StatusTotals{}, nil
}

type dirStub struct {
	profiles map[uuid.UUID]*referral.Profile
	enabled  map[uuid.UUID]bool
}

func (d *dirStub) GetProfile(_ context.Context, id uuid.UUID) (*referral.Profile, error) {
	if p, ok := d.profiles[id]; ok {
		return p, nil
	}
	return nil, referral.ErrProfileNotFound
}

func (d *dirStub) GetEnabledFlags(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	flags := make(map[uuid.UUID]bool)
	for _, id := range ids {
		flags[id] = d.enabled[id]
	}
	return flags, nil
}

type auditStub struct {
	records int
}

func (a *auditStub) Record(_ context.Context, _ uuid.UUID, _, _ string, _ []uuid.UUID, _, _, _ string) {
	a.records++
}

// fixture builds a buyer with a full 3-level upline, all enabled.
func fixture() (*repoStub, *dirStub, *auditStub, *Service, uuid.UUID, [3]uuid.UUID) {
	repo := newRepoStub()
	buyerID := uuid.New()
	upline := [3]uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	dir := &dirStub{
		profiles: map[uuid.UUID]*referral.Profile{
			buyerID: {ID: buyerID, ReferralPath: referral.Path{upline[0], upline[1], upline[2]}},
		},
		enabled: map[uuid.UUID]bool{upline[0]: true, upline[1]: true, upline[2]: true},
	}
	auditor := &auditStub{}
	svc := NewService(repo, dir, auditor)
	return repo, dir, auditor, svc, buyerID, upline
}

func record(t *testing.T, svc *Service, buyerID uuid.UUID, amount int64, ref string) *RecordResult {
	t.Helper()
	res, err := svc.RecordEvent(context.Background(), RecordInput{
		BuyerID:        buyerID,
		EventType:      EventTypePackagePurchase,
		AmountCents:    amount,
		ClassifierCode: "pro",
		ExternalRef:    ref,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res
}

func TestRecordEventFullUpline(t *testing.T) {
	_, _, _, svc, buyerID, upline := fixture()

	res := record(t, svc, buyerID, 10000, "order-1:pro")
	if !res.Created {
		t.Fatal("expected created")
	}
	if len(res.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(res.Entries))
	}

	wantAmounts := [3]int64{2500, 500, 300}
	wantRates := [3]int64{2500, 500, 300}
	for i, e := range res.Entries {
		if e.Level != i+1 {
			t.Errorf("entry %d: level = %d, want %d", i, e.Level, i+1)
		}
		if e.EarnerID != upline[i] {
			t.Errorf("entry %d: wrong earner", i)
		}
		if e.AmountCents != wantAmounts[i] {
			t.Errorf("entry %d: amount = %d, want %d", i, e.AmountCents, wantAmounts[i])
		}
		if e.RateBps != wantRates[i] {
			t.Errorf("entry %d: rate = %d, want %d", i, e.RateBps, wantRates[i])
		}
		if e.Status != StatusPending {
			t.Errorf("entry %d: status = %s, want PENDING", i, e.Status)
		}
		if e.BuyerID != buyerID {
			t.Errorf("entry %d: wrong buyer", i)
		}
	}
}

func TestRecordEventIdempotent(t *testing.T) {
	repo, _, _, svc, buyerID, _ := fixture()

	first := record(t, svc, buyerID, 10000, "order-1:pro")
	second := record(t, svc, buyerID, 10000, "order-1:pro")

	if second.Created {
		t.Fatal("second call must not create")
	}
	if second.EventID != first.EventID {
		t.Fatal("second call must return the original event id")
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.events))
	}
	if repo.insertBatches != 1 {
		t.Fatalf("expected 1 ledger batch, got %d", repo.insertBatches)
	}
	if len(repo.entries) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(repo.entries))
	}
}

func TestRecordEventAbsorbsInsertRace(t *testing.T) {
	repo, _, _, svc, buyerID, _ := fixture()

	// A concurrent caller inserted the event between our existence check
	// and our insert.
	existing := &Event{ID: uuid.New(), BuyerID: buyerID, EventType: EventTypePackagePurchase, AmountCents: 10000, ExternalRef: "order-9:pro"}
	repo.insertEventErr = ErrDuplicateRef
	repo.events["order-9:pro"] = existing

	res, err := svc.RecordEvent(context.Background(), RecordInput{
		BuyerID:        buyerID,
		EventType:      EventTypePackagePurchase,
		AmountCents:    10000,
		ClassifierCode: "pro",
		ExternalRef:    "order-9:pro",
	})
	if err != nil {
		t.Fatalf("duplicate ref on insert must be absorbed, got %v", err)
	}
	if res.Created || res.EventID != existing.ID {
		t.Fatalf("expected existing event reported, got %+v", res)
	}
	if repo.insertBatches != 0 {
		t.Fatal("loser must not insert ledger entries")
	}
}

func TestRecordEventFailedWriteLeavesNoEvent(t *testing.T) {
	repo, _, _, svc, buyerID, _ := fixture()

	// The transactional write fails mid-flight: neither the event nor
	// any ledger row may survive, or a retry would short-circuit on the
	// existing ref and the commissions would be lost for good.
	repo.insertEntriesErr = errors.New("connection reset")

	_, err := svc.RecordEvent(context.Background(), RecordInput{
		BuyerID:        buyerID,
		EventType:      EventTypePackagePurchase,
		AmountCents:    10000,
		ClassifierCode: "pro",
		ExternalRef:    "order-7:pro",
	})
	if err == nil {
		t.Fatal("expected write error to surface")
	}
	if len(repo.events) != 0 || len(repo.entries) != 0 {
		t.Fatalf("failed write must store nothing, got %d events %d entries", len(repo.events), len(repo.entries))
	}

	// The retry with the same ref now succeeds in full.
	repo.insertEntriesErr = nil
	res := record(t, svc, buyerID, 10000, "order-7:pro")
	if !res.Created {
		t.Fatal("retry must create the event")
	}
	if len(repo.events) != 1 || len(repo.entries) != 3 || repo.insertBatches != 1 {
		t.Fatalf("retry must land event and full ledger batch, got %d events %d entries %d batches",
			len(repo.events), len(repo.entries), repo.insertBatches)
	}
}

func TestRecordEventDisabledMiddleUpline(t *testing.T) {
	_, dir, _, svc, buyerID, upline := fixture()
	dir.enabled[upline[1]] = false

	res := record(t, svc, buyerID, 10000, "order-2:pro")
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Entries[0].Level != 1 || res.Entries[0].AmountCents != 2500 {
		t.Fatalf("level 1 unaffected, got %+v", res.Entries[0])
	}
	if res.Entries[1].Level != 3 || res.Entries[1].AmountCents != 300 {
		t.Fatalf("level 3 unaffected, got %+v", res.Entries[1])
	}
}

func TestRecordEventSkipsZeroAmounts(t *testing.T) {
	repo, _, _, svc, buyerID, _ := fixture()

	// 3 cents: every level floors to zero.
	res := record(t, svc, buyerID, 3, "order-3:starter")
	if len(res.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(res.Entries))
	}
	if len(repo.events) != 1 {
		t.Fatal("event itself must still be recorded")
	}
}

func TestRecordEventNoReferrer(t *testing.T) {
	repo := newRepoStub()
	buyerID := uuid.New()
	dir := &dirStub{
		profiles: map[uuid.UUID]*referral.Profile{buyerID: {ID: buyerID}},
		enabled:  map[uuid.UUID]bool{},
	}
	svc := NewService(repo, dir, &auditStub{})

	res := record(t, svc, buyerID, 10000, "order-4:pro")
	if !res.Created || len(res.Entries) != 0 {
		t.Fatalf("expected standalone event, got %+v", res)
	}
}

func TestRecordEventBuyerNotFound(t *testing.T) {
	repo := newRepoStub()
	svc := NewService(repo, &dirStub{profiles: map[uuid.UUID]*referral.Profile{}}, &auditStub{})

	_, err := svc.RecordEvent(context.Background(), RecordInput{
		BuyerID:        uuid.New(),
		EventType:      EventTypeCreditTopup,
		AmountCents:    500,
		ClassifierCode: "topup-5",
		ExternalRef:    "topup-1",
	})
	if !errors.Is(err, ErrBuyerNotFound) {
		t.Fatalf("expected ErrBuyerNotFound, got %v", err)
	}
}

func TestRecordEventValidation(t *testing.T) {
	_, _, _, svc, buyerID, _ := fixture()

	_, err := svc.RecordEvent(context.Background(), RecordInput{
		BuyerID: buyerID, EventType: "SOMETHING", AmountCents: 100, ExternalRef: "x",
	})
	if !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}

	_, err = svc.RecordEvent(context.Background(), RecordInput{
		BuyerID: buyerID, EventType: EventTypeCreditTopup, AmountCents: 0, ExternalRef: "x",
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func seedEntries(repo *repoStub, statuses ...LedgerStatus) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(statuses))
	for _, s := range statuses {
		id := uuid.New()
		repo.entries[id] = &LedgerEntry{ID: id, Status: s, AmountCents: 100}
		ids = append(ids, id)
	}
	return ids
}

func TestTransitionApprove(t *testing.T) {
	repo, _, auditor, svc, _, _ := fixture()
	ids := seedEntries(repo, StatusPending, StatusPending)

	entries, err := svc.Transition(context.Background(), uuid.New(), ids, ActionApprove, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range entries {
		if e.Status != StatusApproved {
			t.Fatalf("expected APPROVED, got %s", e.Status)
		}
	}
	if auditor.records != 1 {
		t.Fatalf("expected 1 audit record, got %d", auditor.records)
	}
}

func TestTransitionIllegal(t *testing.T) {
	repo, _, _, svc, _, _ := fixture()

	paid := seedEntries(repo, StatusPaid)
	if _, err := svc.Transition(context.Background(), uuid.New(), paid, ActionApprove, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve on PAID: expected ErrInvalidTransition, got %v", err)
	}

	pending := seedEntries(repo, StatusPending)
	if _, err := svc.Transition(context.Background(), uuid.New(), pending, ActionMarkPaid, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("mark_paid on PENDING: expected ErrInvalidTransition, got %v", err)
	}

	reversed := seedEntries(repo, StatusReversed)
	if _, err := svc.Transition(context.Background(), uuid.New(), reversed, ActionReverse, "dup"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reverse on REVERSED: expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionReverseFromAnyLiveStatus(t *testing.T) {
	repo, _, _, svc, _, _ := fixture()

	for _, status := range []LedgerStatus{StatusPending, StatusApproved, StatusPaid} {
		ids := seedEntries(repo, status)
		entries, err := svc.Transition(context.Background(), uuid.New(), ids, ActionReverse, "manual correction")
		if err != nil {
			t.Fatalf("reverse from %s: unexpected error %v", status, err)
		}
		if entries[0].Status != StatusReversed {
			t.Fatalf("reverse from %s: got %s", status, entries[0].Status)
		}
		if !entries[0].Note.Valid || entries[0].Note.String != "manual correction" {
			t.Fatalf("reverse must record the note, got %+v", entries[0].Note)
		}
	}
}

func TestTransitionMixedBatchRejected(t *testing.T) {
	repo, _, auditor, svc, _, _ := fixture()
	ids := seedEntries(repo, StatusPending, StatusApproved)

	_, err := svc.Transition(context.Background(), uuid.New(), ids, ActionReverse, "")
	if !errors.Is(err, ErrMixedStatuses) {
		t.Fatalf("expected ErrMixedStatuses, got %v", err)
	}
	// Zero mutations.
	for _, id := range ids {
		if repo.entries[id].Status == StatusReversed {
			t.Fatal("mixed batch must not mutate any entry")
		}
	}
	if auditor.records != 0 {
		t.Fatal("rejected batch must not be audited")
	}
}

func TestTransitionUnknownID(t *testing.T) {
	repo, _, _, svc, _, _ := fixture()
	ids := seedEntries(repo, StatusPending)
	ids = append(ids, uuid.New())

	_, err := svc.Transition(context.Background(), uuid.New(), ids, ActionApprove, "")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestTransitionInvalidAction(t *testing.T) {
	repo, _, _, svc, _, _ := fixture()
	ids := seedEntries(repo, StatusPending)

	_, err := svc.Transition(context.Background(), uuid.New(), ids, Action("delete"), "")
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}
