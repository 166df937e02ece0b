package commission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sellerhub/affiliate-api/internal/domain/audit"
	"github.com/sellerhub/affiliate-api/internal/domain/referral"
)

// ProfileDirectory is the slice of the referral store the recorder needs:
// the buyer's upline chain and enablement flags for the chain's members.
type ProfileDirectory interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*referral.Profile, error)
	GetEnabledFlags(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// RecordInput describes one monetizable action to record.
type RecordInput struct {
	BuyerID        uuid.UUID
	ShopID         *uuid.UUID
	EventType      EventType
	AmountCents    int64
	ClassifierCode string
	ExternalRef    string
}

type Service struct {
	repo     Repository
	profiles ProfileDirectory
	auditor  audit.Recorder
}

func NewService(repo Repository, profiles ProfileDirectory, auditor audit.Recorder) *Service {
	return &Service{repo: repo, profiles: profiles, auditor: auditor}
}

// RecordEvent creates the event and its commission ledger rows. Safe to
// call any number of times with the same external ref: exactly one event
// and one ledger batch ever exist per ref, under retries and races.
func (s *Service) RecordEvent(ctx context.Context, in RecordInput) (*RecordResult, error) {
	if !in.EventType.Valid() {
		return nil, ErrInvalidEventType
	}
	if in.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	ref := strings.TrimSpace(in.ExternalRef)
	if ref == "" {
		return nil, ErrMissingRef
	}

	if existing, err := s.repo.GetEventByExternalRef(ctx, ref); err == nil {
		return &RecordResult{EventID: existing.ID, Created: false}, nil
	} else if !errors.Is(err, ErrEventNotFound) {
		return nil, err
	}

	buyer, err := s.profiles.GetProfile(ctx, in.BuyerID)
	if err != nil {
		if errors.Is(err, referral.ErrProfileNotFound) {
			return nil, ErrBuyerNotFound
		}
		return nil, err
	}

	event := &Event{
		ID:             uuid.New(),
		BuyerID:        in.BuyerID,
		EventType:      in.EventType,
		AmountCents:    in.AmountCents,
		ClassifierCode: in.ClassifierCode,
		ExternalRef:    ref,
		CreatedAt:      time.Now(),
	}
	if in.ShopID != nil {
		event.ShopID = uuid.NullUUID{UUID: *in.ShopID, Valid: true}
	}

	entries, err := s.buildLedgerEntries(ctx, event, buyer.ReferralPath)
	if err != nil {
		return nil, err
	}

	// Event and ledger rows commit together; a failed fan-out leaves no
	// event behind to short-circuit the retry.
	err = s.repo.InsertEventWithEntries(ctx, event, entries)
	if errors.Is(err, ErrDuplicateRef) {
		// A concurrent delivery of the same ref won the insert. Treat as
		// already created, never as a failure.
		existing, readErr := s.repo.GetEventByExternalRef(ctx, ref)
		if readErr != nil {
			return nil, readErr
		}
		return &RecordResult{EventID: existing.ID, Created: false}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("buyer_id", in.BuyerID.String()).
		Str("event_type", string(in.EventType)).
		Int64("amount_cents", in.AmountCents).
		Int("ledger_entries", len(entries)).
		Msg("affiliate event recorded")

	return &RecordResult{EventID: event.ID, Created: true, Entries: entries}, nil
}

// buildLedgerEntries derives the pending commission rows from the
// buyer's upline chain. Enablement is checked at event time: an upline
// member disabled after referring earns nothing. Amounts that floor to
// zero are skipped.
func (s *Service) buildLedgerEntries(ctx context.Context, event *Event, upline referral.Path) ([]LedgerEntry, error) {
	if len(upline) == 0 {
		return nil, nil
	}

	flags, err := s.profiles.GetEnabledFlags(ctx, upline)
	if err != nil {
		return nil, err
	}

	entries := make([]LedgerEntry, 0, len(upline))
	for i, earnerID := range upline {
		if i >= referral.MaxPathDepth {
			break
		}
		if !flags[earnerID] {
			continue
		}

		level := i + 1
		rate := RateBps(event.EventType, level)
		amount := CommissionCents(event.AmountCents, rate)
		if amount <= 0 {
			continue
		}

		entries = append(entries, LedgerEntry{
			ID:          uuid.New(),
			EventID:     event.ID,
			EarnerID:    earnerID,
			BuyerID:     event.BuyerID,
			Level:       level,
			RateBps:     rate,
			AmountCents: amount,
			Status:      StatusPending,
			CreatedAt:   event.CreatedAt,
		})
	}
	return entries, nil
}

// Transition applies one admin action to a batch of ledger entries. The
// selection must share a single current status and the action must be
// legal from it; otherwise nothing is applied.
func (s *Service) Transition(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID, action Action, note string) ([]LedgerEntry, error) {
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEntryNotFound
	}

	entries, err := s.repo.GetEntriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(entries) != len(ids) {
		return nil, ErrEntryNotFound
	}

	current := entries[0].Status
	for _, e := range entries[1:] {
		if e.Status != current {
			return nil, ErrMixedStatuses
		}
	}

	target, err := action.Apply(current)
	if err != nil {
		return nil, err
	}

	if err := s.repo.TransitionEntries(ctx, ids, current, target, note); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actorID, "ledger."+string(action), "commission_ledger", ids, string(current), string(target), note)

	log.Info().
		Str("actor_id", actorID.String()).
		Str("action", string(action)).
		Str("from", string(current)).
		Str("to", string(target)).
		Int("entries", len(ids)).
		Msg("ledger transition applied")

	return s.repo.GetEntriesByIDs(ctx, ids)
}

// GetEventByExternalRef looks up an event for admin debugging.
func (s *Service) GetEventByExternalRef(ctx context.Context, externalRef string) (*Event, error) {
	return s.repo.GetEventByExternalRef(ctx, externalRef)
}

// Search lists ledger entries.
func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]LedgerEntry, error) {
	return s.repo.Search(ctx, filter)
}

// TotalsByEarner aggregates ledger amounts per status for one affiliate.
func (s *Service) TotalsByEarner(ctx context.Context, earnerID uuid.UUID) (*StatusTotals, error) {
	return s.repo.TotalsByEarner(ctx, earnerID)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
