package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sellerhub/affiliate-api/internal/domain/audit"
	"github.com/sellerhub/affiliate-api/internal/domain/referral"
)

// EnablementChecker is the slice of the referral store the reconciler
// needs: whether the requester is an enabled affiliate.
type EnablementChecker interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*referral.Profile, error)
}

type Service struct {
	repo     Repository
	profiles EnablementChecker
	auditor  audit.Recorder
}

func NewService(repo Repository, profiles EnablementChecker, auditor audit.Recorder) *Service {
	return &Service{repo: repo, profiles: profiles, auditor: auditor}
}

// AvailableBalance computes what the affiliate may withdraw right now:
// approved earnings minus everything already reserved by outstanding or
// settled requests, floored at zero. A REQUESTED row reserves balance
// immediately, so overlapping requests can never jointly exceed approved
// earnings.
func (s *Service) AvailableBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	approved, err := s.repo.ApprovedEarningsCents(ctx, userID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.repo.ReservedCents(ctx, userID)
	if err != nil {
		return nil, err
	}

	available := approved - reserved
	if available < 0 {
		available = 0
	}
	return &Balance{
		ApprovedEarningsCents: approved,
		ReservedCents:         reserved,
		AvailableCents:        available,
	}, nil
}

// CreateRequest validates and records a withdrawal request. The balance
// is recomputed at request time, never cached.
func (s *Service) CreateRequest(ctx context.Context, userID uuid.UUID, amountCents int64, bankInfo BankInfo) (*Request, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !profile.AffiliateEnabled {
		return nil, ErrNotEnabled
	}

	if amountCents < MinPayoutCents {
		return nil, ErrBelowMinimum
	}

	// Early balance check for a fast rejection. The authoritative guard
	// is inside Create, which re-checks the balance atomically with the
	// insert so racing requests cannot jointly over-reserve.
	balance, err := s.AvailableBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amountCents > balance.AvailableCents {
		return nil, ErrInsufficientBalance
	}

	req := &Request{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: amountCents,
		Status:      StatusRequested,
		BankInfo:    bankInfo,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Int64("amount_cents", amountCents).
		Str("payout_id", req.ID.String()).
		Msg("payout requested")

	return req, nil
}

// Transition applies one admin action to a payout request. The guard is
// a conditional update on the status read here, so a concurrent admin
// action surfaces as ErrStatusConflict instead of silently double-applying.
func (s *Service) Transition(ctx context.Context, actorID, requestID uuid.UUID, action Action, note string) (*Request, error) {
	if !action.Valid() {
		return nil, ErrInvalidAction
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	target, err := action.Apply(req.Status)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Transition(ctx, requestID, req.Status, target); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, actorID, "payout."+string(action), "payout_request",
		[]uuid.UUID{requestID}, string(req.Status), string(target), note)

	log.Info().
		Str("actor_id", actorID.String()).
		Str("payout_id", requestID.String()).
		Str("user_id", req.UserID.String()).
		Int64("amount_cents", req.AmountCents).
		Str("from", string(req.Status)).
		Str("to", string(target)).
		Msg("payout transition applied")

	return s.repo.GetByID(ctx, requestID)
}

// ListByUser returns the affiliate's own requests.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// ListByStatus returns requests for the admin dashboard.
func (s *Service) ListByStatus(ctx context.Context, status *Status, limit, offset int) ([]Request, error) {
	return s.repo.ListByStatus(ctx, status, limit, offset)
}
