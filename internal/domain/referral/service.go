package referral

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	codeLength      = 8
	codeSeedLength  = 4
	maxCodeAttempts = 10
)

// Service maintains the referral graph and affiliate enablement.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// BindReferralIfEligible binds buyerID to the owner of code, first
// attribution wins. A buyer who is already bound gets the current state
// back unchanged; later codes are silently ignored so repeated
// submissions cannot hijack an existing attribution.
func (s *Service) BindReferralIfEligible(ctx context.Context, buyerID uuid.UUID, code string) (*BindResult, error) {
	buyer, err := s.repo.GetProfile(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	if buyer.ReferredBy != nil {
		return &BindResult{Bound: false, ReferredBy: buyer.ReferredBy, Path: buyer.ReferralPath}, nil
	}

	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCodeNotFound
	}

	referrer, err := s.repo.GetProfileByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.ID == buyerID {
		return nil, ErrSelfReferral
	}
	// A referrer that descends from the buyer would put the buyer into
	// its own path and close a cycle.
	if referrer.ReferralPath.IndexOf(buyerID) != -1 {
		return nil, ErrCircularReferral
	}

	path := ChildPath(referrer.ID, referrer.ReferralPath)

	err = s.repo.BindReferral(ctx, buyerID, referrer.ID, path)
	if errors.Is(err, ErrAlreadyBound) {
		// Lost the race to a concurrent bind. Not an error: report
		// whatever relationship actually won.
		current, readErr := s.repo.GetProfile(ctx, buyerID)
		if readErr != nil {
			return nil, readErr
		}
		return &BindResult{Bound: false, ReferredBy: current.ReferredBy, Path: current.ReferralPath}, nil
	}
	if err != nil {
		return nil, err
	}

	referrerID := referrer.ID
	log.Info().
		Str("buyer_id", buyerID.String()).
		Str("referrer_id", referrerID.String()).
		Int("path_depth", len(path)).
		Msg("referral bound")

	return &BindResult{Bound: true, ReferredBy: &referrerID, Path: path}, nil
}

// EnsureAffiliateEnabled turns the member into a commission-earning
// affiliate, idempotently. Already-enabled members get their existing
// state back; the first-enable timestamp is never overwritten.
func (s *Service) EnsureAffiliateEnabled(ctx context.Context, memberID uuid.UUID) (*Profile, error) {
	profile, err := s.repo.GetProfile(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if profile.AffiliateEnabled && profile.ReferralCode != nil {
		return profile, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate := generateCode(memberID)

		if _, err := s.repo.GetProfileByCode(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, ErrCodeNotFound) {
			return nil, err
		}

		err = s.repo.EnableAffiliate(ctx, memberID, candidate)
		if errors.Is(err, ErrCodeTaken) {
			// Raced with another member claiming the same code.
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("member_id", memberID.String()).
			Str("referral_code", candidate).
			Msg("affiliate enabled")

		return s.repo.GetProfile(ctx, memberID)
	}

	return nil, ErrCodeGeneration
}

// generateCode builds an 8-char uppercase alphanumeric candidate: a seed
// fragment derived from the member id plus a random suffix.
func generateCode(memberID uuid.UUID) string {
	seed := alphanumeric(memberID.String())
	if len(seed) > codeSeedLength {
		seed = seed[:codeSeedLength]
	}

	suffix := alphanumeric(uuid.New().String())
	code := seed + suffix
	if len(code) > codeLength {
		code = code[:codeLength]
	}
	return code
}

func alphanumeric(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
