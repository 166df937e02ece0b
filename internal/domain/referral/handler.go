package referral

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sellerhub/affiliate-api/internal/middleware"
	"github.com/sellerhub/affiliate-api/internal/pkg/response"
	"github.com/sellerhub/affiliate-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type bindRequest struct {
	ReferralCode string `json:"referral_code" validate:"required,min=4,max=16"`
}

type bindResponse struct {
	Bound      bool    `json:"bound"`
	ReferredBy *string `json:"referred_by,omitempty"`
}

// Bind handles POST /referrals/bind
func (h *Handler) Bind(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req bindRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.BindReferralIfEligible(r.Context(), userID, req.ReferralCode)
	if err != nil {
		switch {
		case errors.Is(err, ErrProfileNotFound):
			response.NotFound(w, "Profile not found")
		case errors.Is(err, ErrCodeNotFound):
			response.BadRequest(w, "Referral code does not exist")
		case errors.Is(err, ErrSelfReferral):
			response.BadRequest(w, "You cannot use your own referral code")
		case errors.Is(err, ErrCircularReferral):
			response.BadRequest(w, "You cannot use a referral code from your own team")
		default:
			response.InternalError(w)
		}
		return
	}

	resp := bindResponse{Bound: result.Bound}
	if result.ReferredBy != nil {
		s := result.ReferredBy.String()
		resp.ReferredBy = &s
	}
	response.OK(w, resp)
}

// Enable handles POST /affiliates/enable. Invoked by the purchase-approval
// workflow once a member becomes commission-eligible.
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	profile, err := h.svc.EnsureAffiliateEnabled(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrProfileNotFound):
			response.NotFound(w, "Profile not found")
		case errors.Is(err, ErrCodeGeneration):
			response.InternalError(w)
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{
		"referral_code":        profile.ReferralCode,
		"is_affiliate_enabled": profile.AffiliateEnabled,
		"affiliate_enabled_at": profile.AffiliateSince,
	})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/bind", h.Bind)
	return r
}
