package payout

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sellerhub/affiliate-api/internal/domain/referral"
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

type createRequest struct {
	AmountCents   int64  `json:"amount_cents" validate:"required,gt=0"`
	BankName      string `json:"bank_name" validate:"required,max=128"`
	AccountName   string `json:"account_name" validate:"required,max=128"`
	AccountNumber string `json:"account_number" validate:"required,max=64"`
	Note          string `json:"note" validate:"max=500"`
}

// Create handles POST /payouts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	created, err := h.svc.CreateRequest(r.Context(), userID, req.AmountCents, BankInfo{
		BankName:      req.BankName,
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		Note:          req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotEnabled):
			response.Forbidden(w, "Affiliate program is not enabled for this account")
		case errors.Is(err, ErrBelowMinimum):
			response.BadRequest(w, fmt.Sprintf("Minimum payout amount is %d cents", MinPayoutCents))
		case errors.Is(err, ErrInsufficientBalance):
			response.BadRequest(w, "Requested amount exceeds your available balance")
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "Amount must be greater than zero")
		case errors.Is(err, referral.ErrProfileNotFound):
			response.NotFound(w, "Profile not found")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, created)
}

// ListMine handles GET /payouts
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, offset := parsePagination(r)
	requests, err := h.svc.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, requests)
}

// Balance handles GET /affiliates/me/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.AvailableBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, balance)
}

// AdminList handles GET /admin/payouts
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	var status *Status
	if v := r.URL.Query().Get("status"); v != "" {
		s := Status(v)
		if !s.Valid() {
			response.BadRequest(w, "Invalid status")
			return
		}
		status = &s
	}

	limit, offset := parsePagination(r)
	requests, err := h.svc.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, requests)
}

type actionRequest struct {
	Action string `json:"action" validate:"required,payout_action"`
	Note   string `json:"note" validate:"max=500"`
}

// AdminAction handles POST /admin/payouts/{id}/actions
func (h *Handler) AdminAction(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	if actorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid payout id")
		return
	}

	var req actionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	updated, err := h.svc.Transition(r.Context(), actorID, requestID, Action(req.Action), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotFound):
			response.NotFound(w, "Payout request not found")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, transitionErrorMessage(Action(req.Action)))
		case errors.Is(err, ErrInvalidAction):
			response.BadRequest(w, "Invalid payout action")
		case errors.Is(err, ErrStatusConflict):
			response.Conflict(w, "Payout state changed, please refresh and retry")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, updated)
}

func transitionErrorMessage(action Action) string {
	switch action {
	case ActionApprove:
		return "Only requested payouts can be approved"
	case ActionMarkPaid:
		return "Only approved payouts can be marked paid"
	case ActionReject:
		return "Only requested or approved payouts can be rejected"
	default:
		return "Transition not allowed from current status"
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.Create)
	r.Get("/", h.ListMine)
	return r
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
