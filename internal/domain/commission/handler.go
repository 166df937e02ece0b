package commission

import (
	"errors"
	"net/http"
	"strconv"
	"time"

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

type recordEventRequest struct {
	BuyerID        string `json:"buyer_id" validate:"required,uuid"`
	ShopID         string `json:"shop_id" validate:"omitempty,uuid"`
	EventType      string `json:"event_type" validate:"required,event_type"`
	AmountCents    int64  `json:"amount_cents" validate:"required,gt=0"`
	ClassifierCode string `json:"classifier_code" validate:"required,max=64"`
	ExternalRef    string `json:"external_ref" validate:"required,max=128"`
}

// RecordEvent handles POST /events, called by the purchase-approval
// workflow after a purchase is confirmed and priced. The external ref is
// caller-constructed and stable across retries of the same purchase.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		response.BadRequest(w, "Invalid buyer_id")
		return
	}

	in := RecordInput{
		BuyerID:        buyerID,
		EventType:      EventType(req.EventType),
		AmountCents:    req.AmountCents,
		ClassifierCode: req.ClassifierCode,
		ExternalRef:    req.ExternalRef,
	}
	if req.ShopID != "" {
		shopID, err := uuid.Parse(req.ShopID)
		if err != nil {
			response.BadRequest(w, "Invalid shop_id")
			return
		}
		in.ShopID = &shopID
	}

	result, err := h.svc.RecordEvent(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrBuyerNotFound):
			response.NotFound(w, "Buyer not found")
		case errors.Is(err, ErrInvalidEventType):
			response.BadRequest(w, "Invalid event type")
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "Amount must be greater than zero")
		case errors.Is(err, ErrMissingRef):
			response.BadRequest(w, "External ref is required")
		default:
			response.InternalError(w)
		}
		return
	}

	if !result.Created {
		response.OK(w, map[string]interface{}{"event_id": result.EventID, "created": false})
		return
	}
	response.Created(w, map[string]interface{}{
		"event_id": result.EventID,
		"created":  true,
		"entries":  result.Entries,
	})
}

// MyLedger handles GET /affiliates/me/ledger
func (h *Handler) MyLedger(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	filter, ok := parseSearchFilter(w, r)
	if !ok {
		return
	}
	filter.EarnerID = &userID

	entries, err := h.svc.Search(r.Context(), filter)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, entries)
}

// AdminSearch handles GET /admin/ledger
func (h *Handler) AdminSearch(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseSearchFilter(w, r)
	if !ok {
		return
	}

	if v := r.URL.Query().Get("earner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid earner_id")
			return
		}
		filter.EarnerID = &id
	}
	if v := r.URL.Query().Get("buyer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid buyer_id")
			return
		}
		filter.BuyerID = &id
	}

	entries, err := h.svc.Search(r.Context(), filter)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, entries)
}

type ledgerActionRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=200,dive,uuid"`
	Action string   `json:"action" validate:"required,ledger_action"`
	Note   string   `json:"note" validate:"max=500"`
}

// AdminAction handles POST /admin/ledger/actions
func (h *Handler) AdminAction(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	if actorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req ledgerActionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid ledger entry id")
			return
		}
		ids = append(ids, id)
	}

	entries, err := h.svc.Transition(r.Context(), actorID, ids, Action(req.Action), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrEntryNotFound):
			response.NotFound(w, "One or more ledger entries not found")
		case errors.Is(err, ErrMixedStatuses):
			response.Conflict(w, "Selected entries have mixed statuses; select entries in a single status")
		case errors.Is(err, ErrInvalidTransition):
			response.Conflict(w, transitionErrorMessage(Action(req.Action)))
		case errors.Is(err, ErrInvalidAction):
			response.BadRequest(w, "Invalid ledger action")
		case errors.Is(err, ErrStatusConflict):
			response.Conflict(w, "Ledger state changed, please refresh and retry")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, entries)
}

// GetEvent handles GET /admin/events/{externalRef}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "externalRef")
	event, err := h.svc.GetEventByExternalRef(r.Context(), ref)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			response.NotFound(w, "Event not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, event)
}

func transitionErrorMessage(action Action) string {
	switch action {
	case ActionApprove:
		return "Only pending entries can be approved"
	case ActionMarkPaid:
		return "Only approved entries can be marked paid"
	case ActionReverse:
		return "Reversed entries cannot be reversed again"
	default:
		return "Transition not allowed from current status"
	}
}

func parseSearchFilter(w http.ResponseWriter, r *http.Request) (SearchFilter, bool) {
	filter := SearchFilter{}

	if v := r.URL.Query().Get("status"); v != "" {
		status := LedgerStatus(v)
		if !status.Valid() {
			response.BadRequest(w, "Invalid status")
			return filter, false
		}
		filter.Status = &status
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "Invalid from timestamp")
			return filter, false
		}
		filter.DateFrom = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "Invalid to timestamp")
			return filter, false
		}
		filter.DateTo = &t
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	return filter, true
}
