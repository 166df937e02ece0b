package team

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sellerhub/affiliate-api/internal/domain/commission"
	"github.com/sellerhub/affiliate-api/internal/domain/payout"
	"github.com/sellerhub/affiliate-api/internal/middleware"
	"github.com/sellerhub/affiliate-api/internal/pkg/response"
)

// LedgerTotalsProvider supplies per-status ledger totals for the summary.
type LedgerTotalsProvider interface {
	TotalsByEarner(ctx context.Context, earnerID uuid.UUID) (*commission.StatusTotals, error)
}

// BalanceProvider supplies the withdrawable balance for the summary.
type BalanceProvider interface {
	AvailableBalance(ctx context.Context, userID uuid.UUID) (*payout.Balance, error)
}

type Handler struct {
	svc     *Service
	ledger  LedgerTotalsProvider
	balance BalanceProvider
}

func NewHandler(svc *Service, ledger LedgerTotalsProvider, balance BalanceProvider) *Handler {
	return &Handler{svc: svc, ledger: ledger, balance: balance}
}

// Tree handles GET /affiliates/me/team
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	tree, err := h.svc.GetTree(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, tree)
}

// Summary handles GET /affiliates/me/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	totals, err := h.ledger.TotalsByEarner(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	balance, err := h.balance.AvailableBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}
	tree, err := h.svc.GetTree(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"totals":        totals,
		"balance":       balance,
		"level_counts":  tree.LevelCounts,
		"total_members": tree.TotalMembers,
	})
}
