package payout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	ApprovedEarningsCents(ctx context.Context, userID uuid.UUID) (int64, error)
	ReservedCents(ctx context.Context, userID uuid.UUID) (int64, error)
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error)
	ListByStatus(ctx context.Context, status *Status, limit, offset int) ([]Request, error)
	Transition(ctx context.Context, id uuid.UUID, from, to Status) error
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ApprovedEarningsCents sums the affiliate's APPROVED ledger entries:
// the ceiling of what may ever be withdrawn.
func (r *PostgresRepository) ApprovedEarningsCents(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int64
	err := r.db.GetContext(ctx2, &total, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM commission_ledger
		WHERE earner_id = $1 AND status = 'APPROVED'
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: approved earnings", ErrInternal)
	}
	return total, nil
}

// ReservedCents sums every request that holds or has consumed balance:
// REQUESTED reserves optimistically, before any admin review.
func (r *PostgresRepository) ReservedCents(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int64
	err := r.db.GetContext(ctx2, &total, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payout_requests
		WHERE user_id = $1 AND status IN ('REQUESTED', 'APPROVED', 'PAID')
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: reserved cents", ErrInternal)
	}
	return total, nil
}

// Create inserts the request only if the affiliate's free balance still
// covers the amount at insert time. The balance re-check inside the
// INSERT closes the window between the service's read and the write: of
// two racing requests, only the one that still fits lands. Zero rows
// affected surfaces as ErrInsufficientBalance.
func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		INSERT INTO payout_requests (id, user_id, amount_cents, status, bank_info, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE (
			SELECT COALESCE(SUM(amount_cents), 0)
			FROM commission_ledger
			WHERE earner_id = $2 AND status = 'APPROVED'
		) - (
			SELECT COALESCE(SUM(amount_cents), 0)
			FROM payout_requests
			WHERE user_id = $2 AND status IN ('REQUESTED', 'APPROVED', 'PAID')
		) >= $3
	`, req.ID, req.UserID, req.AmountCents, req.Status, req.BankInfo, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert payout request", ErrInternal)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: insert payout request", ErrInternal)
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var req Request
	err := r.db.GetContext(ctx2, &req, `
		SELECT id, user_id, amount_cents, status, bank_info, created_at, approved_at, paid_at
		FROM payout_requests
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payout request", ErrInternal)
	}
	return &req, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Request, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	requests := make([]Request, 0)
	err := r.db.SelectContext(ctx2, &requests, `
		SELECT id, user_id, amount_cents, status, bank_info, created_at, approved_at, paid_at
		FROM payout_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payout requests", ErrInternal)
	}
	return requests, nil
}

func (r *PostgresRepository) ListByStatus(ctx context.Context, status *Status, limit, offset int) ([]Request, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, amount_cents, status, bank_info, created_at, approved_at, paid_at
		FROM payout_requests
		WHERE 1=1`
	args := make([]interface{}, 0, 3)
	idx := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *status)
		idx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	requests := make([]Request, 0)
	if err := r.db.SelectContext(ctx2, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list payout requests", ErrInternal)
	}
	return requests, nil
}

// Transition advances the request with a conditional update on the
// current status. Zero rows affected means a concurrent transition won;
// the caller refreshes and retries or reports the conflict.
func (r *PostgresRepository) Transition(ctx context.Context, id uuid.UUID, from, to Status) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE payout_requests
		SET status = $1,
		    approved_at = CASE WHEN $1 = 'APPROVED' THEN now() ELSE approved_at END,
		    paid_at     = CASE WHEN $1 = 'PAID'     THEN now() ELSE paid_at     END
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("%w: transition payout", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrStatusConflict
	}
	return nil
}
