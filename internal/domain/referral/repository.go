package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository is the persistence surface the referral service depends on.
type Repository interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetProfileByCode(ctx context.Context, code string) (*Profile, error)
	BindReferral(ctx context.Context, memberID, referrerID uuid.UUID, path Path) error
	EnableAffiliate(ctx context.Context, memberID uuid.UUID, code string) error
	GetEnabledFlags(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

type profileRow struct {
	ID               uuid.UUID      `db:"id"`
	ReferralCode     sql.NullString `db:"referral_code"`
	ReferredBy       uuid.NullUUID  `db:"referred_by"`
	ReferralPath     sql.NullString `db:"referral_path"`
	AffiliateEnabled bool           `db:"is_affiliate_enabled"`
	AffiliateSince   sql.NullTime   `db:"affiliate_enabled_at"`
}

func (row *profileRow) toProfile() (*Profile, error) {
	path, err := ParsePath(row.ReferralPath.String)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		ID:               row.ID,
		ReferralPath:     path,
		AffiliateEnabled: row.AffiliateEnabled,
	}
	if row.ReferralCode.Valid {
		code := row.ReferralCode.String
		p.ReferralCode = &code
	}
	if row.ReferredBy.Valid {
		id := row.ReferredBy.UUID
		p.ReferredBy = &id
	}
	if row.AffiliateSince.Valid {
		t := row.AffiliateSince.Time
		p.AffiliateSince = &t
	}
	return p, nil
}

// PostgresRepository stores referral state on the profiles table.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row profileRow
	err := r.db.GetContext(ctx2, &row, `
		SELECT id, referral_code, referred_by, referral_path, is_affiliate_enabled, affiliate_enabled_at
		FROM profiles
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile", ErrInternal)
	}
	return row.toProfile()
}

func (r *PostgresRepository) GetProfileByCode(ctx context.Context, code string) (*Profile, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row profileRow
	err := r.db.GetContext(ctx2, &row, `
		SELECT id, referral_code, referred_by, referral_path, is_affiliate_enabled, affiliate_enabled_at
		FROM profiles
		WHERE referral_code = $1
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile by code", ErrInternal)
	}
	return row.toProfile()
}

// BindReferral records the upline relationship only if the member is still
// unbound at write time. Zero rows affected means a concurrent bind won;
// the caller re-reads and treats the call as a no-op.
func (r *PostgresRepository) BindReferral(ctx context.Context, memberID, referrerID uuid.UUID, path Path) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE profiles
		SET referred_by = $2, referral_path = $3
		WHERE id = $1 AND referred_by IS NULL
	`, memberID, referrerID, path.Encode())
	if err != nil {
		return fmt.Errorf("%w: bind referral", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrAlreadyBound
	}
	return nil
}

// EnableAffiliate assigns the referral code and flips the enablement flag.
// affiliate_enabled_at is sticky: only the first enable sets it.
func (r *PostgresRepository) EnableAffiliate(ctx context.Context, memberID uuid.UUID, code string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE profiles
		SET referral_code = $2,
		    is_affiliate_enabled = TRUE,
		    affiliate_enabled_at = COALESCE(affiliate_enabled_at, now())
		WHERE id = $1
	`, memberID, code)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrCodeTaken
		}
		return fmt.Errorf("%w: enable affiliate", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// GetEnabledFlags batch-fetches enablement for a set of member ids.
// Ids absent from the result were not found and count as not enabled.
func (r *PostgresRepository) GetEnabledFlags(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	flags := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return flags, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		ID      uuid.UUID `db:"id"`
		Enabled bool      `db:"is_affiliate_enabled"`
	}
	err := r.db.SelectContext(ctx2, &rows, `
		SELECT id, is_affiliate_enabled
		FROM profiles
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: get enabled flags", ErrInternal)
	}

	for _, row := range rows {
		flags[row.ID] = row.Enabled
	}
	return flags, nil
}
