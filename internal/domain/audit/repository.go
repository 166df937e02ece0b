package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *Entry) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO audit_entries (id, actor_id, action, entity_type, entity_ids, old_status, new_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.EntityType,
		entry.EntityIDs,
		entry.OldStatus,
		entry.NewStatus,
		entry.Note,
		entry.CreatedAt,
	)
	return err
}

// filterClause renders the WHERE tail shared by List and Count.
func filterClause(filter Filter) (string, []interface{}, int) {
	clause := " WHERE 1=1"
	args := make([]interface{}, 0, 6)
	idx := 1

	if filter.ActorID != nil {
		clause += fmt.Sprintf(" AND actor_id = $%d", idx)
		args = append(args, *filter.ActorID)
		idx++
	}
	if filter.Action != nil && *filter.Action != "" {
		clause += fmt.Sprintf(" AND action = $%d", idx)
		args = append(args, *filter.Action)
		idx++
	}
	if filter.EntityType != nil && *filter.EntityType != "" {
		clause += fmt.Sprintf(" AND entity_type = $%d", idx)
		args = append(args, *filter.EntityType)
		idx++
	}
	if filter.DateFrom != nil {
		clause += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filter.DateFrom)
		idx++
	}
	if filter.DateTo != nil {
		clause += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filter.DateTo)
		idx++
	}
	return clause, args, idx
}

func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	clause, args, idx := filterClause(filter)
	query := `
		SELECT id, actor_id, action, entity_type, entity_ids, old_status, new_status, note, created_at
		FROM audit_entries` + clause

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filter.Offset)

	entries := make([]Entry, 0)
	if err := r.db.SelectContext(ctx2, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns how many entries match the filter, ignoring pagination.
func (r *PostgresRepository) Count(ctx context.Context, filter Filter) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	clause, args, _ := filterClause(filter)

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM audit_entries`+clause, args...); err != nil {
		return 0, err
	}
	return total, nil
}
