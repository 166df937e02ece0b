package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Recorder is the write-side surface exposed to the ledger and payout
// state machines.
type Recorder interface {
	Record(ctx context.Context, actorID uuid.UUID, action, entityType string, entityIDs []uuid.UUID, oldStatus, newStatus, note string)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one audit entry. Failures are logged, never propagated:
// an audit write must not fail the financial transition it describes.
func (s *Service) Record(ctx context.Context, actorID uuid.UUID, action, entityType string, entityIDs []uuid.UUID, oldStatus, newStatus, note string) {
	ids := make([]string, len(entityIDs))
	for i, id := range entityIDs {
		ids[i] = id.String()
	}

	entry := &Entry{
		ID:         uuid.New(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityIDs:  ids,
		OldStatus:  sql.NullString{String: oldStatus, Valid: oldStatus != ""},
		NewStatus:  sql.NullString{String: newStatus, Valid: newStatus != ""},
		Note:       sql.NullString{String: note, Valid: note != ""},
		CreatedAt:  time.Now(),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("action", action).
			Str("entity_type", entityType).
			Msg("failed to write audit entry")
	}
}

// List returns one page of audit entries for the admin dashboard plus
// the total match count for pagination.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
