package services

import (
	"context"
	"time"

	"github.com/yoockh/aibuddy/internal/models"
	mongorepo "github.com/yoockh/aibuddy/internal/repositories/mongo"
	"github.com/yoockh/aibuddy/internal/utils"
)

// JournalService keeps a short-lived record of completed turns.
type JournalService interface {
	Append(ctx context.Context, rec *models.TurnRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnRecord, error)
}

type journalService struct {
	turns mongorepo.TurnRepository
	ttl   time.Duration
}

func NewJournalService(turns mongorepo.TurnRepository, ttl time.Duration) JournalService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &journalService{turns: turns, ttl: ttl}
}

func (s *journalService) Append(ctx context.Context, rec *models.TurnRecord) error {
	const op = "JournalService.Append"

	if rec == nil || rec.SessionID == "" || rec.TurnIndex <= 0 {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required and turn_index must be > 0", nil)
	}

	now := time.Now().UTC()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.ExpiresAt = rec.Timestamp.Add(s.ttl)

	if err := s.turns.Insert(ctx, rec); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert turn record", err)
	}
	return nil
}

func (s *journalService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnRecord, error) {
	const op = "JournalService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.turns.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list turn journal", err)
	}
	return out, nil
}
