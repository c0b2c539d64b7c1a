package services

import (
	"context"
	"strings"
	"time"

	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/repositories/relational"
	"github.com/yoockh/aibuddy/internal/utils"
)

const DefaultConversationTitle = "New Conversation"

// Titler summarizes a transcript into a short title.
type Titler interface {
	Title(ctx context.Context, transcript string) (string, error)
}

type ConversationService interface {
	// Record titles the transcript and stores the finished conversation.
	Record(ctx context.Context, transcript string, endedAt time.Time, duration time.Duration) (*models.Conversation, error)
	Recent(ctx context.Context, limit int) ([]models.Conversation, error)
}

type conversationService struct {
	convos relational.ConversationRepo
	titler Titler
}

func NewConversationService(convos relational.ConversationRepo, titler Titler) ConversationService {
	return &conversationService{convos: convos, titler: titler}
}

func (s *conversationService) Record(ctx context.Context, transcript string, endedAt time.Time, duration time.Duration) (*models.Conversation, error) {
	const op = "ConversationService.Record"

	if strings.TrimSpace(transcript) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "transcript is required", nil)
	}
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	if duration < 0 {
		duration = 0
	}

	title := DefaultConversationTitle
	if s.titler != nil {
		if t, err := s.titler.Title(ctx, transcript); err == nil && strings.TrimSpace(t) != "" {
			title = t
		}
	}

	row := &models.Conversation{
		Title:             title,
		Timestamp:         endedAt.UnixMilli(),
		DurationInMinutes: int(duration / time.Minute),
	}
	if err := s.convos.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert conversation", err)
	}
	return row, nil
}

func (s *conversationService) Recent(ctx context.Context, limit int) ([]models.Conversation, error) {
	const op = "ConversationService.Recent"

	rows, err := s.convos.Recent(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}
	return rows, nil
}
