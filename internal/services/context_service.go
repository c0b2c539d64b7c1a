package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/repositories/relational"
	"github.com/yoockh/aibuddy/internal/utils"
)

// ContextService is the context store: what the companion remembers about the user.
type ContextService interface {
	ListFacts(ctx context.Context) ([]models.UserFact, error)
	AddFact(ctx context.Context, key, value string) (*models.UserFact, error)
	DeleteFact(ctx context.Context, id uint) error

	ListTopics(ctx context.Context) ([]models.ConversationTopic, error)
	AddTopic(ctx context.Context, topic, keywords string) (*models.ConversationTopic, error)
	DeleteTopic(ctx context.Context, id uint) error
}

type contextService struct {
	facts  relational.FactRepository
	topics relational.TopicRepository
}

func NewContextService(facts relational.FactRepository, topics relational.TopicRepository) ContextService {
	return &contextService{facts: facts, topics: topics}
}

func (s *contextService) ListFacts(ctx context.Context) ([]models.UserFact, error) {
	const op = "ContextService.ListFacts"

	rows, err := s.facts.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list user facts", err)
	}
	return rows, nil
}

func (s *contextService) AddFact(ctx context.Context, key, value string) (*models.UserFact, error) {
	const op = "ContextService.AddFact"

	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "key and value are required", nil)
	}

	row := &models.UserFact{Key: key, Value: value}
	if err := s.facts.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert user fact", err)
	}
	return row, nil
}

func (s *contextService) DeleteFact(ctx context.Context, id uint) error {
	const op = "ContextService.DeleteFact"

	if id == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}
	if err := s.facts.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "user fact not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete user fact", err)
	}
	return nil
}

func (s *contextService) ListTopics(ctx context.Context) ([]models.ConversationTopic, error) {
	const op = "ContextService.ListTopics"

	rows, err := s.topics.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversation topics", err)
	}
	return rows, nil
}

func (s *contextService) AddTopic(ctx context.Context, topic, keywords string) (*models.ConversationTopic, error) {
	const op = "ContextService.AddTopic"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "topic is required", nil)
	}

	row := &models.ConversationTopic{Topic: topic, Keywords: strings.TrimSpace(keywords)}
	if err := s.topics.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert conversation topic", err)
	}
	return row, nil
}

func (s *contextService) DeleteTopic(ctx context.Context, id uint) error {
	const op = "ContextService.DeleteTopic"

	if id == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}
	if err := s.topics.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "conversation topic not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete conversation topic", err)
	}
	return nil
}
