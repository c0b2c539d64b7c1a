package relational

import (
	"context"

	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/utils"
	"gorm.io/gorm"
)

type TopicRepository interface {
	List(ctx context.Context) ([]models.ConversationTopic, error)
	Insert(ctx context.Context, t *models.ConversationTopic) error
	DeleteByID(ctx context.Context, id uint) error
}

type topicRepo struct {
	db *gorm.DB
}

func NewTopicRepo(db *gorm.DB) TopicRepository {
	return &topicRepo{db: db}
}

func (r *topicRepo) List(ctx context.Context) ([]models.ConversationTopic, error) {
	var rows []models.ConversationTopic
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *topicRepo) Insert(ctx context.Context, t *models.ConversationTopic) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *topicRepo) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.ConversationTopic{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
