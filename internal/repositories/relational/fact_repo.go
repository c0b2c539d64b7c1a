package relational

import (
	"context"

	"github.com/yoockh/aibuddy/internal/models"
	"github.com/yoockh/aibuddy/internal/utils"
	"gorm.io/gorm"
)

type FactRepository interface {
	List(ctx context.Context) ([]models.UserFact, error)
	Insert(ctx context.Context, f *models.UserFact) error
	DeleteByID(ctx context.Context, id uint) error
}

type factRepo struct {
	db *gorm.DB
}

func NewFactRepo(db *gorm.DB) FactRepository {
	return &factRepo{db: db}
}

func (r *factRepo) List(ctx context.Context) ([]models.UserFact, error) {
	var rows []models.UserFact
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *factRepo) Insert(ctx context.Context, f *models.UserFact) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *factRepo) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.UserFact{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
