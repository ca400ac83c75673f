package photos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
)

// Repository exposes persistence helpers for shared photos.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, photo *models.PhotoShare) error
	ListBySpace(ctx context.Context, spaceID uuid.UUID, limit int) ([]models.PhotoShare, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a photos repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, photo *models.PhotoShare) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

func (r *repositoryImpl) ListBySpace(ctx context.Context, spaceID uuid.UUID, limit int) ([]models.PhotoShare, error) {
	var photos []models.PhotoShare
	query := r.db.WithContext(ctx).
		Where("space_id = ?", spaceID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&photos).Error; err != nil {
		return nil, err
	}
	return photos, nil
}
