package spaces

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
)

// Repository exposes persistence helpers for spaces and their members.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, space *models.Space) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error)
	FindByUserID(ctx context.Context, userID string) (*models.Space, error)
	HasMember(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error)
	Delete(ctx context.Context, spaceID uuid.UUID) (int64, error)
	UpdateMemberLocation(ctx context.Context, spaceID uuid.UUID, userID string, loc MemberLocation, now time.Time) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a spaces repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// MemberLocation is the writable location slice of a space member row.
type MemberLocation struct {
	Latitude  *float64
	Longitude *float64
	City      *string
	Country   *string
	District  *string
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, space *models.Space) error {
	return r.db.WithContext(ctx).Create(space).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Space, error) {
	var space models.Space
	if err := r.db.WithContext(ctx).Preload("Members").First(&space, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &space, nil
}

func (r *repositoryImpl) FindByUserID(ctx context.Context, userID string) (*models.Space, error) {
	var member models.SpaceMember
	if err := r.db.WithContext(ctx).First(&member, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return r.FindByID(ctx, member.SpaceID)
}

func (r *repositoryImpl) HasMember(ctx context.Context, spaceID uuid.UUID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SpaceMember{}).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes the space row; member and photo rows cascade.
func (r *repositoryImpl) Delete(ctx context.Context, spaceID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Space{}, "id = ?", spaceID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) UpdateMemberLocation(ctx context.Context, spaceID uuid.UUID, userID string, loc MemberLocation, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SpaceMember{}).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		Updates(map[string]any{
			"latitude":            loc.Latitude,
			"longitude":           loc.Longitude,
			"city":                loc.City,
			"country":             loc.Country,
			"district":            loc.District,
			"location_updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
