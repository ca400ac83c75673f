package feeding

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
)

// Repository exposes the day-bucketed feeding state on spaces and members.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	MarkFed(ctx context.Context, spaceID uuid.UUID, userID string, day DayKey) (bool, error)
	FedMembers(ctx context.Context, spaceID uuid.UUID, day DayKey) ([]string, error)
	MemberCount(ctx context.Context, spaceID uuid.UUID) (int64, error)
	IncrementStreak(ctx context.Context, spaceID uuid.UUID, day DayKey) (bool, error)
	StreakDays(ctx context.Context, spaceID uuid.UUID) (int, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a feeding repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// MarkFed stamps the member's row with the day key. Re-feeding on the same
// day is a no-op at this layer; the stamp is idempotent.
func (r *repositoryImpl) MarkFed(ctx context.Context, spaceID uuid.UUID, userID string, day DayKey) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SpaceMember{}).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		UpdateColumn("last_fed_date", day.String())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) FedMembers(ctx context.Context, spaceID uuid.UUID, day DayKey) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.SpaceMember{}).
		Where("space_id = ? AND last_fed_date = ?", spaceID, day.String()).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (r *repositoryImpl) MemberCount(ctx context.Context, spaceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SpaceMember{}).
		Where("space_id = ?", spaceID).
		Count(&count).Error
	return count, err
}

// IncrementStreak bumps the counter at most once per day. The guard on
// last_streak_date makes concurrent calls for the same day race to a single
// winner.
func (r *repositoryImpl) IncrementStreak(ctx context.Context, spaceID uuid.UUID, day DayKey) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Space{}).
		Where("id = ? AND last_streak_date <> ?", spaceID, day.String()).
		Updates(map[string]any{
			"streak_days":      gorm.Expr("streak_days + 1"),
			"last_streak_date": day.String(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) StreakDays(ctx context.Context, spaceID uuid.UUID) (int, error) {
	var space models.Space
	if err := r.db.WithContext(ctx).Select("streak_days").First(&space, "id = ?", spaceID).Error; err != nil {
		return 0, err
	}
	return space.StreakDays, nil
}
