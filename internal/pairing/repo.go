package pairing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairspace/pairspace-backend/pkg/db/models"
	"github.com/pairspace/pairspace-backend/pkg/enums"
)

// Repository exposes persistence helpers for invitations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	FindPendingByRequester(ctx context.Context, requesterID string) (*models.Invitation, error)
	ListPendingForTarget(ctx context.Context, targetID string) ([]models.Invitation, error)
	MarkStatus(ctx context.Context, id uuid.UUID, from, to enums.InvitationStatus, now time.Time) (int64, error)
	CancelPendingBetween(ctx context.Context, userA, userB string, excludeID uuid.UUID, now time.Time) (int64, error)
	DeletePending(ctx context.Context, id uuid.UUID) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an invitations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(ctx).First(&invitation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repositoryImpl) FindPendingByRequester(ctx context.Context, requesterID string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := r.db.WithContext(ctx).
		First(&invitation, "requester_id = ? AND status = ?", requesterID, enums.InvitationStatusPending).Error
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repositoryImpl) ListPendingForTarget(ctx context.Context, targetID string) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND status = ?", targetID, enums.InvitationStatusPending).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// MarkStatus transitions a single invitation with a compare-and-set on the
// current status. Zero rows affected means the invitation was missing or
// already past the expected state.
func (r *repositoryImpl) MarkStatus(ctx context.Context, id uuid.UUID, from, to enums.InvitationStatus, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CancelPendingBetween cancels every pending invitation connecting the two
// users in either direction, except the excluded one.
func (r *repositoryImpl) CancelPendingBetween(ctx context.Context, userA, userB string, excludeID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("status = ?", enums.InvitationStatusPending).
		Where("id <> ?", excludeID).
		Where(
			"(requester_id = ? AND target_id = ?) OR (requester_id = ? AND target_id = ?)",
			userA, userB, userB, userA,
		).
		Updates(map[string]any{"status": enums.InvitationStatusCancelled, "updated_at": now})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeletePending removes the invitation outright, but only while it is still
// pending. Zero rows means it was missing or already resolved.
func (r *repositoryImpl) DeletePending(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		Delete(&models.Invitation{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
