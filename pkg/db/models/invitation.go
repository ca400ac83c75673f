package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pairspace/pairspace-backend/pkg/enums"
)

// Invitation is a proposal from one user to another to form a space.
// Status starts pending and transitions exactly once; a partial unique index
// on {requester_id, status='pending'} backs the one-outstanding-invitation
// rule at the storage layer.
type Invitation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	RequesterID   string `gorm:"column:requester_id;type:text;not null;index"`
	RequesterCode string `gorm:"column:requester_code;type:text;not null"`
	RequesterName string `gorm:"column:requester_name;type:text;not null"`

	TargetID   string `gorm:"column:target_id;type:text;not null;index"`
	TargetCode string `gorm:"column:target_code;type:text;not null"`

	Message   string `gorm:"type:text;not null;default:''"`
	SpaceName string `gorm:"column:space_name;type:text;not null"`

	Status enums.InvitationStatus `gorm:"type:text;not null;default:'pending'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
