package models

import (
	"time"

	"github.com/google/uuid"
)

// Space is the exclusive two-member pairing unit. The feeding/streak columns
// hold the day-bucketed cooperative counter state; day keys are UTC
// YYYY-MM-DD strings.
type Space struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"type:text;not null"`
	StreakDays     int       `gorm:"column:streak_days;not null;default:0"`
	LastStreakDate string    `gorm:"column:last_streak_date;type:text;not null;default:''"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`

	Members []SpaceMember `gorm:"foreignKey:SpaceID;constraint:OnDelete:CASCADE"`
}

// SpaceMember is one of the two members of a space. The unique index on
// user_id enforces the system-wide invariant that a user belongs to at most
// one space; concurrent pairings racing on the same user lose at insert time.
type SpaceMember struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	SpaceID     uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID      string    `gorm:"type:text;not null;uniqueIndex:idx_space_members_user_id"`
	DisplayName string    `gorm:"type:text;not null"`

	Latitude          *float64   `gorm:"column:latitude"`
	Longitude         *float64   `gorm:"column:longitude"`
	City              *string    `gorm:"column:city"`
	Country           *string    `gorm:"column:country"`
	District          *string    `gorm:"column:district"`
	LocationUpdatedAt *time.Time `gorm:"column:location_updated_at"`

	// LastFedDate carries the UTC day key of this member's most recent
	// cooperative action; the member counts toward today's acted-set only
	// when it equals today's key.
	LastFedDate string `gorm:"column:last_fed_date;type:text;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
