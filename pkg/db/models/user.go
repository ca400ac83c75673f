package models

import "time"

// User represents a registered identity. The identifier is the opaque string
// supplied by the identity provider on first authentication; the invite code
// is generated once and never changes.
type User struct {
	ID         string    `gorm:"type:text;primaryKey"`
	InviteCode string    `gorm:"type:text;not null;uniqueIndex:idx_users_invite_code"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
