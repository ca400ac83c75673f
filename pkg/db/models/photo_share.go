package models

import (
	"time"

	"github.com/google/uuid"
)

// PhotoShare is a photo posted into a space's shared feed. Rows are deleted
// together with their space on dissolution.
type PhotoShare struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	SpaceID uuid.UUID `gorm:"type:uuid;not null;index"`

	UserID   string `gorm:"column:user_id;type:text;not null"`
	UserName string `gorm:"column:user_name;type:text;not null;default:''"`
	Avatar   string `gorm:"type:text;not null;default:''"`

	ImageURL    string `gorm:"column:image_url;type:text;not null"`
	Caption     string `gorm:"type:text;not null;default:''"`
	ExifTime    string `gorm:"column:exif_time;type:text;not null;default:''"`
	Location    string `gorm:"type:text;not null;default:''"`
	DeviceModel string `gorm:"column:device_model;type:text;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
