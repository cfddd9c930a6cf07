package store

import (
	"time"

	"gorm.io/datatypes"
)

// BugModel is the GORM persistence shape for bugs. The unique index on
// discord_message_id is what makes pipeline creates idempotent across
// concurrent sync runs.
type BugModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Type        string `gorm:"not null;index"`
	Status      string `gorm:"not null;index"`
	Priority    string `gorm:"not null"`

	AssignedToID *string `gorm:"index"`

	DiscordMessageID string  `gorm:"uniqueIndex;not null"`
	DiscordChannelID string  `gorm:"index"`
	DiscordThreadID  *string

	SteamID *string `gorm:"index"`

	Level          *string
	PlayerPosition *string
	CameraPosition *string
	CameraRotation *string
	FPS            *float64
	GPU            *string
	CPU            *string
	OS             *string
	RAMTotal       *string
	CurrentRAM     *string
	VRAM           *string
	CurrentVRAM    *string
	CustomData     datatypes.JSON `gorm:"type:jsonb"`

	ScreenshotURL       string
	ScreenshotSourceURL string

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName keeps the table name stable regardless of model renames.
func (BugModel) TableName() string {
	return "bugs"
}
