package models

import "time"

// DeviceToken is a push registration for one device of a user.
type DeviceToken struct {
	BaseModel

	UserID     string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Token      string    `gorm:"type:varchar(512);not null;uniqueIndex" json:"token"`
	Platform   string    `gorm:"type:varchar(32)" json:"platform"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
