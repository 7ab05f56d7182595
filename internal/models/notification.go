package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types emitted by task lifecycle operations.
const (
	NotificationTaskCreated    = "TASK_CREATED"
	NotificationTaskAssigned   = "TASK_ASSIGNED"
	NotificationTaskDeleted    = "TASK_DELETED"
	NotificationTaskSubmission = "TASK_SUBMISSION"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string `gorm:"type:varchar(64);not null;index:idx_notifications_recipient" json:"recipient_id"`
	Type        string `gorm:"type:varchar(64);not null" json:"type"`
	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Message     string `gorm:"type:text" json:"message"`

	RelatedEntityID  *string        `gorm:"type:varchar(64);index" json:"related_entity_id,omitempty"`
	Data             datatypes.JSON `json:"data,omitempty"`
	RelatedExists    bool           `gorm:"not null;default:true" json:"related_exists"`
	RelatedDeletedAt *time.Time     `json:"related_deleted_at,omitempty"`

	IsRead    bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index:idx_notifications_recipient" json:"created_at"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = NewID()
	}
	return nil
}
