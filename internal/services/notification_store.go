package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/models"
)

// Listing bounds for a user's notification inbox.
const (
	DefaultNotificationLimit = 200
	MaxNotificationLimit     = 200
)

// NotificationStore persists notification records.
type NotificationStore struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// NewNotificationStore constructs a NotificationStore.
func NewNotificationStore(db *gorm.DB) (*NotificationStore, error) {
	if db == nil {
		return nil, errors.New("notification store: db is required")
	}
	return &NotificationStore{db: db, timeNow: time.Now}, nil
}

// WithTx returns a store bound to an open transaction.
func (s *NotificationStore) WithTx(tx *gorm.DB) *NotificationStore {
	cpy := *s
	cpy.db = tx
	return &cpy
}

// InsertMany writes every record in a single batch.
func (s *NotificationStore) InsertMany(ctx context.Context, records []models.Notification) error {
	if len(records) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	for i := range records {
		// RelatedExists carries a column default, so false would be dropped on insert.
		records[i].RelatedExists = true
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("notification store: insert: %w", err)
	}
	return nil
}

// FindForUser returns the user's notifications, newest first.
func (s *NotificationStore) FindForUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 || limit > MaxNotificationLimit {
		limit = DefaultNotificationLimit
	}

	rows := []models.Notification{}
	if err := s.db.WithContext(ctx).
		Where("recipient_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification store: list: %w", err)
	}
	return rows, nil
}

// CountUnread returns the number of unread notifications for the user.
func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", strings.TrimSpace(userID), false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification store: count unread: %w", err)
	}
	return count, nil
}

// MarkRead flags one notification owned by userID as read.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)
	notificationID = strings.TrimSpace(notificationID)
	if !isRecordID(notificationID) {
		return nil, ErrNotificationNotFound
	}

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", notificationID, strings.TrimSpace(userID)).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification store: load: %w", err)
	}

	if notification.IsRead {
		return &notification, nil
	}

	now := s.timeNow().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", notification.ID).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification store: mark read: %w", err)
	}

	notification.IsRead = true
	notification.ReadAt = &now
	return &notification, nil
}

// MarkAllRead flags every unread notification of the user and returns how many changed.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", strings.TrimSpace(userID), false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": s.timeNow().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkRelatedDeleted tombstones notifications that still point at relatedID.
func (s *NotificationStore) MarkRelatedDeleted(ctx context.Context, relatedID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("related_entity_id = ? AND related_exists = ?", strings.TrimSpace(relatedID), true).
		Updates(map[string]any{
			"related_exists":     false,
			"related_deleted_at": s.timeNow().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: mark related deleted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteByRelated removes every notification pointing at relatedID.
func (s *NotificationStore) DeleteByRelated(ctx context.Context, relatedID string) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("related_entity_id = ?", strings.TrimSpace(relatedID)).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: delete related: %w", result.Error)
	}
	return result.RowsAffected, nil
}
