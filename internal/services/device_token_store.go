package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/taskhub/internal/models"
	apperrors "github.com/charlesng35/taskhub/pkg/errors"
)

// DeviceTokenStore manages push registrations.
type DeviceTokenStore struct {
	db      *gorm.DB
	timeNow func() time.Time
}

// NewDeviceTokenStore constructs a DeviceTokenStore.
func NewDeviceTokenStore(db *gorm.DB) (*DeviceTokenStore, error) {
	if db == nil {
		return nil, errors.New("device token store: db is required")
	}
	return &DeviceTokenStore{db: db, timeNow: time.Now}, nil
}

// Register binds token to userID. Re-registering a token moves it to the caller.
func (s *DeviceTokenStore) Register(ctx context.Context, userID, token, platform string) (*models.DeviceToken, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return nil, apperrors.NewBadRequest("user id and token are required")
	}

	record := models.DeviceToken{
		UserID:     userID,
		Token:      token,
		Platform:   strings.ToLower(strings.TrimSpace(platform)),
		LastSeenAt: s.timeNow().UTC(),
	}

	err := s.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return &record, nil
	}
	if !isUniqueConstraintError(err) {
		return nil, fmt.Errorf("device token store: register: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("token = ?", token).
		Updates(map[string]any{
			"user_id":      userID,
			"platform":     record.Platform,
			"last_seen_at": record.LastSeenAt,
		}).Error; err != nil {
		return nil, fmt.Errorf("device token store: refresh: %w", err)
	}

	var existing models.DeviceToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("device token store: reload: %w", err)
	}
	return &existing, nil
}

// Remove deletes a token belonging to userID. Missing tokens are not an error.
func (s *DeviceTokenStore) Remove(ctx context.Context, userID, token string) error {
	ctx = ensureContext(ctx)
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", strings.TrimSpace(userID), strings.TrimSpace(token)).
		Delete(&models.DeviceToken{}).Error; err != nil {
		return fmt.Errorf("device token store: remove: %w", err)
	}
	return nil
}

// TokensForUsers returns the distinct tokens registered to any of userIDs.
func (s *DeviceTokenStore) TokensForUsers(ctx context.Context, userIDs []string) ([]string, error) {
	ctx = ensureContext(ctx)
	userIDs = normaliseIDs(userIDs)
	if len(userIDs) == 0 {
		return nil, nil
	}

	var tokens []string
	if err := s.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("user_id IN ?", userIDs).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}}).
		Pluck("token", &tokens).Error; err != nil {
		return nil, fmt.Errorf("device token store: resolve tokens: %w", err)
	}
	return normaliseIDs(tokens), nil
}

// RemoveTokens prunes tokens regardless of owner and returns how many were removed.
func (s *DeviceTokenStore) RemoveTokens(ctx context.Context, tokens []string) (int64, error) {
	ctx = ensureContext(ctx)
	tokens = normaliseIDs(tokens)
	if len(tokens) == 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&models.DeviceToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("device token store: prune: %w", result.Error)
	}
	return result.RowsAffected, nil
}
