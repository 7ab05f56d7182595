package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/taskhub/internal/models"
	apperrors "github.com/charlesng35/taskhub/pkg/errors"
)

// UserDirectory resolves role-based recipient sets.
type UserDirectory struct {
	db *gorm.DB
}

// NewUserDirectory constructs a UserDirectory.
func NewUserDirectory(db *gorm.DB) (*UserDirectory, error) {
	if db == nil {
		return nil, errors.New("user directory: db is required")
	}
	return &UserDirectory{db: db}, nil
}

// AdminIDs returns every user holding the admin role.
func (d *UserDirectory) AdminIDs(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	var ids []string
	if err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("user directory: list admins: %w", err)
	}
	return ids, nil
}

// Upsert creates or refreshes a directory entry.
func (d *UserDirectory) Upsert(ctx context.Context, user models.User) (*models.User, error) {
	ctx = ensureContext(ctx)
	user.ID = strings.TrimSpace(user.ID)
	if user.ID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	user.Role = strings.ToLower(defaultIfEmpty(user.Role, models.RoleUser))
	if user.Role != models.RoleAdmin && user.Role != models.RoleUser {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown role %q", user.Role))
	}

	if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "role"}),
	}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("user directory: upsert: %w", err)
	}
	return &user, nil
}

// List returns every directory entry ordered by id.
func (d *UserDirectory) List(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)
	var users []models.User
	if err := d.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user directory: list: %w", err)
	}
	return users, nil
}

// DisplayName returns the user's display name, falling back to the id.
func (d *UserDirectory) DisplayName(ctx context.Context, userID string) string {
	ctx = ensureContext(ctx)
	var user models.User
	if err := d.db.WithContext(ctx).Select("id", "display_name").First(&user, "id = ?", userID).Error; err != nil {
		return userID
	}
	return defaultIfEmpty(user.DisplayName, userID)
}
