package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/taskhub/pkg/errors"
)

var (
	// ErrInvalidTaskSpec rejects malformed task input.
	ErrInvalidTaskSpec = apperrors.New("TASK_INVALID", "Invalid task specification", http.StatusBadRequest)
	// ErrTaskNotFound is returned when the task does not exist.
	ErrTaskNotFound = apperrors.New("TASK_NOT_FOUND", "Task not found", http.StatusNotFound)
	// ErrNotAssigned is returned when a user acts on a task they are not assigned to.
	ErrNotAssigned = apperrors.New("TASK_NOT_ASSIGNED", "You are not assigned to this task", http.StatusForbidden)
	// ErrNotificationNotFound is returned when a notification is missing or owned by another user.
	ErrNotificationNotFound = apperrors.New("NOTIFICATION_NOT_FOUND", "Notification not found", http.StatusNotFound)
	// ErrNotificationPersist is returned when notification records could not be written.
	ErrNotificationPersist = apperrors.New("NOTIFICATION_PERSIST_FAILED", "Failed to save notifications", http.StatusInternalServerError)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
