package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, model := range []interface{}{
		&models.User{},
		&models.DeviceToken{},
		&models.Task{},
		&models.TaskAssignee{},
		&models.TaskSubmission{},
		&models.Notification{},
	} {
		require.True(t, migrator.HasTable(model), "expected table for %T", model)
	}
	require.True(t, migrator.HasColumn(&models.Notification{}, "related_exists"))
	require.True(t, migrator.HasColumn(&models.TaskAssignee{}, "completed_at"))
}

func TestAutoMigrateRejectsNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}

func TestAssigneePrimaryKeyIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	task := models.Task{Title: "Write report"}
	require.NoError(t, db.Create(&task).Error)

	require.NoError(t, db.Create(&models.TaskAssignee{TaskID: task.ID, UserID: "u1"}).Error)
	require.Error(t, db.Create(&models.TaskAssignee{TaskID: task.ID, UserID: "u1", Position: 1}).Error)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: MemoryDSN(uuid.NewString()), MaxOpenConns: 1})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = Close(db)
	})
	return db
}
