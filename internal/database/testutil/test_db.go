package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/database"
	"github.com/charlesng35/taskhub/internal/models"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
	users       []models.User
}

// WithAutoMigrate enables automatic schema migration after opening the test database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// WithUsers migrates the schema and inserts the supplied directory entries.
func WithUsers(users ...models.User) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
		cfg.users = append(cfg.users, users...)
	}
}

// MustOpenTestDB opens a private in-memory SQLite database for tests. A single
// pooled connection serialises writers the way a row lock would on a server database.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		DSN:          database.MemoryDSN(uuid.NewString()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}
	for _, user := range cfg.users {
		user := user
		require.NoError(t, db.Create(&user).Error)
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})

	return db
}
