package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/taskhub/internal/models"
	"github.com/charlesng35/taskhub/pkg/logger"
)

const (
	defaultReadNotificationRetention = 90 * 24 * time.Hour
	defaultStaleDeviceRetention      = 180 * 24 * time.Hour
)

// Cleaner prunes retained data that no task operation removes on its own:
// read notifications past their retention and device tokens not seen for a long time.
// It runs on demand; nothing is scheduled.
type Cleaner struct {
	db              *gorm.DB
	now             func() time.Time
	log             *zap.Logger
	readRetention   time.Duration
	deviceRetention time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithReadNotificationRetention adjusts how long read notifications are kept.
func WithReadNotificationRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.readRetention = d
		}
	}
}

// WithStaleDeviceRetention adjusts how long an unseen device token is kept.
func WithStaleDeviceRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.deviceRetention = d
		}
	}
}

// WithLogger overrides the cleaner logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner with default retention windows.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}

	cleaner := &Cleaner{
		db:              db,
		now:             time.Now,
		readRetention:   defaultReadNotificationRetention,
		deviceRetention: defaultStaleDeviceRetention,
		log:             logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	return cleaner, nil
}

// Stats captures the number of records removed by one run.
type Stats struct {
	ReadNotifications int64 `json:"read_notifications"`
	StaleDevices      int64 `json:"stale_devices"`
}

// RunOnce executes every cleanup routine. A failing routine does not stop the others.
func (c *Cleaner) RunOnce(ctx context.Context) (Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		stats Stats
		errs  error
		err   error
	)
	now := c.now().UTC()

	if stats.ReadNotifications, err = PurgeReadNotifications(ctx, c.db, now.Add(-c.readRetention)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if stats.StaleDevices, err = PruneStaleDevices(ctx, c.db, now.Add(-c.deviceRetention)); err != nil {
		errs = multierr.Append(errs, err)
	}

	if errs != nil {
		c.log.Warn("maintenance run incomplete", zap.Error(errs))
	} else {
		c.log.Info("maintenance run complete",
			zap.Int64("read_notifications", stats.ReadNotifications),
			zap.Int64("stale_devices", stats.StaleDevices))
	}
	return stats, errs
}

// PurgeReadNotifications deletes read notifications created before cutoff.
func PurgeReadNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("purge notifications: db is required")
	}
	result := db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PruneStaleDevices deletes device tokens last seen before cutoff.
func PruneStaleDevices(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("prune devices: db is required")
	}
	result := db.WithContext(ctx).
		Where("last_seen_at < ?", cutoff).
		Delete(&models.DeviceToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune devices: %w", result.Error)
	}
	return result.RowsAffected, nil
}
