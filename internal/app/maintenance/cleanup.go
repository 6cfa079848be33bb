package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/nayandeep999/truefeedback/internal/auth"
	"github.com/nayandeep999/truefeedback/internal/models"
	"github.com/nayandeep999/truefeedback/internal/services"
	"github.com/nayandeep999/truefeedback/pkg/logger"
)

const (
	defaultSessionSpec      = "@hourly"
	defaultVerificationSpec = "@daily"
	defaultCacheSpec        = "@daily"
)

// Cleaner coordinates background maintenance tasks such as purging expired
// sessions, removing stale unverified signups, and pruning expired cache rows.
type Cleaner struct {
	db       *gorm.DB
	sessions *iauth.SessionService
	users    *services.UserService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool

	sessionSchedule      string
	verificationSchedule string
	cacheSchedule        string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithVerificationSchedule overrides the cron specification for pruning stale
// unverified signups.
func WithVerificationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.verificationSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache entry cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, sessions *iauth.SessionService, users *services.UserService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                   db,
		sessions:             sessions,
		users:                users,
		now:                  time.Now,
		sessionSchedule:      defaultSessionSpec,
		verificationSchedule: defaultVerificationSpec,
		cacheSchedule:        defaultCacheSpec,
		log:                  logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.users != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			ctx := context.Background()
			if _, err := c.sessions.CleanupExpired(ctx); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.users != nil {
		if _, err := c.cron.AddFunc(c.verificationSchedule, func() {
			ctx := context.Background()
			if _, err := c.users.CleanupExpiredVerifications(ctx); err != nil {
				c.log.Warn("verification cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupCacheEntries(ctx, c.db, c.now()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.users != nil {
		if _, err := c.users.CleanupExpiredVerifications(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.db != nil {
		if _, err := CleanupCacheEntries(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// CleanupCacheEntries removes cache rows whose expiry has passed.
func CleanupCacheEntries(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup cache entries: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup cache entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}
