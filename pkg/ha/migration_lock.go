package ha

import (
	"context"
	"fmt"
	"hash/crc32"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker serializes schema migrations across replicas. WithLock
// blocks until the lock is held, runs fn, then releases.
type MigrationLocker interface {
	WithLock(ctx context.Context, fn func() error) error
}

const migrationLockName = "sst-registry-migration"

const (
	lockMaxRetries    = 30
	lockRetryInterval = time.Second
	lockStaleAge      = 5 * time.Minute
)

// NewMigrationLocker picks the lock strategy for the dialect: a session
// advisory lock on PostgreSQL, a lock table everywhere else. The lock table
// is migrated eagerly so the first WithLock never races its own schema.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	if db == nil {
		return &noopMigrationLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &pgAdvisoryLock{
			db:     db,
			lockID: int64(crc32.ChecksumIEEE([]byte(migrationLockName))),
		}
	}
	_ = db.AutoMigrate(&migrationLockRecord{})
	return &tableMigrationLock{db: db, holder: defaultIdentity()}
}

// noopMigrationLock runs fn unguarded when no database is configured.
type noopMigrationLock struct{}

func (noopMigrationLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

type pgAdvisoryLock struct {
	db     *gorm.DB
	lockID int64
}

func (l *pgAdvisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.lockID).Error; err != nil {
		return fmt.Errorf("acquiring migration advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", l.lockID).Error
	}()
	return fn()
}

type migrationLockRecord struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (migrationLockRecord) TableName() string { return "migration_lock" }

// tableMigrationLock is the SQLite/MySQL strategy: insert-or-fail on a
// single lock row. Rows older than lockStaleAge are treated as leftovers of
// a crashed holder and reclaimed.
type tableMigrationLock struct {
	db     *gorm.DB
	holder string
}

func (l *tableMigrationLock) acquire(ctx context.Context) error {
	var lastErr error
	for i := 0; i < lockMaxRetries; i++ {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", "migration", time.Now().Add(-lockStaleAge)).
			Delete(&migrationLockRecord{})

		row := migrationLockRecord{ID: "migration", LockedAt: time.Now(), LockedBy: l.holder}
		if lastErr = l.db.WithContext(ctx).Create(&row).Error; lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
	return fmt.Errorf("acquiring migration lock after %d attempts: %w", lockMaxRetries, lastErr)
}

func (l *tableMigrationLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer func() {
		l.db.Where("id = ?", "migration").Delete(&migrationLockRecord{})
	}()
	return fn()
}
