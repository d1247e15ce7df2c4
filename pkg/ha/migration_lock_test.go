package ha

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Shared cache so all goroutines see the same in-memory database.
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestMigrationLockerNilDB(t *testing.T) {
	locker := NewMigrationLocker(nil)
	called := false
	err := locker.WithLock(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestFallbackMigrationLockReleases(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	called := false
	err := locker.WithLock(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	var count int64
	require.NoError(t, db.Model(&migrationLockRecord{}).Count(&count).Error)
	assert.Zero(t, count, "lock row must be deleted after WithLock")
}

func TestFallbackMigrationLockErrorPropagation(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	boom := errors.New("migration failed")
	err := locker.WithLock(context.Background(), func() error { return boom })
	require.ErrorIs(t, err, boom)

	// The lock is released even when the migration fails.
	var count int64
	require.NoError(t, db.Model(&migrationLockRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFallbackMigrationLockSerializes(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	var concurrent atomic.Int32
	var maxConcurrent atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), func() error {
				cur := concurrent.Add(1)
				for {
					prev := maxConcurrent.Load()
					if cur <= prev || maxConcurrent.CompareAndSwap(prev, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				concurrent.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxConcurrent.Load(), int32(1))
}

func TestFallbackMigrationLockContextCancellation(t *testing.T) {
	db := setupTestDB(t)
	locker := NewMigrationLocker(db)

	err := locker.WithLock(context.Background(), func() error {
		// While the lock is held, a second caller with a cancelled context
		// must give up instead of waiting forever.
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := locker.WithLock(ctx, func() error {
			t.Error("should not have acquired the lock")
			return nil
		})
		assert.Error(t, err)
		return nil
	})
	require.NoError(t, err)
}
