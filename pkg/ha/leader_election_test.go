package ha

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *HAConfig {
	cfg := DefaultHAConfig()
	cfg.LeaseName = "test-leader"
	cfg.LeaseDuration = 100 * time.Millisecond
	cfg.RenewDeadline = 50 * time.Millisecond
	cfg.RetryPeriod = 10 * time.Millisecond
	return cfg
}

func TestTryAcquireFirstCandidateWins(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()

	a := NewLeaderElector(cfg, db, "replica-a", slog.Default())
	require.NoError(t, a.AutoMigrate())
	b := NewLeaderElector(cfg, db, "replica-b", slog.Default())

	held, err := a.tryAcquire()
	require.NoError(t, err)
	assert.True(t, held)

	held, err = b.tryAcquire()
	require.NoError(t, err)
	assert.False(t, held, "the lease is held by replica-a")

	// The holder renews its own lease.
	held, err = a.tryAcquire()
	require.NoError(t, err)
	assert.True(t, held)
}

func TestTryAcquireTakesOverStaleLease(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()

	a := NewLeaderElector(cfg, db, "replica-a", slog.Default())
	require.NoError(t, a.AutoMigrate())
	b := NewLeaderElector(cfg, db, "replica-b", slog.Default())

	now := time.Now()
	a.clock = func() time.Time { return now }
	held, err := a.tryAcquire()
	require.NoError(t, err)
	require.True(t, held)

	// replica-a stops renewing; once the lease goes stale replica-b takes it.
	b.clock = func() time.Time { return now.Add(cfg.LeaseDuration + time.Second) }
	held, err = b.tryAcquire()
	require.NoError(t, err)
	assert.True(t, held)

	var lease leaseRecord
	require.NoError(t, db.Where("name = ?", cfg.LeaseName).First(&lease).Error)
	assert.Equal(t, "replica-b", lease.Holder)
}

func TestReleaseOnlyRemovesOwnLease(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()

	a := NewLeaderElector(cfg, db, "replica-a", slog.Default())
	require.NoError(t, a.AutoMigrate())
	b := NewLeaderElector(cfg, db, "replica-b", slog.Default())

	held, err := a.tryAcquire()
	require.NoError(t, err)
	require.True(t, held)

	// A stale replica releasing must not evict the current holder.
	b.release()
	var count int64
	require.NoError(t, db.Model(&leaseRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	a.release()
	require.NoError(t, db.Model(&leaseRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}
