package ha

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// leaseRecord is the lease row used for leader election. The holder renews
// renewed_at while alive; a candidate takes over once the row goes stale.
type leaseRecord struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Holder    string    `gorm:"column:holder"`
	RenewedAt time.Time `gorm:"column:renewed_at"`
}

func (leaseRecord) TableName() string { return "leader_leases" }

// LeaderElector manages database lease-based leader election for singleton
// background loops. Only the elected leader replica runs loops such as the
// snapshot-repair workers and audit retention.
type LeaderElector struct {
	config   *HAConfig
	db       *gorm.DB
	identity string
	isLeader bool
	mu       sync.RWMutex
	logger   *slog.Logger
	onStart  func(ctx context.Context)
	onStop   func()
	clock    func() time.Time
}

// NewLeaderElector creates a new LeaderElector. The identity should be unique
// per replica (typically the pod name or hostname).
func NewLeaderElector(cfg *HAConfig, db *gorm.DB, identity string, logger *slog.Logger) *LeaderElector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderElector{
		config:   cfg,
		db:       db,
		identity: identity,
		logger:   logger,
		clock:    time.Now,
	}
}

// OnStartLeading registers a callback invoked when this instance becomes
// leader. The provided context is cancelled when leadership is lost.
func (le *LeaderElector) OnStartLeading(fn func(ctx context.Context)) {
	le.onStart = fn
}

// OnStopLeading registers a callback invoked when this instance loses
// leadership.
func (le *LeaderElector) OnStopLeading(fn func()) {
	le.onStop = fn
}

// IsLeader returns true if this instance is the current leader.
func (le *LeaderElector) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

// AutoMigrate creates the lease table.
func (le *LeaderElector) AutoMigrate() error {
	return le.db.AutoMigrate(&leaseRecord{})
}

// Run starts leader election. It blocks until the context is cancelled.
// When this instance becomes leader, it calls the OnStartLeading callback.
// When leadership is lost, it calls OnStopLeading.
func (le *LeaderElector) Run(ctx context.Context) {
	le.logger.Info("starting leader election",
		"identity", le.identity,
		"lease", le.config.LeaseName,
		"leaseDuration", le.config.LeaseDuration,
		"renewDeadline", le.config.RenewDeadline,
		"retryPeriod", le.config.RetryPeriod,
	)

	var (
		leaderCancel context.CancelFunc
		renewFailAt  time.Time
	)

	stepDown := func() {
		if leaderCancel != nil {
			leaderCancel()
			leaderCancel = nil
		}
		le.mu.Lock()
		wasLeader := le.isLeader
		le.isLeader = false
		le.mu.Unlock()
		if wasLeader {
			le.logger.Info("lost leadership", "identity", le.identity)
			if le.onStop != nil {
				le.onStop()
			}
		}
	}

	ticker := time.NewTicker(le.config.RetryPeriod)
	defer ticker.Stop()

	for {
		acquired, err := le.tryAcquire()
		switch {
		case err != nil && le.IsLeader():
			// A transient database error must not drop leadership right
			// away; step down only after the renew deadline passes.
			if renewFailAt.IsZero() {
				renewFailAt = le.clock()
			}
			if le.clock().Sub(renewFailAt) >= le.config.RenewDeadline {
				le.logger.Error("failed to renew lease past deadline", "error", err)
				stepDown()
				renewFailAt = time.Time{}
			}
		case err != nil:
			le.logger.Error("leader election attempt failed", "error", err)
		case acquired:
			renewFailAt = time.Time{}
			if !le.IsLeader() {
				le.mu.Lock()
				le.isLeader = true
				le.mu.Unlock()
				le.logger.Info("elected as leader", "identity", le.identity)
				var leaderCtx context.Context
				leaderCtx, leaderCancel = context.WithCancel(ctx)
				if le.onStart != nil {
					go le.onStart(leaderCtx)
				}
			}
		default:
			renewFailAt = time.Time{}
			stepDown()
		}

		select {
		case <-ctx.Done():
			if le.IsLeader() {
				le.release()
			}
			stepDown()
			return
		case <-ticker.C:
		}
	}
}

// tryAcquire inserts, renews or takes over the lease row. It reports whether
// this instance holds the lease afterwards.
func (le *LeaderElector) tryAcquire() (bool, error) {
	now := le.clock()
	held := false
	err := le.db.Transaction(func(tx *gorm.DB) error {
		q := tx
		// SQLite serializes writers on its own and rejects FOR UPDATE.
		if name := tx.Dialector.Name(); name == "postgres" || name == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var lease leaseRecord
		err := q.Where("name = ?", le.config.LeaseName).First(&lease).Error
		if err == gorm.ErrRecordNotFound {
			lease = leaseRecord{Name: le.config.LeaseName, Holder: le.identity, RenewedAt: now}
			if err := tx.Create(&lease).Error; err != nil {
				return err
			}
			held = true
			return nil
		}
		if err != nil {
			return err
		}

		stale := now.Sub(lease.RenewedAt) > le.config.LeaseDuration
		if lease.Holder != le.identity && !stale {
			return nil
		}
		if lease.Holder != le.identity {
			le.logger.Info("taking over stale lease",
				"previousHolder", lease.Holder,
				"staleSince", lease.RenewedAt)
		}
		lease.Holder = le.identity
		lease.RenewedAt = now
		if err := tx.Save(&lease).Error; err != nil {
			return err
		}
		held = true
		return nil
	})
	return held, err
}

// release deletes the lease row if this instance still holds it, so another
// replica can take over without waiting out the lease duration.
func (le *LeaderElector) release() {
	err := le.db.Where("name = ? AND holder = ?", le.config.LeaseName, le.identity).
		Delete(&leaseRecord{}).Error
	if err != nil {
		le.logger.Error("failed to release lease", "error", err)
	}
}
