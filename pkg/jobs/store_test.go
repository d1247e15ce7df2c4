package jobs

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := NewJobStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func newJob(company, scope string) *RepairJob {
	return &RepairJob{
		ID:          uuid.NewString(),
		Company:     company,
		Scope:       scope,
		RequestedBy: "tester",
		RequestedAt: time.Now(),
	}
}

func TestEnqueueDefaultsCompany(t *testing.T) {
	store := newTestStore(t)
	job := newJob("", "entregas")
	got, err := store.Enqueue(job)
	require.NoError(t, err)
	assert.Equal(t, "default", got.Company)
	assert.Equal(t, JobStateQueued, got.State)
}

func TestEnqueueIdempotencyReturnsPendingJob(t *testing.T) {
	store := newTestStore(t)

	first := newJob("acme", "entregas")
	first.IdempotencyKey = "acme/entregas"
	got, err := store.Enqueue(first)
	require.NoError(t, err)

	second := newJob("acme", "entregas")
	second.IdempotencyKey = "acme/entregas"
	dup, err := store.Enqueue(second)
	require.NoError(t, err)
	assert.Equal(t, got.ID, dup.ID, "a pending job with the same key is reused")

	// Once the first job is terminal, the key can be reused for a new job.
	require.NoError(t, store.Complete(got.ID, 0, 1))
	third := newJob("acme", "entregas")
	third.IdempotencyKey = "acme/entregas"
	fresh, err := store.Enqueue(third)
	require.NoError(t, err)
	assert.NotEqual(t, got.ID, fresh.ID)
}

func TestClaimTransitionsToRunning(t *testing.T) {
	store := newTestStore(t)
	job := newJob("acme", "entregas")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, JobStateRunning, claimed.State)
	assert.Equal(t, 1, claimed.AttemptCount)
	require.NotNil(t, claimed.StartedAt)

	// Nothing left to claim.
	none, err := store.Claim(3)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClaimOrdersByRequestTime(t *testing.T) {
	store := newTestStore(t)
	older := newJob("acme", "entregas")
	older.RequestedAt = time.Now().Add(-time.Hour)
	newer := newJob("acme", "entregas")

	_, err := store.Enqueue(newer)
	require.NoError(t, err)
	_, err = store.Enqueue(older)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, older.ID, claimed.ID)
}

func TestFailRequeuesWithinRetryBudget(t *testing.T) {
	store := newTestStore(t)
	job := newJob("acme", "entregas")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, store.Fail(claimed.ID, "resolver unavailable", 3))
	got, err := store.Get(claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, got.State)
	assert.Equal(t, "resolver unavailable", got.LastError)
}

func TestFailMarksFailedPastRetryBudget(t *testing.T) {
	store := newTestStore(t)
	job := newJob("acme", "entregas")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	claimed, err := store.Claim(3)
	require.NoError(t, err)

	require.NoError(t, store.Fail(claimed.ID, "broken", 1))
	got, err := store.Get(claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, got.State)
	assert.Contains(t, got.Message, "Max retries exceeded")
}

func TestCancelOnlyQueuedJobs(t *testing.T) {
	store := newTestStore(t)
	job := newJob("acme", "entregas")
	_, err := store.Enqueue(job)
	require.NoError(t, err)

	require.NoError(t, store.Cancel(job.ID))
	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateCanceled, got.State)

	// Terminal jobs cannot be canceled again.
	err = store.Cancel(job.ID)
	require.Error(t, err)

	err = store.Cancel("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListFiltersByScopeAndState(t *testing.T) {
	store := newTestStore(t)
	a := newJob("acme", "entregas")
	b := newJob("acme", "ats")
	_, err := store.Enqueue(a)
	require.NoError(t, err)
	_, err = store.Enqueue(b)
	require.NoError(t, err)

	records, _, total, err := store.List(JobListFilter{Company: "acme", Scope: "entregas"}, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, a.ID, records[0].ID)

	records, _, _, err = store.List(JobListFilter{Company: "acme", State: string(JobStateQueued)}, 10, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCleanupStuckJobsRequeues(t *testing.T) {
	store := newTestStore(t)
	job := newJob("acme", "entregas")
	_, err := store.Enqueue(job)
	require.NoError(t, err)
	_, err = store.Claim(3)
	require.NoError(t, err)

	// Backdate started_at past the claim timeout.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.db.Model(&RepairJob{}).Where("id = ?", job.ID).
		Update("started_at", past).Error)

	recovered, err := store.CleanupStuckJobs(10 * time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, recovered)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateQueued, got.State)
}

func TestDeleteOlderThanPrunesTerminalJobs(t *testing.T) {
	store := newTestStore(t)
	job := newJob("acme", "entregas")
	_, err := store.Enqueue(job)
	require.NoError(t, err)
	_, err = store.Claim(3)
	require.NoError(t, err)
	require.NoError(t, store.Complete(job.ID, 5, 12))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.db.Model(&RepairJob{}).Where("id = ?", job.ID).
		Update("finished_at", past).Error)

	deleted, err := store.DeleteOlderThan(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
