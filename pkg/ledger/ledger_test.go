package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sigeso/sst-registry/pkg/lifecycle"
)

func newTestAuditStore(t *testing.T) *AuditStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store := NewAuditStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestHistory_AppendOrdinals(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	var h History
	h = h.Append("jperez", "completar", lifecycle.StateBorrador, lifecycle.StateCompletado, now)
	h = h.Append("mlopez", "aprobar", lifecycle.StateCompletado, lifecycle.StateAprobado, now.Add(time.Hour))
	h = h.Append("jperez", "iniciar", lifecycle.StateAprobado, lifecycle.StateEnEjecucion, now.Add(2*time.Hour))

	require.Len(t, h, 3)
	for i, e := range h {
		assert.Equal(t, i+1, e.VersionOrdinal, "ordinal is the 1-based position")
	}
	assert.Equal(t, "mlopez", h[1].Actor)
	assert.Equal(t, lifecycle.StateCompletado, h[1].StateBefore)
	assert.Equal(t, lifecycle.StateAprobado, h[1].StateAfter)
}

func TestHistory_AppendDoesNotMutateReceiver(t *testing.T) {
	now := time.Now().UTC()
	h := History{}.Append("a", "x", lifecycle.StateBorrador, lifecycle.StateCompletado, now)

	grown := h.Append("b", "y", lifecycle.StateCompletado, lifecycle.StateAprobado, now)
	require.Len(t, h, 1)
	require.Len(t, grown, 2)
	assert.Equal(t, "a", h[0].Actor, "prior entries never change value")
}

func TestHistory_JSONRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	h := History{}.
		Append("jperez", "completar", lifecycle.StateBorrador, lifecycle.StateCompletado, now).
		Append("mlopez", "aprobar", lifecycle.StateCompletado, lifecycle.StateAprobado, now)

	val, err := h.Value()
	require.NoError(t, err)

	var back History
	require.NoError(t, back.Scan(val))
	assert.Equal(t, h, back)

	// Field names match the persisted blob contract.
	raw, _ := json.Marshal(h[0])
	for _, key := range []string{"version", "fecha", "usuario", "accion", "estado_anterior", "estado_nuevo"} {
		assert.Contains(t, string(raw), key)
	}
}

func TestHistory_ScanNil(t *testing.T) {
	var h History
	require.NoError(t, h.Scan(nil))
	assert.Nil(t, h)

	val, err := h.Value()
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestAuditStore_AppendAndListByDocument(t *testing.T) {
	store := newTestAuditStore(t)

	docID := uuid.New().String()
	for i, action := range []string{"crear", "completar", "aprobar"} {
		err := store.Append(&AuditEventRecord{
			ID:           uuid.New().String(),
			EventType:    "document.transition",
			Actor:        "jperez",
			DocumentType: "ATS",
			DocumentID:   docID,
			DocumentCode: "ATS-2025-001",
			Action:       action,
			Outcome:      "success",
			CreatedAt:    time.Now().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	// Unrelated document.
	require.NoError(t, store.Append(&AuditEventRecord{
		ID:           uuid.New().String(),
		EventType:    "document.transition",
		Actor:        "otro",
		DocumentType: "PETAR",
		DocumentID:   uuid.New().String(),
		Outcome:      "success",
	}))

	records, next, total, err := store.ListByDocument("ATS", docID, 10, "")
	require.NoError(t, err)
	assert.Empty(t, next)
	assert.Equal(t, 3, total)
	require.Len(t, records, 3)
	assert.Equal(t, "aprobar", records[0].Action, "newest first")
	assert.Equal(t, "default", records[0].Company)
}

func TestAuditStore_ListAllFiltersByEventType(t *testing.T) {
	store := newTestAuditStore(t)

	require.NoError(t, store.Append(&AuditEventRecord{
		ID: uuid.New().String(), EventType: "document.transition", Actor: "a", Outcome: "success",
	}))
	require.NoError(t, store.Append(&AuditEventRecord{
		ID: uuid.New().String(), EventType: "http.request", Actor: "a", Outcome: "success",
	}))

	records, _, total, err := store.ListAll(10, "", "http.request")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, "http.request", records[0].EventType)
}

func TestAuditStore_DeleteOlderThan(t *testing.T) {
	store := newTestAuditStore(t)

	old := time.Now().AddDate(0, 0, -120)
	require.NoError(t, store.Append(&AuditEventRecord{
		ID: uuid.New().String(), EventType: "http.request", Actor: "a", Outcome: "success", CreatedAt: old,
	}))
	require.NoError(t, store.Append(&AuditEventRecord{
		ID: uuid.New().String(), EventType: "http.request", Actor: "a", Outcome: "success", CreatedAt: time.Now(),
	}))

	deleted, err := store.DeleteOlderThan(time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, _, total, err := store.ListAll(10, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
