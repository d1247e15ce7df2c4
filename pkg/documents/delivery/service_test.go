package delivery

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sigeso/sst-registry/pkg/blob"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/masterdata"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
	"github.com/sigeso/sst-registry/pkg/snapshot"
)

type testEnv struct {
	svc    *Service
	db     *gorm.DB
	master *masterdata.Store
	blobs  *blob.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	seq := sequence.New(db)
	require.NoError(t, seq.AutoMigrate())

	master := masterdata.NewStore(db)
	require.NoError(t, master.AutoMigrate())
	require.NoError(t, master.SaveWorker(&masterdata.WorkerRecord{
		ID: "w1", Company: "acme", FullName: "Ana Ruiz", DocumentNumber: "44556677", JobTitle: "Operadora", Active: true,
	}))
	require.NoError(t, master.SavePPEItem(&masterdata.PPEItemRecord{
		ID: "e1", Company: "acme", Name: "Casco dielectrico", Category: "cabeza", ValidityDays: 365,
	}))

	resolver := snapshot.NewStoreResolver(master, time.Minute)
	blobs := blob.NewMemoryStore()
	svc := NewService(db, seq, resolver, blobs)
	require.NoError(t, svc.Store().AutoMigrate())
	return &testEnv{svc: svc, db: db, master: master, blobs: blobs}
}

func createDelivery(t *testing.T, env *testEnv) *Document {
	t.Helper()
	doc, err := env.svc.Create(context.Background(), "acme", "almacen", CreateInput{
		WorkerID: "w1",
		Lines:    []LineInput{{PPEItemID: "e1", Cantidad: 2}},
	})
	require.NoError(t, err)
	return doc
}

func finalizeDelivery(t *testing.T, env *testEnv, doc *Document, in ConfirmInput) *Document {
	t.Helper()
	ctx := context.Background()
	_, err := env.svc.Deliver(ctx, "acme", doc.ID, "almacen")
	require.NoError(t, err)
	if !in.Exempt && in.Signature == "" {
		in.Signature = base64.StdEncoding.EncodeToString([]byte("firma"))
	}
	out, err := env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", in)
	require.NoError(t, err)
	return out
}

func TestCreateUsesCertificateCodes(t *testing.T) {
	env := newTestEnv(t)
	doc := createDelivery(t, env)

	assert.Equal(t, sequence.Format("CERT", doc.CreatedAt.Year(), 1), doc.Code)
	assert.Equal(t, lifecycle.StateBorrador, doc.State)
	assert.Equal(t, "Ana Ruiz", doc.WorkerName)
	assert.Equal(t, "44556677", doc.WorkerDocument)
	assert.Equal(t, "Operadora", doc.WorkerJobTitle)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "Casco dielectrico", doc.Lines[0].Name)
	assert.Equal(t, 365, doc.Lines[0].ValidityDays)
	assert.Equal(t, 2, doc.Lines[0].Cantidad)
}

func TestCreateRequiresItems(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Create(context.Background(), "acme", "almacen", CreateInput{WorkerID: "w1"})
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DELIVERY_NO_ITEMS", re.Code)
}

func TestConfirmUploadsSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)

	doc, err := env.svc.Deliver(ctx, "acme", doc.ID, "almacen")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateCompletado, doc.State)

	sig := base64.StdEncoding.EncodeToString([]byte("png-firma"))
	doc, err = env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", ConfirmInput{Signature: sig})
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StateFinalizado, doc.State)
	require.NotNil(t, doc.ConfirmedAt)
	require.NotEmpty(t, doc.SignatureURL)

	stored, err := env.blobs.Get(doc.SignatureURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-firma"), stored)
}

func TestDuplicateConfirmationIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)

	_, err := env.svc.Deliver(ctx, "acme", doc.ID, "almacen")
	require.NoError(t, err)
	sig := base64.StdEncoding.EncodeToString([]byte("firma"))
	_, err = env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", ConfirmInput{Signature: sig})
	require.NoError(t, err)

	_, err = env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", ConfirmInput{Signature: sig})
	require.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestConfirmRequiresSignatureUnlessExempt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)
	_, err := env.svc.Deliver(ctx, "acme", doc.ID, "almacen")
	require.NoError(t, err)

	_, err = env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", ConfirmInput{})
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DELIVERY_SIGNATURE_REQUIRED", re.Code)

	_, err = env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", ConfirmInput{Exempt: true})
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DELIVERY_EXEMPT_REASON_REQUIRED", re.Code)

	got, err := env.svc.Confirm(ctx, "acme", doc.ID, "aruiz", ConfirmInput{
		Exempt: true, ExemptReason: "trabajador sin firma registrada",
	})
	require.NoError(t, err)
	assert.True(t, got.Exempt)
	assert.Empty(t, got.SignatureURL)
	assert.Equal(t, 0, env.blobs.Len())
}

func TestConfirmRequiresDeliveredState(t *testing.T) {
	env := newTestEnv(t)
	doc := createDelivery(t, env)

	sig := base64.StdEncoding.EncodeToString([]byte("firma"))
	_, err := env.svc.Confirm(context.Background(), "acme", doc.ID, "aruiz", ConfirmInput{Signature: sig})
	var te *lifecycle.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "LIFECYCLE_INVALID_TRANSITION", te.Code)
}

func TestSnapshotSurvivesMasterDataEdit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)

	require.NoError(t, env.master.SaveWorker(&masterdata.WorkerRecord{
		ID: "w1", Company: "acme", FullName: "Ana Soto", DocumentNumber: "44556677", JobTitle: "Supervisora", Active: true,
	}))

	got, err := env.svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", got.WorkerName)
	assert.Equal(t, "Operadora", got.WorkerJobTitle)
}

func TestRepairSnapshotsBackfillsOnlyEmptyFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)
	finalizeDelivery(t, env, doc, ConfirmInput{})

	// Simulate a legacy row persisted before snapshots existed.
	require.NoError(t, env.db.Model(&Record{}).Where("id = ?", doc.ID).
		Updates(map[string]any{"worker_name": "", "worker_job_title": ""}).Error)

	repaired, err := env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	got, err := env.svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", got.WorkerName)
	assert.Equal(t, "Operadora", got.WorkerJobTitle)
	// The field that was already frozen is untouched.
	assert.Equal(t, "44556677", got.WorkerDocument)
	last := got.History[len(got.History)-1]
	assert.Equal(t, "reparar_snapshot", last.Action)

	// A second pass finds nothing to do.
	repaired, err = env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}

func TestRepairSkipsUnknownWorkers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)
	finalizeDelivery(t, env, doc, ConfirmInput{})

	require.NoError(t, env.db.Model(&Record{}).Where("id = ?", doc.ID).
		Updates(map[string]any{"worker_id": "ghost", "worker_name": ""}).Error)

	repaired, err := env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)

	got, err := env.svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.WorkerName)
}

func TestRepairSkipsDrafts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)

	require.NoError(t, env.db.Model(&Record{}).Where("id = ?", doc.ID).
		Updates(map[string]any{"worker_name": "", "worker_job_title": ""}).Error)

	repaired, err := env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)

	got, err := env.svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.WorkerName)
	assert.Empty(t, got.WorkerJobTitle)
}

func TestRepairSkipsExemptDeliveries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)
	finalizeDelivery(t, env, doc, ConfirmInput{Exempt: true, ExemptReason: "trabajador accidentado"})

	require.NoError(t, env.db.Model(&Record{}).Where("id = ?", doc.ID).
		Updates(map[string]any{"worker_name": "", "worker_job_title": ""}).Error)

	repaired, err := env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)

	got, err := env.svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.WorkerName)
	assert.Empty(t, got.WorkerJobTitle)
}

func TestRepairBackfillsLineSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := createDelivery(t, env)
	finalizeDelivery(t, env, doc, ConfirmInput{})

	// Worker fields intact; only the line snapshot is missing.
	require.NoError(t, env.db.Model(&Line{}).Where("document_id = ?", doc.ID).
		Updates(map[string]any{"name": "", "category": "", "validity_days": 0}).Error)

	repaired, err := env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	got, err := env.svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Casco dielectrico", got.Lines[0].Name)
	assert.Equal(t, "cabeza", got.Lines[0].Category)
	assert.Equal(t, 365, got.Lines[0].ValidityDays)
	last := got.History[len(got.History)-1]
	assert.Equal(t, "reparar_snapshot", last.Action)

	repaired, err = env.svc.RepairSnapshots(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)
}
