package pets

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
	"github.com/sigeso/sst-registry/pkg/snapshot"
)

type fakeResolver struct {
	ppe map[string]snapshot.PPESnapshot
}

func (f *fakeResolver) ResolveWorker(_ context.Context, _ string) (snapshot.WorkerSnapshot, error) {
	return snapshot.WorkerSnapshot{}, sentinel.ErrNotFound
}

func (f *fakeResolver) ResolvePPEItem(_ context.Context, id string) (snapshot.PPESnapshot, error) {
	ps, ok := f.ppe[id]
	if !ok {
		return snapshot.PPESnapshot{}, sentinel.ErrNotFound
	}
	return ps, nil
}

func newTestService(t *testing.T) (*Service, *fakeResolver) {
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

	resolver := &fakeResolver{ppe: map[string]snapshot.PPESnapshot{
		"e1": {Name: "Casco dielectrico", Category: "cabeza", ValidityDays: 365},
	}}
	svc := NewService(db, seq, resolver)
	require.NoError(t, svc.Store().AutoMigrate())
	return svc, resolver
}

func approver() authz.Identity {
	return authz.Identity{User: "revisora", Groups: []string{authz.RoleApprover}}
}

func draft(t *testing.T, svc *Service) *Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), "acme", "jperez", CreateInput{
		Titulo: "Bloqueo y etiquetado",
		Steps: []StepInput{
			{Descripcion: "identificar fuentes de energia"},
			{Descripcion: "colocar candado", Responsable: "electricista"},
		},
		PPE: []PPEInput{{PPEItemID: "e1"}},
	})
	require.NoError(t, err)
	return doc
}

func approve(t *testing.T, svc *Service, id string) *Document {
	t.Helper()
	ctx := context.Background()
	var doc *Document
	var err error
	for _, to := range []lifecycle.State{
		lifecycle.StatePendienteRevision,
		lifecycle.StateEnRevision,
		lifecycle.StateVigente,
	} {
		doc, err = svc.Transition(ctx, "acme", id, to, approver())
		require.NoError(t, err, "transition to %s", to)
	}
	return doc
}

func TestCreateStartsAtVersionOne(t *testing.T) {
	svc, _ := newTestService(t)
	doc := draft(t, svc)

	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, lifecycle.StateBorrador, doc.State)
	require.Len(t, doc.PPE, 1)
	assert.Equal(t, "Casco dielectrico", doc.PPE[0].Name)
}

func TestReviewCanSendBackToDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := draft(t, svc)

	doc, err := svc.Transition(ctx, "acme", doc.ID, lifecycle.StatePendienteRevision, approver())
	require.NoError(t, err)
	doc, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateEnRevision, approver())
	require.NoError(t, err)
	doc, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateBorrador, approver())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateBorrador, doc.State)
}

func TestVigenteIsImmutable(t *testing.T) {
	svc, _ := newTestService(t)
	doc := draft(t, svc)
	doc = approve(t, svc, doc.ID)

	_, err := svc.Update(context.Background(), "acme", doc.ID, "jperez",
		UpdateInput{CreateInput: CreateInput{Titulo: "otro"}})
	require.Error(t, err)
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DOC_TERMINAL_IMMUTABLE", re.Code)
}

func TestNewVersionClonesContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := draft(t, svc)
	doc = approve(t, svc, doc.ID)

	clone, err := svc.NewVersion(ctx, "acme", doc.ID, "jperez")
	require.NoError(t, err)

	assert.Equal(t, doc.Code, clone.Code)
	assert.Equal(t, 2, clone.Version)
	assert.Equal(t, lifecycle.StateBorrador, clone.State)
	assert.Equal(t, doc.Titulo, clone.Titulo)
	require.Len(t, clone.Steps, 2)
	require.Len(t, clone.PPE, 1)
	require.Len(t, clone.History, 1)
	assert.Equal(t, "nueva_version", clone.History[0].Action)

	// The source version stays current until the clone is approved.
	src, err := svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateVigente, src.State)
}

func TestNewVersionRequiresVigente(t *testing.T) {
	svc, _ := newTestService(t)
	doc := draft(t, svc)

	_, err := svc.NewVersion(context.Background(), "acme", doc.ID, "jperez")
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "PETS_NOT_VIGENTE", re.Code)
}

func TestApprovingNewVersionObsoletesOld(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doc := draft(t, svc)
	doc = approve(t, svc, doc.ID)

	clone, err := svc.NewVersion(ctx, "acme", doc.ID, "jperez")
	require.NoError(t, err)
	clone = approve(t, svc, clone.ID)
	assert.Equal(t, lifecycle.StateVigente, clone.State)

	old, err := svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateObsoleto, old.State)
	last := old.History[len(old.History)-1]
	assert.Equal(t, "obsoletar", last.Action)
	assert.Equal(t, lifecycle.StateVigente, last.StateBefore)

	// Exactly one Vigente version of the code remains.
	vigentes, err := svc.List(ctx, "acme", string(lifecycle.StateVigente), doc.Code)
	require.NoError(t, err)
	require.Len(t, vigentes, 1)
	assert.Equal(t, clone.ID, vigentes[0].ID)
}

func TestSequentialCodesAcrossProcedures(t *testing.T) {
	svc, _ := newTestService(t)
	first := draft(t, svc)
	second := draft(t, svc)
	assert.NotEqual(t, first.Code, second.Code)
	assert.Equal(t, sequence.Format("PETS", first.CreatedAt.Year(), 2), second.Code)
}
