package ats

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sigeso/sst-registry/pkg/authz"
	"github.com/sigeso/sst-registry/pkg/documents"
	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
	"github.com/sigeso/sst-registry/pkg/snapshot"
)

type fakeResolver struct {
	workers map[string]snapshot.WorkerSnapshot
}

func (f *fakeResolver) ResolveWorker(_ context.Context, id string) (snapshot.WorkerSnapshot, error) {
	ws, ok := f.workers[id]
	if !ok {
		return snapshot.WorkerSnapshot{}, sentinel.ErrNotFound
	}
	return ws, nil
}

func (f *fakeResolver) ResolvePPEItem(_ context.Context, _ string) (snapshot.PPESnapshot, error) {
	return snapshot.PPESnapshot{}, sentinel.ErrNotFound
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

	resolver := &fakeResolver{workers: map[string]snapshot.WorkerSnapshot{
		"w1": {FullName: "Ana Ruiz", DocumentNumber: "44556677", JobTitle: "Supervisora"},
	}}
	svc := NewService(db, seq, resolver)
	require.NoError(t, svc.Store().AutoMigrate())
	return svc, resolver
}

func approver() authz.Identity {
	return authz.Identity{User: "jefe", Groups: []string{authz.RoleApprover}}
}

func TestCreateIssuesSequentialCodes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "izaje de carga"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "corte en caliente"})
	require.NoError(t, err)

	year := first.CreatedAt.Year()
	assert.Equal(t, sequence.Format("ATS", year, 1), first.Code)
	assert.Equal(t, sequence.Format("ATS", year, 2), second.Code)
	assert.Equal(t, lifecycle.StateBorrador, first.State)
	require.Len(t, first.History, 1)
	assert.Equal(t, "crear", first.History[0].Action)
	assert.Equal(t, 1, first.History[0].VersionOrdinal)
}

func TestCreateFreezesSupervisorName(t *testing.T) {
	svc, resolver := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{
		Trabajo:      "trabajo en altura",
		SupervisorID: "w1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", doc.SupervisorName)

	// A later rename in master data must not touch the stored snapshot.
	resolver.workers["w1"] = snapshot.WorkerSnapshot{FullName: "Ana Soto"}
	got, err := svc.Get(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Ruiz", got.SupervisorName)
}

func TestCreateRequiresTrabajo(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), "acme", "jperez", CreateInput{})
	require.Error(t, err)
	assert.True(t, sentinel.IsRule(err))
}

func TestUpdateReplacesLinesWholesale(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{
		Trabajo: "excavacion",
		Hazards: []HazardInput{
			{Peligro: "derrumbe", Riesgo: "atrapamiento", MedidaControl: "entibado"},
			{Peligro: "gases", Riesgo: "asfixia", MedidaControl: "monitoreo"},
		},
	})
	require.NoError(t, err)
	require.Len(t, doc.Hazards, 2)

	updated, err := svc.Update(ctx, "acme", doc.ID, "jperez", UpdateInput{
		CreateInput: CreateInput{
			Trabajo: "excavacion profunda",
			Hazards: []HazardInput{{Peligro: "caida a distinto nivel", Riesgo: "fractura", MedidaControl: "barandas"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Hazards, 1)
	assert.Equal(t, "caida a distinto nivel", updated.Hazards[0].Peligro)
	assert.Equal(t, 1, updated.Hazards[0].SequenceIndex)
	require.Len(t, updated.History, 2)
	assert.Equal(t, "actualizar", updated.History[1].Action)
}

func TestUpdateRejectsCodeChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "soldadura"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "acme", doc.ID, "jperez", UpdateInput{
		Code:        "ATS-2025-999",
		CreateInput: CreateInput{Trabajo: "soldadura"},
	})
	require.Error(t, err)
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DOC_CODE_IMMUTABLE", re.Code)
}

func TestTransitionChainToTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "izaje"})
	require.NoError(t, err)

	for _, to := range []lifecycle.State{
		lifecycle.StateCompletado,
		lifecycle.StateAprobado,
		lifecycle.StateEnEjecucion,
		lifecycle.StateFinalizado,
	} {
		doc, err = svc.Transition(ctx, "acme", doc.ID, to, approver())
		require.NoError(t, err, "transition to %s", to)
		assert.Equal(t, to, doc.State)
	}

	require.Len(t, doc.History, 5)
	assert.Equal(t, "finalizar", doc.History[4].Action)
	assert.Equal(t, lifecycle.StateEnEjecucion, doc.History[4].StateBefore)
	assert.Equal(t, lifecycle.StateFinalizado, doc.History[4].StateAfter)

	// Terminal documents reject edits and deletes.
	_, err = svc.Update(ctx, "acme", doc.ID, "jperez", UpdateInput{CreateInput: CreateInput{Trabajo: "otro"}})
	require.Error(t, err)
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "DOC_TERMINAL_IMMUTABLE", re.Code)

	err = svc.Delete(ctx, "acme", doc.ID)
	require.Error(t, err)
}

func TestTransitionCannotSkipStates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "izaje"})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateAprobado, approver())
	require.Error(t, err)
	var te *lifecycle.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "LIFECYCLE_INVALID_TRANSITION", te.Code)
}

func TestApprovalRequiresApproverRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "izaje"})
	require.NoError(t, err)
	doc, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateCompletado, approver())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateAprobado,
		authz.Identity{User: "jperez", Groups: []string{authz.RoleSupervisor}})
	require.Error(t, err)
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "AUTHZ_APPROVER_REQUIRED", re.Code)
}

func TestCompanyScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{Trabajo: "izaje"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "otra", doc.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	recs, err := svc.List(ctx, "acme", string(lifecycle.StateBorrador))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, documents.CompanyOrDefault("acme"), recs[0].Company)
}

func TestDeleteDraft(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{
		Trabajo: "izaje",
		Hazards: []HazardInput{{Peligro: "carga suspendida"}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "acme", doc.ID))
	_, err = svc.Get(ctx, "acme", doc.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
