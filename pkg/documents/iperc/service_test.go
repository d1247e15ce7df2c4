package iperc

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
	"github.com/sigeso/sst-registry/pkg/risk"
	"github.com/sigeso/sst-registry/pkg/sentinel"
	"github.com/sigeso/sst-registry/pkg/sequence"
)

func newTestService(t *testing.T) *Service {
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

	svc := NewService(db, seq)
	require.NoError(t, svc.Store().AutoMigrate())
	return svc
}

func approver() authz.Identity {
	return authz.Identity{User: "jefa", Groups: []string{authz.RoleApprover}}
}

func lowRiskLine() LineInput {
	return LineInput{
		Peligro: "ruido",
		Riesgo:  "hipoacusia",
		WeightedInput: risk.WeightedInput{
			PersonasExpuestas:    1,
			Procedimientos:       1,
			Capacitacion:         1,
			FrecuenciaExposicion: 1,
			Severidad:            1,
		},
	}
}

func TestCreateScoresLines(t *testing.T) {
	svc := newTestService(t)

	high := LineInput{
		Peligro: "caida de rocas",
		WeightedInput: risk.WeightedInput{
			PersonasExpuestas:    3,
			Procedimientos:       3,
			Capacitacion:         3,
			FrecuenciaExposicion: 3,
			Severidad:            3,
		},
	}
	doc, err := svc.Create(context.Background(), "acme", "jperez", CreateInput{
		Proceso: "perforacion",
		Lines:   []LineInput{lowRiskLine(), high},
	})
	require.NoError(t, err)
	require.Len(t, doc.Lines, 2)

	assert.Equal(t, 4, doc.Lines[0].IndiceProbabilidad)
	assert.Equal(t, 4, doc.Lines[0].ValorRiesgo)
	assert.Equal(t, risk.Trivial, doc.Lines[0].NivelRiesgo)

	assert.Equal(t, 12, doc.Lines[1].IndiceProbabilidad)
	assert.Equal(t, 36, doc.Lines[1].ValorRiesgo)
	assert.Equal(t, risk.Intolerable, doc.Lines[1].NivelRiesgo)
}

func TestCreateRejectsOutOfRangeFacet(t *testing.T) {
	svc := newTestService(t)

	bad := lowRiskLine()
	bad.Severidad = 6
	_, err := svc.Create(context.Background(), "acme", "jperez", CreateInput{
		Proceso: "voladura",
		Lines:   []LineInput{bad},
	})
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "RISK_FACET_OUT_OF_RANGE", re.Code)
}

func TestCreateRejectsMismatchedDeclaredLevel(t *testing.T) {
	svc := newTestService(t)

	line := lowRiskLine()
	line.DeclaredLevel = risk.Intolerable
	_, err := svc.Create(context.Background(), "acme", "jperez", CreateInput{
		Proceso: "voladura",
		Lines:   []LineInput{line},
	})
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "RISK_LEVEL_MISMATCH", re.Code)
}

func TestCannotApproveWithoutLines(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{Proceso: "carguio"})
	require.NoError(t, err)

	doc, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateCompletado, approver())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateAprobado, approver())
	var re *sentinel.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "IPERC_NO_LINES", re.Code)

	// Adding lines unblocks the approval.
	_, err = svc.Update(ctx, "acme", doc.ID, "jperez", UpdateInput{CreateInput: CreateInput{
		Proceso: "carguio",
		Lines:   []LineInput{lowRiskLine()},
	}})
	require.NoError(t, err)
	doc, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateAprobado, approver())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateAprobado, doc.State)
}

func TestCancelFromAnyActiveState(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{
		Proceso: "acarreo",
		Lines:   []LineInput{lowRiskLine()},
	})
	require.NoError(t, err)

	doc, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateCancelado, approver())
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateCancelado, doc.State)

	// Cancelado is terminal.
	_, err = svc.Transition(ctx, "acme", doc.ID, lifecycle.StateBorrador, approver())
	var te *lifecycle.TransitionError
	require.ErrorAs(t, err, &te)
}

func TestUpdateRescoresLines(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	doc, err := svc.Create(ctx, "acme", "jperez", CreateInput{
		Proceso: "izaje",
		Lines:   []LineInput{lowRiskLine()},
	})
	require.NoError(t, err)

	worse := lowRiskLine()
	worse.Severidad = 5
	updated, err := svc.Update(ctx, "acme", doc.ID, "jperez", UpdateInput{CreateInput: CreateInput{
		Proceso: "izaje",
		Lines:   []LineInput{worse},
	}})
	require.NoError(t, err)
	require.Len(t, updated.Lines, 1)
	assert.Equal(t, 20, updated.Lines[0].ValorRiesgo)
	assert.Equal(t, risk.Importante, updated.Lines[0].NivelRiesgo)
}
