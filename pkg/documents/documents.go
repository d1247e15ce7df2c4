// Package documents holds the vocabulary and transaction helpers shared by
// every document aggregate: the document type enum, the terminal-state
// immutability rules, and row locking for state changes.
package documents

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sigeso/sst-registry/pkg/lifecycle"
	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Type identifies a document aggregate. The value doubles as the code prefix
// issued by the sequencer (ATS-2025-001, CERT-2025-000001).
type Type string

const (
	TypeATS        Type = "ATS"
	TypePETAR      Type = "PETAR"
	TypePETS       Type = "PETS"
	TypeIPERC      Type = "IPERC"
	TypeEvaluacion Type = "EVAL"
	TypeEntregaEPP Type = "CERT"
)

// ErrImmutable is returned when a write targets a document in a terminal state.
func ErrImmutable(t Type, code string, state lifecycle.State) error {
	return sentinel.NewRuleError("DOC_TERMINAL_IMMUTABLE",
		"%s %s is in terminal state %s and cannot be modified", t, code, state)
}

// ErrCodeImmutable is returned when an update tries to change an issued code.
func ErrCodeImmutable(t Type, code string) error {
	return sentinel.NewRuleError("DOC_CODE_IMMUTABLE",
		"%s code %s was issued by the sequencer and cannot be changed", t, code)
}

// LockForUpdate applies a FOR UPDATE row lock on dialects that support it.
// SQLite serializes writers on its own, so the clause is skipped there.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

// CompanyOrDefault maps an empty company to the "default" company.
func CompanyOrDefault(company string) string {
	if company == "" {
		return "default"
	}
	return company
}

// ActionForState names the ledger action recorded for a transition into the
// given state. Unknown states fall back to the generic verb.
func ActionForState(to lifecycle.State) string {
	switch to {
	case lifecycle.StateCompletado:
		return "completar"
	case lifecycle.StateAprobado, lifecycle.StateAprobada, lifecycle.StateVigente:
		return "aprobar"
	case lifecycle.StateEnEjecucion:
		return "iniciar_ejecucion"
	case lifecycle.StateFinalizado:
		return "finalizar"
	case lifecycle.StateCerrado:
		return "cerrar"
	case lifecycle.StateAnulado:
		return "anular"
	case lifecycle.StateCancelado:
		return "cancelar"
	case lifecycle.StateRechazado:
		return "rechazar"
	case lifecycle.StatePendienteAprobacion, lifecycle.StatePendienteRevision:
		return "enviar"
	case lifecycle.StateEnRevision:
		return "iniciar_revision"
	case lifecycle.StateObsoleto:
		return "obsoletar"
	default:
		return "transicion"
	}
}

// ApprovalState reports whether entering the state grants approval, which
// requires the approver role.
func ApprovalState(to lifecycle.State) bool {
	switch to {
	case lifecycle.StateAprobado, lifecycle.StateAprobada, lifecycle.StateVigente:
		return true
	}
	return false
}
