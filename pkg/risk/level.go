// Package risk implements the two deterministic risk-quantification
// strategies used by the safety documents. The weighted-sum variant scores
// hazard matrix lines; the lookup-matrix variant scores general risk
// evaluations. They encode different domain standards and are intentionally
// not convertible.
package risk

import "github.com/sigeso/sst-registry/pkg/sentinel"

// Level is the 5-level risk classification scale, ordered from lowest to
// highest. Persisted values are the printed Spanish labels.
type Level string

const (
	Trivial     Level = "Trivial"
	Tolerable   Level = "Tolerable"
	Moderado    Level = "Moderado"
	Importante  Level = "Importante"
	Intolerable Level = "Intolerable"
)

var levelRank = map[Level]int{
	Trivial:     1,
	Tolerable:   2,
	Moderado:    3,
	Importante:  4,
	Intolerable: 5,
}

// Rank returns the ordinal position of l on the scale, or 0 for an unknown
// label.
func (l Level) Rank() int {
	return levelRank[l]
}

// Valid reports whether l is one of the five known levels.
func (l Level) Valid() bool {
	return levelRank[l] != 0
}

// CheckDeclared rejects a caller-supplied classification that disagrees with
// the derived one. A stored value that disagrees with the recomputed one is a
// data-integrity defect, so the write is refused rather than corrected.
func CheckDeclared(derived, declared Level) error {
	if declared == "" || declared == derived {
		return nil
	}
	return sentinel.NewRuleError("RISK_LEVEL_MISMATCH",
		"Rule mismatch: expected %s, got %s", derived, declared)
}

// CheckResidual enforces that post-mitigation risk ranks no higher than the
// initial risk.
func CheckResidual(initial, residual Level) error {
	if residual == "" {
		return nil
	}
	if !residual.Valid() {
		return sentinel.NewRuleError("RISK_LEVEL_UNKNOWN",
			"unknown residual risk level %q", residual)
	}
	if residual.Rank() > initial.Rank() {
		return sentinel.NewRuleError("RISK_RESIDUAL_EXCEEDS_INITIAL",
			"residual risk %s ranks higher than initial risk %s", residual, initial)
	}
	return nil
}
