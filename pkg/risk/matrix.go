package risk

import "github.com/sigeso/sst-registry/pkg/sentinel"

// Probabilidad is the qualitative likelihood ordinal of a risk evaluation.
type Probabilidad string

const (
	ProbMuyBaja Probabilidad = "MuyBaja"
	ProbBaja    Probabilidad = "Baja"
	ProbMedia   Probabilidad = "Media"
	ProbAlta    Probabilidad = "Alta"
	ProbMuyAlta Probabilidad = "MuyAlta"
)

// Consecuencia is the qualitative consequence ordinal of a risk evaluation.
type Consecuencia string

const (
	ConsInsignificante Consecuencia = "Insignificante"
	ConsMenor          Consecuencia = "Menor"
	ConsModerada       Consecuencia = "Moderada"
	ConsMayor          Consecuencia = "Mayor"
	ConsCatastrofica   Consecuencia = "Catastrofica"
)

var probIndex = map[Probabilidad]int{
	ProbMuyBaja: 0, ProbBaja: 1, ProbMedia: 2, ProbAlta: 3, ProbMuyAlta: 4,
}

var consIndex = map[Consecuencia]int{
	ConsInsignificante: 0, ConsMenor: 1, ConsModerada: 2, ConsMayor: 3, ConsCatastrofica: 4,
}

// riskMatrix is the fixed classification table of the domain standard.
// Rows are probabilidad (MuyBaja first), columns consecuencia
// (Insignificante first). It is a lookup, not a formula: the cell values are
// normative and must not be replaced by arithmetic on the ordinals.
var riskMatrix = [5][5]Level{
	{Trivial, Trivial, Tolerable, Moderado, Importante},
	{Trivial, Tolerable, Moderado, Importante, Importante},
	{Tolerable, Moderado, Moderado, Importante, Intolerable},
	{Moderado, Moderado, Importante, Intolerable, Intolerable},
	{Moderado, Importante, Intolerable, Intolerable, Intolerable},
}

// MatrixScore reads the risk level for a (probabilidad, consecuencia) pair
// from the fixed 5x5 table.
func MatrixScore(p Probabilidad, c Consecuencia) (Level, error) {
	pi, ok := probIndex[p]
	if !ok {
		return "", sentinel.NewRuleError("RISK_PROBABILIDAD_UNKNOWN",
			"unknown probabilidad %q", p)
	}
	ci, ok := consIndex[c]
	if !ok {
		return "", sentinel.NewRuleError("RISK_CONSECUENCIA_UNKNOWN",
			"unknown consecuencia %q", c)
	}
	return riskMatrix[pi][ci], nil
}
