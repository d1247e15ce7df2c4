package risk

import "github.com/sigeso/sst-registry/pkg/sentinel"

// WeightedInput carries the four probability facets and the severity of one
// hazard matrix line. Each facet is an ordinal in [1,5]:
// personnel exposed, existing procedures, training, exposure frequency.
type WeightedInput struct {
	PersonasExpuestas    int `json:"indice_personas_expuestas"`
	Procedimientos       int `json:"indice_procedimientos"`
	Capacitacion         int `json:"indice_capacitacion"`
	FrecuenciaExposicion int `json:"indice_frecuencia"`
	Severidad            int `json:"indice_severidad"`
}

// WeightedResult is the derived score of a hazard matrix line.
type WeightedResult struct {
	IndiceProbabilidad int   `json:"indice_probabilidad"`
	ValorRiesgo        int   `json:"valor_riesgo"`
	NivelRiesgo        Level `json:"nivel_riesgo"`
}

// WeightedScore derives the risk of a hazard matrix line: the probability
// index is the unweighted sum of the four facets, the risk value is that
// index times severity, and the level comes from fixed thresholds.
func WeightedScore(in WeightedInput) (WeightedResult, error) {
	for _, f := range []struct {
		name  string
		value int
	}{
		{"indice_personas_expuestas", in.PersonasExpuestas},
		{"indice_procedimientos", in.Procedimientos},
		{"indice_capacitacion", in.Capacitacion},
		{"indice_frecuencia", in.FrecuenciaExposicion},
		{"indice_severidad", in.Severidad},
	} {
		if f.value < 1 || f.value > 5 {
			return WeightedResult{}, sentinel.NewRuleError("RISK_FACET_OUT_OF_RANGE",
				"%s must be between 1 and 5, got %d", f.name, f.value)
		}
	}

	indice := in.PersonasExpuestas + in.Procedimientos + in.Capacitacion + in.FrecuenciaExposicion
	valor := indice * in.Severidad

	var nivel Level
	switch {
	case valor <= 5:
		nivel = Trivial
	case valor <= 10:
		nivel = Tolerable
	case valor <= 15:
		nivel = Moderado
	case valor <= 20:
		nivel = Importante
	default:
		nivel = Intolerable
	}

	return WeightedResult{
		IndiceProbabilidad: indice,
		ValorRiesgo:        valor,
		NivelRiesgo:        nivel,
	}, nil
}
