package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigeso/sst-registry/pkg/sentinel"
)

func TestWeightedScore_Thresholds(t *testing.T) {
	tests := []struct {
		name       string
		in         WeightedInput
		wantIndice int
		wantValor  int
		wantNivel  Level
	}{
		{
			name:       "minimum inputs are trivial",
			in:         WeightedInput{1, 1, 1, 1, 1},
			wantIndice: 4,
			wantValor:  4,
			wantNivel:  Trivial,
		},
		{
			name:       "maximum inputs are intolerable",
			in:         WeightedInput{5, 5, 5, 5, 5},
			wantIndice: 20,
			wantValor:  100,
			wantNivel:  Intolerable,
		},
		{
			name:       "valor 5 still trivial",
			in:         WeightedInput{1, 1, 1, 2, 1},
			wantIndice: 5,
			wantValor:  5,
			wantNivel:  Trivial,
		},
		{
			name:       "valor 10 tolerable",
			in:         WeightedInput{1, 1, 1, 2, 2},
			wantIndice: 5,
			wantValor:  10,
			wantNivel:  Tolerable,
		},
		{
			name:       "valor 15 moderado",
			in:         WeightedInput{1, 1, 1, 2, 3},
			wantIndice: 5,
			wantValor:  15,
			wantNivel:  Moderado,
		},
		{
			name:       "valor 20 importante",
			in:         WeightedInput{1, 1, 1, 2, 4},
			wantIndice: 5,
			wantValor:  20,
			wantNivel:  Importante,
		},
		{
			name:       "valor 25 intolerable",
			in:         WeightedInput{1, 1, 1, 2, 5},
			wantIndice: 5,
			wantValor:  25,
			wantNivel:  Intolerable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WeightedScore(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndice, got.IndiceProbabilidad)
			assert.Equal(t, tt.wantValor, got.ValorRiesgo)
			assert.Equal(t, tt.wantNivel, got.NivelRiesgo)
		})
	}
}

func TestWeightedScore_RejectsOutOfRangeFacets(t *testing.T) {
	for _, in := range []WeightedInput{
		{0, 1, 1, 1, 1},
		{1, 6, 1, 1, 1},
		{1, 1, -1, 1, 1},
		{1, 1, 1, 1, 0},
	} {
		_, err := WeightedScore(in)
		require.Error(t, err)
		assert.True(t, sentinel.IsRule(err), "out-of-range facet must be a rule violation")
	}
}

func TestMatrixScore_FullTable(t *testing.T) {
	probs := []Probabilidad{ProbMuyBaja, ProbBaja, ProbMedia, ProbAlta, ProbMuyAlta}
	cons := []Consecuencia{ConsInsignificante, ConsMenor, ConsModerada, ConsMayor, ConsCatastrofica}

	want := [5][5]Level{
		{Trivial, Trivial, Tolerable, Moderado, Importante},
		{Trivial, Tolerable, Moderado, Importante, Importante},
		{Tolerable, Moderado, Moderado, Importante, Intolerable},
		{Moderado, Moderado, Importante, Intolerable, Intolerable},
		{Moderado, Importante, Intolerable, Intolerable, Intolerable},
	}

	for i, p := range probs {
		for j, c := range cons {
			got, err := MatrixScore(p, c)
			require.NoError(t, err)
			assert.Equalf(t, want[i][j], got, "score(%s, %s)", p, c)
		}
	}
}

func TestMatrixScore_FixedPoints(t *testing.T) {
	got, err := MatrixScore(ProbAlta, ConsCatastrofica)
	require.NoError(t, err)
	assert.Equal(t, Intolerable, got)

	got, err = MatrixScore(ProbMuyBaja, ConsInsignificante)
	require.NoError(t, err)
	assert.Equal(t, Trivial, got)
}

func TestMatrixScore_UnknownOrdinals(t *testing.T) {
	_, err := MatrixScore("Altisima", ConsMenor)
	assert.True(t, sentinel.IsRule(err))

	_, err = MatrixScore(ProbAlta, "Apocaliptica")
	assert.True(t, sentinel.IsRule(err))
}

func TestCheckDeclared(t *testing.T) {
	assert.NoError(t, CheckDeclared(Moderado, ""))
	assert.NoError(t, CheckDeclared(Moderado, Moderado))

	err := CheckDeclared(Moderado, Importante)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected Moderado")
}

func TestCheckResidual(t *testing.T) {
	assert.NoError(t, CheckResidual(Importante, Tolerable))
	assert.NoError(t, CheckResidual(Importante, Importante))
	assert.NoError(t, CheckResidual(Importante, ""))

	err := CheckResidual(Tolerable, Importante)
	require.Error(t, err)
	assert.True(t, sentinel.IsRule(err))

	assert.Error(t, CheckResidual(Tolerable, "Enorme"))
}

func TestLevelRank(t *testing.T) {
	order := []Level{Trivial, Tolerable, Moderado, Importante, Intolerable}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("%s must rank below %s", order[i-1], order[i])
		}
	}
	assert.False(t, Level("Medio").Valid())
}
