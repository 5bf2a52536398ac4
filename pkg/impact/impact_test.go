package impact

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueImpact(t *testing.T) {
	tests := []struct {
		name string
		in   ValueInput
		want float64
	}{
		{"zero", ValueInput{}, 0},
		{"base", ValueInput{UtilityPerPerson: 500, People: 100_000_000}, 50_000_000_000},
		{"with cost", ValueInput{UtilityPerPerson: 362, People: 345_000_000, OpportunityCost: 15_000_000_000}, 109_890_000_000},
		{"with growth", ValueInput{UtilityPerPerson: 2, People: 3, Growth: 4, OpportunityCost: 1}, 9},
		{"clamped", ValueInput{UtilityPerPerson: 1, People: 1, OpportunityCost: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueImpact(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHumanPotential(t *testing.T) {
	got, err := HumanPotential(PotentialInput{Mass: 1, Creativity: 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.49, got, 1e-9)

	got, err = HumanPotential(PotentialInput{Mass: 100, Creativity: 0.95, Growth: 50, OpportunityCost: 20})
	require.NoError(t, err)
	assert.InDelta(t, 120.25, got, 1e-9)

	got, err = HumanPotential(PotentialInput{Mass: 1, Creativity: 0, OpportunityCost: 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		run   func() error
		field string
	}{
		{"negative people", func() error { _, err := ValueImpact(ValueInput{People: -1}); return err }, "people"},
		{"nan utility", func() error { _, err := ValueImpact(ValueInput{UtilityPerPerson: math.NaN()}); return err }, "utility"},
		{"inf cost", func() error { _, err := ValueImpact(ValueInput{OpportunityCost: math.Inf(1)}); return err }, "opportunity_cost"},
		{"zero mass", func() error { _, err := HumanPotential(PotentialInput{Creativity: 1}); return err }, "mass"},
		{"negative mass", func() error { _, err := HumanPotential(PotentialInput{Mass: -1}); return err }, "mass"},
		{"negative creativity", func() error { _, err := HumanPotential(PotentialInput{Mass: 1, Creativity: -0.1}); return err }, "creativity"},
		{"negative growth", func() error { _, err := HumanPotential(PotentialInput{Mass: 1, Growth: -3}); return err }, "growth"},
		{"value overflow", func() error { _, err := ValueImpact(ValueInput{UtilityPerPerson: 1e200, People: 1e200}); return err }, "result"},
		{"value growth overflow", func() error {
			_, err := ValueImpact(ValueInput{Growth: math.MaxFloat64, OpportunityCost: 0, UtilityPerPerson: 1, People: math.MaxFloat64})
			return err
		}, "result"},
		{"potential overflow", func() error { _, err := HumanPotential(PotentialInput{Mass: 1e300, Creativity: 1e10}); return err }, "result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)

			var ie *InputError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.field, ie.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBest(t *testing.T) {
	_, ok := Best(nil)
	assert.False(t, ok)

	best, ok := Best([]Option{
		{Name: "a", Value: 1},
		{Name: "b", Value: 3},
		{Name: "c", Value: 3},
		{Name: "d", Value: 2},
	})
	require.True(t, ok)
	assert.Equal(t, "b", best.Name, "first option wins ties")
}

func TestCompute(t *testing.T) {
	list, err := Compute([]Scenario{
		{Name: "Present", Kind: KindValue, Value: ValueInput{UtilityPerPerson: 362, People: 345_000_000, OpportunityCost: 15_000_000_000}},
		{Name: "Competitor", Kind: KindValue, Value: ValueInput{UtilityPerPerson: 500, People: 100_000_000}},
		{Kind: KindPotential, Potential: PotentialInput{Mass: 1, Creativity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, Option{Name: "Present", Kind: KindValue, Value: 109_890_000_000}, list[0])
	assert.Equal(t, "option 3", list[2].Name)
	assert.Equal(t, 4.0, list[2].Value)

	best, ok := Best(list)
	require.True(t, ok)
	assert.Equal(t, "Present", best.Name)
}

func TestCompute_Errors(t *testing.T) {
	_, err := Compute([]Scenario{{Name: "x", Kind: "other"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Compute([]Scenario{{Name: "team", Kind: KindPotential}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "team")

	list, err := Compute(nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	doc := `
- name: Individual
  kind: potential
  potential:
    mass: 1
    creativity: 0.7
- name: Team
  kind: Potential
  potential:
    mass: 100
    creativity: 0.95
    growth: 50
    opportunity_cost: 20
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	list, err := LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, KindPotential, list[1].Kind)
	assert.Equal(t, 20.0, list[1].Potential.OpportunityCost)

	_, err = LoadScenarios("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = LoadScenarios(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [x"), 0600))
	_, err = LoadScenarios(bad)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
