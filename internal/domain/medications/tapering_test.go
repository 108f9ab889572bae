package medications

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dayPtr(s string) *time.Time {
	t := day(s)
	return &t
}

func phase(kind PhaseKind, dosage int64, start string, end *time.Time) Phase {
	return Phase{
		Kind:      kind,
		Dosage:    decimal.NewFromInt(dosage),
		Frequency: FrequencyOnceDaily,
		StartDate: day(start),
		EndDate:   end,
	}
}

func TestResolve(t *testing.T) {
	phases := []Phase{
		phase(PhaseIncrease, 1, "2025-01-01", dayPtr("2025-01-10")),
		phase(PhaseMaintenance, 2, "2025-01-11", dayPtr("2025-01-20")),
		phase(PhaseDecrease, 1, "2025-01-21", dayPtr("2025-01-31")),
	}

	tests := []struct {
		name    string
		day     string
		ongoing bool
		state   ResolutionState
		index   int
	}{
		{"before any phase", "2024-12-31", true, ResolutionPending, 0},
		{"first day", "2025-01-01", true, ResolutionActive, 0},
		{"inclusive end", "2025-01-10", true, ResolutionActive, 0},
		{"middle phase", "2025-01-15", true, ResolutionActive, 1},
		{"after last, ongoing", "2025-02-05", true, ResolutionActive, 2},
		{"after last, finished treatment", "2025-02-05", false, ResolutionEnded, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(phases, day(tt.day), tt.ongoing)
			assert.Equal(t, tt.state, res.State)
			assert.Equal(t, tt.index, res.Index)
			require.NotNil(t, res.Phase)
			assert.Equal(t, phases[tt.index].Kind, res.Phase.Kind)
		})
	}
}

func TestResolveOverlapPicksLastMatching(t *testing.T) {
	phases := []Phase{
		phase(PhaseMaintenance, 2, "2025-01-01", nil),
		phase(PhaseDecrease, 1, "2025-01-05", dayPtr("2025-01-10")),
	}

	res := Resolve(phases, day("2025-01-07"), true)
	assert.Equal(t, ResolutionActive, res.State)
	assert.Equal(t, 1, res.Index)

	// fuera de la segunda ventana vuelve a la fase abierta
	res = Resolve(phases, day("2025-01-12"), true)
	assert.Equal(t, 0, res.Index)
}

func TestResolvePendingUsesEarliestStart(t *testing.T) {
	// sin orden: el resolver no reordena, pero pending elige la que empieza antes
	phases := []Phase{
		phase(PhaseDecrease, 1, "2025-03-01", nil),
		phase(PhaseIncrease, 1, "2025-02-01", nil),
	}
	res := Resolve(phases, day("2025-01-01"), true)
	assert.Equal(t, ResolutionPending, res.State)
	assert.Equal(t, 1, res.Index)
}

func TestResolveNoPhases(t *testing.T) {
	res := Resolve(nil, day("2025-01-01"), true)
	assert.Equal(t, ResolutionNone, res.State)
	assert.Equal(t, -1, res.Index)
	assert.Nil(t, res.Phase)
}

func TestValidatePhases(t *testing.T) {
	ok := []Phase{
		phase(PhaseIncrease, 1, "2025-01-01", dayPtr("2025-01-10")),
		phase(PhaseMaintenance, 2, "2025-01-10", nil),
	}
	require.NoError(t, ValidatePhases(ok))

	backwards := []Phase{phase(PhaseIncrease, 1, "2025-01-10", dayPtr("2025-01-01"))}
	assert.Error(t, ValidatePhases(backwards))

	overlapping := []Phase{
		phase(PhaseIncrease, 1, "2025-01-01", dayPtr("2025-01-10")),
		phase(PhaseMaintenance, 2, "2025-01-05", nil),
	}
	assert.Error(t, ValidatePhases(overlapping))

	unordered := []Phase{
		phase(PhaseIncrease, 1, "2025-02-01", nil),
		phase(PhaseMaintenance, 2, "2025-01-01", nil),
	}
	assert.Error(t, ValidatePhases(unordered))

	finished := []Phase{phase(PhaseFinished, 0, "2025-01-01", nil)}
	assert.NoError(t, ValidatePhases(finished))
}
