package salvator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// Test helpers

// lineTable places crystal i at (10*i, 50, 0) cm with unit gain, so that
// consecutive crystals are 10 cm apart and none of them sits on the origin.
func lineTable(t testing.TB, n int) *CrystalTable {
	t.Helper()
	table := NewCrystalTable(n)
	for id := 0; id < n; id++ {
		require.NoError(t, table.Set(Crystal{ID: id, Pos: linePos(id), Gain: 1}))
	}
	return table
}

func linePos(id int) r3.Vec {
	return r3.Vec{X: 10 * float64(id), Y: 50}
}

type settingsOption func(*Settings)

func withBeta(beta float64) settingsOption {
	return func(s *Settings) { s.Beta = beta }
}

func withAddback(kind string) settingsOption {
	return func(s *Settings) { s.AddbackType = kind }
}

func withBeamBeta(policy string) settingsOption {
	return func(s *Settings) {
		s.UseBeamBeta = true
		s.BadBetaPolicy = policy
	}
}

// newTestReconstructor builds a reconstructor for the default 186 crystals
// laid out by lineTable.
func newTestReconstructor(t testing.TB, opts ...settingsOption) *Reconstructor {
	t.Helper()
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	reco, err := NewReconstructor(settings, lineTable(t, settings.NCrystals))
	require.NoError(t, err)
	return reco
}

// hitAt is a placed, uncorrected single with DCEnergy equal to Energy.
func hitAt(id int, energy float64) Hit {
	return Hit{ID: id, ADC: int(energy), Energy: energy, DCEnergy: energy, Pos: linePos(id), Nadded: 1}
}

func dcEnergies(hits []Hit) []float64 {
	energies := make([]float64, len(hits))
	for i, h := range hits {
		energies[i] = h.DCEnergy
	}
	return energies
}

type recordingLogger struct {
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(message string, module string) {
	l.infos = append(l.infos, module+": "+message)
}

func (l *recordingLogger) Error(message string) {
	l.errors = append(l.errors, message)
}
