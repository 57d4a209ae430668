package salvator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfiguration(t *testing.T) {
	t.Run("json overrides defaults", func(t *testing.T) {
		path := writeConfig(t, "run.json", `{
			"files_in": ["run0042.root"],
			"run_number": 42,
			"num_workers": 4,
			"reconstruction": {"beta": 0.57, "addback_type": "angle", "addback_angle": 25}
		}`)

		config, err := LoadConfiguration(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"run0042.root"}, config.FilesIn)
		assert.Equal(t, 42, config.RunNumber)
		assert.Equal(t, 4, config.NumWorkers)
		assert.Equal(t, "tr", config.TreeName)
		assert.Equal(t, 0.57, config.Reconstruction.Beta)
		assert.Equal(t, AddbackAngle, config.Reconstruction.AddbackType)
		assert.Equal(t, 25.0, config.Reconstruction.AddbackAngle)
		// fields missing from the file keep their defaults
		assert.Equal(t, 186, config.Reconstruction.NCrystals)
		assert.Equal(t, 4095, config.Reconstruction.ADCHigh)
		assert.Equal(t, 15.0, config.Reconstruction.AddbackDistance)
	})

	t.Run("yaml is chosen by extension", func(t *testing.T) {
		path := writeConfig(t, "run.yaml", strings.Join([]string{
			"files_in: [a.root, b.root]",
			"hits_out: hits.h5",
			"reconstruction:",
			"  use_beam_beta: true",
			"  bad_beta_policy: drop",
			"  vertex: [0, 0, -3.5]",
			"  addback_type: table",
			"  addback_neighbors:",
			"    - [1, 2]",
			"    - [2, 3]",
		}, "\n"))

		config, err := LoadConfiguration(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"a.root", "b.root"}, config.FilesIn)
		assert.Equal(t, "hits.h5", config.HitsOut)
		s := config.Reconstruction
		assert.True(t, s.UseBeamBeta)
		assert.Equal(t, BadBetaDrop, s.BadBetaPolicy)
		assert.Equal(t, [3]float64{0, 0, -3.5}, s.Vertex)
		assert.Equal(t, [][2]int{{1, 2}, {2, 3}}, s.AddbackNeighbors)
		assert.NoError(t, s.Validate())
	})

	t.Run("environment overrides database credentials", func(t *testing.T) {
		t.Setenv("SALVATOR_DB_USER", "dali")
		t.Setenv("SALVATOR_DB_PASS", "secret")
		path := writeConfig(t, "run.json", `{"user": "reader", "host": "db.riken"}`)

		config, err := LoadConfiguration(path)

		require.NoError(t, err)
		assert.Equal(t, "dali", config.User)
		assert.Equal(t, "secret", config.Passwd)
		assert.Equal(t, "db.riken", config.Host)
		assert.Equal(t, "DALI", config.DBName)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfiguration(filepath.Join(t.TempDir(), "none.json"))
		assert.ErrorContains(t, err, "read configuration")
	})

	t.Run("broken file", func(t *testing.T) {
		_, err := LoadConfiguration(writeConfig(t, "run.json", `{"num_workers": "many"}`))
		assert.ErrorContains(t, err, "parse configuration")
	})
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	cases := map[string]func(*Settings){
		"no crystals":          func(s *Settings) { s.NCrystals = 0 },
		"inverted adc window":  func(s *Settings) { s.ADCLow, s.ADCHigh = 100, 100 },
		"zero beam direction":  func(s *Settings) { s.BeamDirection = [3]float64{} },
		"beta of one":          func(s *Settings) { s.Beta = 1 },
		"unknown policy":       func(s *Settings) { s.UseBeamBeta = true; s.BadBetaPolicy = "ignore" },
		"negative time window": func(s *Settings) { s.AddbackTimeWindow = -1 },
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			s := DefaultSettings()
			modify(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestPrintConfiguration(t *testing.T) {
	log := &recordingLogger{}
	config := Configuration{FilesIn: []string{"a.root", "b.root"}, Reconstruction: DefaultSettings()}

	PrintConfiguration(config, log)

	assert.Contains(t, log.infos, "config: Files in: a.root, b.root")
	assert.Contains(t, log.infos, "config: Beta: 0")
	assert.Empty(t, log.errors)
}
