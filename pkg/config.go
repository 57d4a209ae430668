package salvator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Add-back proximity metrics.
const (
	AddbackDistance = "distance"
	AddbackAngle    = "angle"
	AddbackTable    = "table"
	AddbackNone     = "none"
)

// Policies for events whose beam reconstruction gives an unphysical beta.
const (
	BadBetaDrop  = "drop"
	BadBetaAbort = "abort"
)

// Settings holds everything the reconstruction needs. A Reconstructor keeps
// its own copy, so changing a Settings value after construction has no effect.
type Settings struct {
	NCrystals         int        `json:"n_crystals" yaml:"n_crystals"`
	ADCLow            int        `json:"adc_low" yaml:"adc_low"`
	ADCHigh           int        `json:"adc_high" yaml:"adc_high"`
	Beta              float64    `json:"beta" yaml:"beta"`
	UseBeamBeta       bool       `json:"use_beam_beta" yaml:"use_beam_beta"`
	BadBetaPolicy     string     `json:"bad_beta_policy" yaml:"bad_beta_policy"`
	Vertex            [3]float64 `json:"vertex" yaml:"vertex"`
	BeamDirection     [3]float64 `json:"beam_direction" yaml:"beam_direction"`
	AddbackType       string     `json:"addback_type" yaml:"addback_type"`
	AddbackDistance   float64    `json:"addback_distance" yaml:"addback_distance"`
	AddbackAngle      float64    `json:"addback_angle" yaml:"addback_angle"`
	AddbackTimeWindow float64    `json:"addback_time_window" yaml:"addback_time_window"`
	AddbackNeighbors  [][2]int   `json:"addback_neighbors" yaml:"addback_neighbors"`
}

// DefaultSettings returns the settings used for the DALI2 array when the
// configuration file does not override them.
func DefaultSettings() Settings {
	return Settings{
		NCrystals:       186,
		ADCLow:          0,
		ADCHigh:         4095,
		Beta:            0,
		BeamDirection:   [3]float64{0, 0, 1},
		AddbackType:     AddbackDistance,
		AddbackDistance: 15,
		AddbackAngle:    20,
	}
}

func (s Settings) VertexVec() r3.Vec {
	return r3.Vec{X: s.Vertex[0], Y: s.Vertex[1], Z: s.Vertex[2]}
}

func (s Settings) DirectionVec() r3.Vec {
	return r3.Vec{X: s.BeamDirection[0], Y: s.BeamDirection[1], Z: s.BeamDirection[2]}
}

// Validate checks the settings that do not depend on the crystal table.
func (s Settings) Validate() error {
	if s.NCrystals <= 0 {
		return &ConfigError{Field: "n_crystals", Reason: "must be positive"}
	}
	if s.ADCLow >= s.ADCHigh {
		return &ConfigError{Field: "adc_low", Reason: "must be below adc_high"}
	}
	if r3.Norm(s.DirectionVec()) == 0 {
		return &DegenerateGeometryError{ID: -1, Reason: "beam direction has zero length"}
	}
	if s.UseBeamBeta {
		switch s.BadBetaPolicy {
		case BadBetaDrop, BadBetaAbort:
		case "":
			return &ConfigError{Field: "bad_beta_policy", Reason: "required when use_beam_beta is set"}
		default:
			return &ConfigError{Field: "bad_beta_policy", Reason: "must be drop or abort"}
		}
	} else if err := ValidateBeta(s.Beta); err != nil {
		return err
	}
	if s.AddbackTimeWindow < 0 {
		return &ConfigError{Field: "addback_time_window", Reason: "must not be negative"}
	}
	return nil
}

// Configuration describes one analysis run.
type Configuration struct {
	MaxEvents        int      `json:"max_events" yaml:"max_events"`
	Skip             int      `json:"skip" yaml:"skip"`
	Verbosity        int      `json:"verbosity" yaml:"verbosity"`
	FilesIn          []string `json:"files_in" yaml:"files_in"`
	TreeName         string   `json:"tree_name" yaml:"tree_name"`
	HistOut          string   `json:"hist_out" yaml:"hist_out"`
	HitsOut          string   `json:"hits_out" yaml:"hits_out"`
	CompressionLevel int      `json:"compression_level" yaml:"compression_level"`
	PositionFile     string   `json:"position_file" yaml:"position_file"`
	NoDB             bool     `json:"no_db" yaml:"no_db"`
	Host             string   `json:"host" yaml:"host"`
	User             string   `json:"user" yaml:"user"`
	Passwd           string   `json:"pass" yaml:"pass"`
	DBName           string   `json:"dbname" yaml:"dbname"`
	RunNumber        int      `json:"run_number" yaml:"run_number"`
	NumWorkers       int      `json:"num_workers" yaml:"num_workers"`
	ProgressEvery    int      `json:"progress_every" yaml:"progress_every"`
	NatsURL          string   `json:"nats_url" yaml:"nats_url"`
	NatsSubject      string   `json:"nats_subject" yaml:"nats_subject"`
	Reconstruction   Settings `json:"reconstruction" yaml:"reconstruction"`
}

// LoadConfiguration reads a JSON or YAML (by extension) configuration file on
// top of the defaults. Database credentials can be overridden from the
// environment with SALVATOR_DB_USER, SALVATOR_DB_PASS, SALVATOR_DB_HOST and
// SALVATOR_DB_NAME.
func LoadConfiguration(filename string) (Configuration, error) {
	var config Configuration

	// Set default values
	config.MaxEvents = 0
	config.Skip = 0
	config.Verbosity = 0
	config.TreeName = "tr"
	config.HistOut = "test.root"
	config.CompressionLevel = 4
	config.NoDB = false
	config.Host = "localhost"
	config.User = "reader"
	config.Passwd = "readonly"
	config.DBName = "DALI"
	config.NumWorkers = 1
	config.ProgressEvery = 10000
	config.NatsSubject = "salvator.progress"
	config.Reconstruction = DefaultSettings()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("read configuration: %w", err)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("parse configuration: %w", err)
	}
	applyEnvironment(&config)
	return config, nil
}

func applyEnvironment(config *Configuration) {
	config.User = getenv("SALVATOR_DB_USER", config.User)
	config.Passwd = getenv("SALVATOR_DB_PASS", config.Passwd)
	config.Host = getenv("SALVATOR_DB_HOST", config.Host)
	config.DBName = getenv("SALVATOR_DB_NAME", config.DBName)
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func PrintConfiguration(config Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Files in: %s", strings.Join(config.FilesIn, ", ")), "config")
	logger.Info(fmt.Sprintf("Tree name: %s", config.TreeName), "config")
	logger.Info(fmt.Sprintf("Histograms out: %s", config.HistOut), "config")
	logger.Info(fmt.Sprintf("Hits out: %s", config.HitsOut), "config")
	logger.Info(fmt.Sprintf("Position file: %s", config.PositionFile), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("NATS URL: %s", config.NatsURL), "config")

	s := config.Reconstruction
	logger.Info(fmt.Sprintf("Crystals: %d", s.NCrystals), "config")
	logger.Info(fmt.Sprintf("ADC window: (%d, %d)", s.ADCLow, s.ADCHigh), "config")
	if s.UseBeamBeta {
		logger.Info(fmt.Sprintf("Beta: from beam, bad beta policy %s", s.BadBetaPolicy), "config")
	} else {
		logger.Info(fmt.Sprintf("Beta: %g", s.Beta), "config")
	}
	logger.Info(fmt.Sprintf("Vertex: %v, beam direction: %v", s.Vertex, s.BeamDirection), "config")
	logger.Info(fmt.Sprintf("Add-back: %s (distance %g, angle %g, time window %g)",
		s.AddbackType, s.AddbackDistance, s.AddbackAngle, s.AddbackTimeWindow), "config")
}
