package salvator

import (
	"fmt"
)

// Reconstructor turns the raw hits of one event into Doppler-corrected,
// added-back hits. Apart from SetBeta it never changes after construction and
// can be used by several workers at once.
type Reconstructor struct {
	settings Settings
	table    *CrystalTable
	merger   *Merger
	beta     float64
}

// NewReconstructor validates the settings and the crystal table. Every error
// it returns is a configuration error and should stop the run.
func NewReconstructor(settings Settings, table *CrystalTable) (*Reconstructor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, &ConfigError{Field: "positions", Reason: "no crystal table"}
	}
	if table.Len() != settings.NCrystals {
		return nil, &ConfigError{
			Field:  "n_crystals",
			Reason: fmt.Sprintf("crystal table holds %d crystals, settings expect %d", table.Len(), settings.NCrystals),
		}
	}
	if err := table.Validate(settings.VertexVec()); err != nil {
		return nil, err
	}
	merger, err := NewMerger(settings)
	if err != nil {
		return nil, err
	}
	settings.AddbackNeighbors = append([][2]int(nil), settings.AddbackNeighbors...)
	return &Reconstructor{
		settings: settings,
		table:    table,
		merger:   merger,
		beta:     settings.Beta,
	}, nil
}

// SetBeta replaces the fixed beta, e.g. while scanning for the best value in
// a calibration run. It must not be called while events are reconstructed.
func (r *Reconstructor) SetBeta(beta float64) error {
	if err := ValidateBeta(beta); err != nil {
		return err
	}
	r.beta = beta
	return nil
}

func (r *Reconstructor) Beta() float64 {
	return r.beta
}

func (r *Reconstructor) Settings() Settings {
	return r.settings
}

// Reconstruct runs the full chain on one event: overflow filter, calibration
// and position assignment, Doppler correction, sorting and add-back.
func (r *Reconstructor) Reconstruct(raw []RawHit, beta float64) ([]Hit, error) {
	singles, err := r.singles(raw, beta)
	if err != nil {
		return nil, err
	}
	return r.merger.Addback(singles), nil
}

// ReconstructEvent picks the beta for the event, fixed or from the beam, and
// keeps both the corrected singles and the add-back hits.
func (r *Reconstructor) ReconstructEvent(evt RawEvent) (Event, error) {
	beta := r.beta
	if r.settings.UseBeamBeta {
		beta = evt.Beam.Beta
		if err := ValidateBeta(beta); err != nil {
			badBeta := &InvalidBetaError{Beta: beta, PerEvent: r.settings.BadBetaPolicy == BadBetaDrop}
			return Event{}, fmt.Errorf("event %d: %w", evt.Number, badBeta)
		}
	}
	singles, err := r.singles(evt.Hits, beta)
	if err != nil {
		return Event{}, fmt.Errorf("event %d: %w", evt.Number, err)
	}
	return Event{
		Number:  evt.Number,
		Beta:    beta,
		Singles: singles,
		Addback: r.merger.Addback(singles),
		Beam:    evt.Beam,
		PPACs:   evt.PPACs,
	}, nil
}

func (r *Reconstructor) singles(raw []RawHit, beta float64) ([]Hit, error) {
	if err := ValidateBeta(beta); err != nil {
		return nil, err
	}
	hits, err := Unpack(raw)
	if err != nil {
		return nil, err
	}
	// Saturated hits are dropped before any crystal lookup.
	hits = FilterOverflow(hits, r.settings.ADCLow, r.settings.ADCHigh)
	if err := Calibrate(hits, r.table); err != nil {
		return nil, err
	}
	if err := SetPositions(hits, r.table); err != nil {
		return nil, err
	}
	k := Kinematics{
		Beta:      beta,
		Vertex:    r.settings.VertexVec(),
		Direction: r.settings.DirectionVec(),
	}
	if err := DopplerCorrect(hits, k); err != nil {
		return nil, err
	}
	return SortDescending(hits), nil
}
