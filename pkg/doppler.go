package salvator

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kinematics describes the emitting source: its velocity as a fraction of c,
// the emission point and the direction of flight.
type Kinematics struct {
	Beta      float64
	Vertex    r3.Vec
	Direction r3.Vec
}

func ValidateBeta(beta float64) error {
	if math.IsNaN(beta) || beta < 0 || beta >= 1 {
		return &InvalidBetaError{Beta: beta}
	}
	return nil
}

// DopplerFactor returns gamma*(1 - beta*cos(theta)).
func DopplerFactor(beta, cosTheta float64) float64 {
	if beta == 0 {
		return 1
	}
	gamma := 1 / math.Sqrt(1-beta*beta)
	return gamma * (1 - beta*cosTheta)
}

// SetPositions assigns each hit the interaction point of its crystal.
func SetPositions(hits []Hit, table *CrystalTable) error {
	for i := range hits {
		pos, err := table.PositionOf(hits[i].ID)
		if err != nil {
			return err
		}
		hits[i].Pos = pos
	}
	return nil
}

// DopplerCorrect overwrites DCEnergy of every hit with the energy in the rest
// frame of the source. Energy and ADC are left untouched.
func DopplerCorrect(hits []Hit, k Kinematics) error {
	if err := ValidateBeta(k.Beta); err != nil {
		return err
	}
	dirNorm := r3.Norm(k.Direction)
	if dirNorm == 0 {
		return &DegenerateGeometryError{ID: -1, Reason: "beam direction has zero length"}
	}
	for i := range hits {
		d := r3.Sub(hits[i].Pos, k.Vertex)
		norm := r3.Norm(d)
		if norm == 0 {
			return &DegenerateGeometryError{ID: hits[i].ID, Reason: "interaction point coincides with the vertex"}
		}
		cosTheta := r3.Dot(d, k.Direction) / (norm * dirNorm)
		hits[i].DCEnergy = hits[i].Energy * DopplerFactor(k.Beta, cosTheta)
	}
	return nil
}
