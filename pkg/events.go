package salvator

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NFocalPlanes is the number of focal planes with a particle identification.
const NFocalPlanes = 6

// RawHit is one crystal reading as it comes out of the event source.
type RawHit struct {
	ID      int
	ADC     int
	Time    float64
	TOffset float64
}

// Hit is a crystal reading after unpacking. Energy is the uncorrected energy,
// DCEnergy the Doppler-corrected one. Nadded counts the hits merged into this
// one by add-back, 1 for a single crystal.
type Hit struct {
	ID       int
	ADC      int
	Energy   float64
	DCEnergy float64
	Time     float64
	TOffset  float64
	Pos      r3.Vec
	Nadded   int
}

type Beam struct {
	Beta   float64
	AQ     [NFocalPlanes]float64
	CorrAQ [NFocalPlanes]float64
	Z      [NFocalPlanes]float64
}

type PPACHit struct {
	ID    int
	TsumX float64
	TsumY float64
}

type RawEvent struct {
	Number int64
	Hits   []RawHit
	Beam   Beam
	PPACs  []PPACHit
}

// Event is a reconstructed event. Singles are the filtered, Doppler-corrected
// hits in descending energy order, Addback the reduced collection.
type Event struct {
	Number  int64
	Beta    float64
	Singles []Hit
	Addback []Hit
	Beam    Beam
	PPACs   []PPACHit
}

// Unpack checks the raw hits and converts them to hits. Energies are set by
// Calibrate once the overflow filter has run.
func Unpack(raw []RawHit) ([]Hit, error) {
	hits := make([]Hit, 0, len(raw))
	for i, r := range raw {
		if r.ID < 0 {
			return nil, &MalformedHitError{Index: i, Field: "id"}
		}
		if math.IsNaN(r.Time) || math.IsInf(r.Time, 0) {
			return nil, &MalformedHitError{Index: i, Field: "time"}
		}
		if math.IsNaN(r.TOffset) || math.IsInf(r.TOffset, 0) {
			return nil, &MalformedHitError{Index: i, Field: "toffset"}
		}
		hits = append(hits, Hit{
			ID:      r.ID,
			ADC:     r.ADC,
			Time:    r.Time,
			TOffset: r.TOffset,
			Nadded:  1,
		})
	}
	return hits, nil
}

// Calibrate applies the gain and offset of each hit's crystal.
func Calibrate(hits []Hit, table *CrystalTable) error {
	for i := range hits {
		crystal, err := table.Crystal(hits[i].ID)
		if err != nil {
			return err
		}
		hits[i].Energy = crystal.Gain*float64(hits[i].ADC) + crystal.Offset
	}
	return nil
}

// SumDCEnergy returns the total Doppler-corrected energy of hits.
func SumDCEnergy(hits []Hit) float64 {
	sum := 0.0
	for _, h := range hits {
		sum += h.DCEnergy
	}
	return sum
}
