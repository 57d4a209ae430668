package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	salvator "github.com/wimmer-k/Salvator/pkg"
	"gonum.org/v1/gonum/stat"
)

// ScanPoint is the add-back peak seen at one beta.
type ScanPoint struct {
	Beta    float64
	Entries int
	Mean    float64
	StdDev  float64
}

// parseBetas reads "start:stop:step" and returns every beta in the closed
// range.
func parseBetas(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("betas %q: expected start:stop:step", s)
	}
	var values [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("betas %q: %w", s, err)
		}
		values[i] = v
	}
	start, stop, step := values[0], values[1], values[2]
	if step <= 0 || stop < start {
		return nil, fmt.Errorf("betas %q: need step > 0 and stop >= start", s)
	}

	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	betas := make([]float64, n)
	for i := range betas {
		betas[i] = start + float64(i)*step
	}
	return betas, nil
}

// scanPoint reconstructs every event at the current beta of reco and
// measures the add-back energies inside [emin, emax]. Events that fail are
// skipped, a fatal error stops the scan.
func scanPoint(reco *salvator.Reconstructor, events salvator.MemorySource, emin, emax float64) (ScanPoint, error) {
	point := ScanPoint{Beta: reco.Beta()}
	energies := make([]float64, 0, len(events))
	for _, evt := range events {
		hits, err := reco.Reconstruct(evt.Hits, reco.Beta())
		if err != nil {
			if salvator.IsFatal(err) {
				return point, fmt.Errorf("event %d: %w", evt.Number, err)
			}
			continue
		}
		for _, h := range hits {
			if h.DCEnergy >= emin && h.DCEnergy <= emax {
				energies = append(energies, h.DCEnergy)
			}
		}
	}
	point.Entries = len(energies)
	if len(energies) > 1 {
		point.Mean, point.StdDev = stat.MeanStdDev(energies, nil)
	}
	return point, nil
}

func scan(reco *salvator.Reconstructor, events salvator.MemorySource, betas []float64, emin, emax float64) ([]ScanPoint, error) {
	points := make([]ScanPoint, 0, len(betas))
	for _, beta := range betas {
		if err := reco.SetBeta(beta); err != nil {
			return points, err
		}
		point, err := scanPoint(reco, events, emin, emax)
		if err != nil {
			return points, err
		}
		if VerbosityLevel > 0 {
			logger.Info(fmt.Sprintf("beta %.4f: %d entries, mean %.2f, sigma %.2f",
				point.Beta, point.Entries, point.Mean, point.StdDev), "scan")
		}
		points = append(points, point)
	}
	return points, nil
}

// narrowest returns the point with the smallest peak width. Points with fewer
// than two entries have no width and are ignored.
func narrowest(points []ScanPoint) (ScanPoint, bool) {
	var best ScanPoint
	found := false
	for _, p := range points {
		if p.Entries < 2 {
			continue
		}
		if !found || p.StdDev < best.StdDev {
			best = p
			found = true
		}
	}
	return best, found
}
