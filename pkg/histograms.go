package salvator

import (
	"errors"
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/hbook"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Sink accepts one- and two-dimensional samples identified by name.
type Sink interface {
	Fill(id string, v float64)
	Fill2(id string, x, y float64)
}

// Histograms is a Sink backed by hbook histograms. It is not safe for
// concurrent use.
type Histograms struct {
	h1      map[string]*hbook.H1D
	h2      map[string]*hbook.H2D
	unknown map[string]int
}

// EnergyGate is the energy above which hits enter the gated time spectrum.
const EnergyGate = 500.0

// NewHistograms books the standard DALI histograms.
func NewHistograms(nCrystals, nPPACs int) *Histograms {
	h := &Histograms{
		h1:      make(map[string]*hbook.H1D),
		h2:      make(map[string]*hbook.H2D),
		unknown: make(map[string]int),
	}
	ids := float64(nCrystals)
	ppacs := float64(nPPACs)

	//ppacs
	h.Book2("tsumx_id", nPPACs, 0, ppacs, 2500, 0, 250)
	h.Book2("tsumy_id", nPPACs, 0, ppacs, 2500, 0, 250)
	for p := 0; p < nPPACs; p++ {
		h.Book1(fmt.Sprintf("tsumx_%d", p), 1000, -200, 800)
		h.Book1(fmt.Sprintf("tsumy_%d", p), 1000, -200, 800)
	}

	//dali
	h.Book2("adc_id", nCrystals, 0, ids, 5000, 0, 5000)
	h.Book2("en_id", nCrystals, 0, ids, 500, 0, 2000)
	h.Book2("enDC_id", nCrystals, 0, ids, 500, 0, 2000)
	h.Book2("time_id", nCrystals, 0, ids, 2000, -2000, 0)
	h.Book2("time_id_g", nCrystals, 0, ids, 2000, -2000, 0)
	h.Book2("toffset_id", nCrystals, 0, ids, 1000, -200, 800)
	h.Book1("mult", 50, 0, 50)
	h.Book1("enDC", 4000, 0, 4000)

	//addback
	h.Book1("multAB", 50, 0, 50)
	h.Book1("enDC_AB", 4000, 0, 4000)
	h.Book2("enDC_AB_id", nCrystals, 0, ids, 500, 0, 2000)
	h.Book1("nadded", 10, 0, 10)

	//beam
	h.Book1("beta", 1000, 0, 1)
	for f := 0; f < NFocalPlanes; f++ {
		h.Book2(fmt.Sprintf("z_vs_aoq_%d", f), 1000, 1.8, 2.2, 1000, 30, 40)
		h.Book2(fmt.Sprintf("z_vs_aoqc_%d", f), 1000, 1.8, 2.2, 1000, 30, 40)
	}
	return h
}

func (h *Histograms) Book1(name string, n int, xmin, xmax float64) {
	hist := hbook.NewH1D(n, xmin, xmax)
	hist.Annotation()["name"] = name
	hist.Annotation()["title"] = name
	h.h1[name] = hist
}

func (h *Histograms) Book2(name string, nx int, xmin, xmax float64, ny int, ymin, ymax float64) {
	hist := hbook.NewH2D(nx, xmin, xmax, ny, ymin, ymax)
	hist.Annotation()["name"] = name
	hist.Annotation()["title"] = name
	h.h2[name] = hist
}

func (h *Histograms) Fill(id string, v float64) {
	hist, ok := h.h1[id]
	if !ok {
		h.unknown[id]++
		return
	}
	hist.Fill(v, 1)
}

func (h *Histograms) Fill2(id string, x, y float64) {
	hist, ok := h.h2[id]
	if !ok {
		h.unknown[id]++
		return
	}
	hist.Fill(x, y, 1)
}

func (h *Histograms) H1(name string) *hbook.H1D {
	return h.h1[name]
}

func (h *Histograms) H2(name string) *hbook.H2D {
	return h.h2[name]
}

// Unknown returns how many samples were sent to histograms that were never
// booked, by name.
func (h *Histograms) Unknown() map[string]int {
	return h.unknown
}

// Write stores every histogram in a new ROOT file, sorted by name.
func (h *Histograms) Write(filename string) error {
	f, err := groot.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}

	var errs []error
	names := maps.Keys(h.h1)
	slices.Sort(names)
	for _, name := range names {
		if err := f.Put(name, rhist.NewH1DFrom(h.h1[name])); err != nil {
			errs = append(errs, fmt.Errorf("error writing histogram %s: %w", name, err))
		}
	}
	names = maps.Keys(h.h2)
	slices.Sort(names)
	for _, name := range names {
		if err := f.Put(name, rhist.NewH2DFrom(h.h2[name])); err != nil {
			errs = append(errs, fmt.Errorf("error writing histogram %s: %w", name, err))
		}
	}
	if err := f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file %s: %w", filename, err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// FillEvent sends the samples of one reconstructed event to sink.
func FillEvent(sink Sink, evt *Event) {
	for _, p := range evt.PPACs {
		sink.Fill2("tsumx_id", float64(p.ID), p.TsumX)
		sink.Fill2("tsumy_id", float64(p.ID), p.TsumY)
		sink.Fill(fmt.Sprintf("tsumx_%d", p.ID), p.TsumX)
		sink.Fill(fmt.Sprintf("tsumy_%d", p.ID), p.TsumY)
	}

	sink.Fill("mult", float64(len(evt.Singles)))
	for _, hit := range evt.Singles {
		id := float64(hit.ID)
		sink.Fill2("adc_id", id, float64(hit.ADC))
		sink.Fill2("en_id", id, hit.Energy)
		sink.Fill2("enDC_id", id, hit.DCEnergy)
		sink.Fill2("time_id", id, hit.Time)
		if hit.Energy > EnergyGate {
			sink.Fill2("time_id_g", id, hit.Time)
		}
		sink.Fill2("toffset_id", id, hit.TOffset)
		sink.Fill("enDC", hit.DCEnergy)
	}

	sink.Fill("multAB", float64(len(evt.Addback)))
	for _, hit := range evt.Addback {
		sink.Fill("enDC_AB", hit.DCEnergy)
		sink.Fill2("enDC_AB_id", float64(hit.ID), hit.DCEnergy)
		sink.Fill("nadded", float64(hit.Nadded))
	}

	sink.Fill("beta", evt.Beta)
	for f := 0; f < NFocalPlanes; f++ {
		sink.Fill2(fmt.Sprintf("z_vs_aoq_%d", f), evt.Beam.AQ[f], evt.Beam.Z[f])
		sink.Fill2(fmt.Sprintf("z_vs_aoqc_%d", f), evt.Beam.CorrAQ[f], evt.Beam.Z[f])
	}
}
