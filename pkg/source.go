package salvator

import (
	"errors"
	"fmt"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"
)

// ErrStop can be returned from a ForEach callback to end the iteration
// without reporting an error.
var ErrStop = errors.New("stop reading events")

// EventSource produces raw events one at a time.
type EventSource interface {
	ForEach(fn func(RawEvent) error) error
	NEntries() int64
}

// MemorySource serves events kept in memory.
type MemorySource []RawEvent

func (m MemorySource) NEntries() int64 {
	return int64(len(m))
}

func (m MemorySource) ForEach(fn func(RawEvent) error) error {
	for _, evt := range m {
		if err := fn(evt); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Collect reads every event of src into memory.
func Collect(src EventSource) (MemorySource, error) {
	events := make(MemorySource, 0, src.NEntries())
	err := src.ForEach(func(evt RawEvent) error {
		events = append(events, evt)
		return nil
	})
	return events, err
}

// TreeSource reads events from a chain of ROOT files holding the same tree.
type TreeSource struct {
	Files     []string
	TreeName  string
	Skip      int64
	MaxEvents int64
	entries   []int64
}

// NewTreeSource opens every file once to count its entries.
func NewTreeSource(files []string, treeName string, skip, maxEvents int64) (*TreeSource, error) {
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	s := &TreeSource{
		Files:     files,
		TreeName:  treeName,
		Skip:      skip,
		MaxEvents: maxEvents,
		entries:   make([]int64, len(files)),
	}
	for i, fname := range files {
		err := s.withTree(fname, func(t rtree.Tree) error {
			s.entries[i] = t.Entries()
			return nil
		})
		if err != nil {
			return nil, err
		}
		logger.Info(fmt.Sprintf("%s: %d entries in tree %s", fname, s.entries[i], treeName), "source")
	}
	return s, nil
}

// NEntries returns the number of events ForEach will deliver.
func (s *TreeSource) NEntries() int64 {
	var total int64
	for _, n := range s.entries {
		total += n
	}
	total -= s.Skip
	if total < 0 {
		total = 0
	}
	if s.MaxEvents > 0 && total > s.MaxEvents {
		total = s.MaxEvents
	}
	return total
}

func (s *TreeSource) withTree(fname string, fn func(rtree.Tree) error) error {
	f, err := groot.Open(fname)
	if err != nil {
		return &ErrOpenFile{Filename: fname, Err: err}
	}
	defer f.Close()

	obj, err := riofs.Dir(f).Get(s.TreeName)
	if err != nil {
		return fmt.Errorf("could not find tree %s in file %s: %w", s.TreeName, fname, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return fmt.Errorf("object %s in file %s is not a tree", s.TreeName, fname)
	}
	return fn(tree)
}

type treeRecord struct {
	mult    int32
	ids     []int32
	adcs    []int32
	times   []float64
	toffset []float64
	beta    float64
	aoq     [NFocalPlanes]float64
	aoqc    [NFocalPlanes]float64
	z       [NFocalPlanes]float64
	nppac   int32
	ppacIDs []int32
	tsumx   []float64
	tsumy   []float64
}

func (rec *treeRecord) readVars() []rtree.ReadVar {
	return []rtree.ReadVar{
		{Name: "dali_mult", Value: &rec.mult},
		{Name: "dali_id", Value: &rec.ids, Count: "dali_mult"},
		{Name: "dali_adc", Value: &rec.adcs, Count: "dali_mult"},
		{Name: "dali_time", Value: &rec.times, Count: "dali_mult"},
		{Name: "dali_toffset", Value: &rec.toffset, Count: "dali_mult"},
		{Name: "beam_beta", Value: &rec.beta},
		{Name: "beam_aoq", Value: &rec.aoq},
		{Name: "beam_aoqc", Value: &rec.aoqc},
		{Name: "beam_z", Value: &rec.z},
		{Name: "ppac_n", Value: &rec.nppac},
		{Name: "ppac_id", Value: &rec.ppacIDs, Count: "ppac_n"},
		{Name: "ppac_tsumx", Value: &rec.tsumx, Count: "ppac_n"},
		{Name: "ppac_tsumy", Value: &rec.tsumy, Count: "ppac_n"},
	}
}

// event copies the current record. The reader reuses its buffers between
// entries, so nothing from rec may leak into the returned event.
func (rec *treeRecord) event(number int64) RawEvent {
	evt := RawEvent{
		Number: number,
		Hits:   make([]RawHit, len(rec.ids)),
		PPACs:  make([]PPACHit, len(rec.ppacIDs)),
		Beam: Beam{
			Beta:   rec.beta,
			AQ:     rec.aoq,
			CorrAQ: rec.aoqc,
			Z:      rec.z,
		},
	}
	for i := range rec.ids {
		evt.Hits[i] = RawHit{
			ID:      int(rec.ids[i]),
			ADC:     int(rec.adcs[i]),
			Time:    rec.times[i],
			TOffset: rec.toffset[i],
		}
	}
	for i := range rec.ppacIDs {
		evt.PPACs[i] = PPACHit{
			ID:    int(rec.ppacIDs[i]),
			TsumX: rec.tsumx[i],
			TsumY: rec.tsumy[i],
		}
	}
	return evt
}

func (s *TreeSource) ForEach(fn func(RawEvent) error) error {
	var offset int64
	delivered := int64(0)
	for i, fname := range s.Files {
		n := s.entries[i]
		begin := s.Skip - offset
		if begin < 0 {
			begin = 0
		}
		end := n
		if s.MaxEvents > 0 && end-begin > s.MaxEvents-delivered {
			end = begin + s.MaxEvents - delivered
		}
		offset += n
		if begin >= end {
			continue
		}

		var rec treeRecord
		err := s.withTree(fname, func(t rtree.Tree) error {
			r, err := rtree.NewReader(t, rec.readVars(), rtree.WithRange(begin, end))
			if err != nil {
				return fmt.Errorf("could not create reader for %s: %w", fname, err)
			}
			defer r.Close()
			base := offset - n
			return r.Read(func(ctx rtree.RCtx) error {
				if len(rec.adcs) != len(rec.ids) || len(rec.times) != len(rec.ids) || len(rec.toffset) != len(rec.ids) {
					return fmt.Errorf("entry %d of %s: inconsistent hit branches", ctx.Entry, fname)
				}
				delivered++
				return fn(rec.event(base + ctx.Entry))
			})
		})
		if errors.Is(err, ErrStop) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
