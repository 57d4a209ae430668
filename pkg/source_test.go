package salvator

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

// writeTestTree stores n events in tree "tr". Event i has i%3 hits on
// crystals i, i+1, ... with ADC 100*(i+1) and one PPAC.
func writeTestTree(t *testing.T, path string, first, n int) {
	t.Helper()
	f, err := groot.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var rec treeRecord
	wvars := []rtree.WriteVar{
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
	w, err := rtree.NewWriter(f, "tr", wvars)
	require.NoError(t, err)

	for i := first; i < first+n; i++ {
		mult := i % 3
		rec.mult = int32(mult)
		rec.ids = rec.ids[:0]
		rec.adcs = rec.adcs[:0]
		rec.times = rec.times[:0]
		rec.toffset = rec.toffset[:0]
		for h := 0; h < mult; h++ {
			rec.ids = append(rec.ids, int32(i+h))
			rec.adcs = append(rec.adcs, int32(100*(i+1)))
			rec.times = append(rec.times, -400)
			rec.toffset = append(rec.toffset, 12)
		}
		rec.beta = 0.5 + 0.01*float64(i)
		rec.aoq[2] = 2.5
		rec.z[2] = 34
		rec.nppac = 1
		rec.ppacIDs = []int32{int32(i % 4)}
		rec.tsumx = []float64{float64(i)}
		rec.tsumy = []float64{float64(2 * i)}
		_, err := w.Write()
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestTreeSource(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "run1.root")
	second := filepath.Join(dir, "run2.root")
	writeTestTree(t, first, 0, 5)
	writeTestTree(t, second, 5, 4)

	t.Run("reads every event of the chain in order", func(t *testing.T) {
		src, err := NewTreeSource([]string{first, second}, "tr", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(9), src.NEntries())

		events, err := Collect(src)

		require.NoError(t, err)
		require.Len(t, events, 9)
		for i, evt := range events {
			assert.Equal(t, int64(i), evt.Number)
			assert.Len(t, evt.Hits, i%3)
			assert.InDelta(t, 0.5+0.01*float64(i), evt.Beam.Beta, 1e-12)
		}
		assert.Equal(t, []RawHit{{ID: 8, ADC: 900, Time: -400, TOffset: 12}, {ID: 9, ADC: 900, Time: -400, TOffset: 12}}, events[8].Hits)
		assert.Equal(t, 34.0, events[3].Beam.Z[2])
		assert.Equal(t, []PPACHit{{ID: 3, TsumX: 7, TsumY: 14}}, events[7].PPACs)
	})

	t.Run("skip and max events span files", func(t *testing.T) {
		src, err := NewTreeSource([]string{first, second}, "tr", 3, 4)
		require.NoError(t, err)
		assert.Equal(t, int64(4), src.NEntries())

		events, err := Collect(src)

		require.NoError(t, err)
		numbers := []int64{}
		for _, evt := range events {
			numbers = append(numbers, evt.Number)
		}
		assert.Equal(t, []int64{3, 4, 5, 6}, numbers)
	})

	t.Run("events stay valid after the reader moves on", func(t *testing.T) {
		src, err := NewTreeSource([]string{first}, "tr", 0, 0)
		require.NoError(t, err)

		events, err := Collect(src)

		require.NoError(t, err)
		assert.Equal(t, 200, events[1].Hits[0].ADC)
		assert.Equal(t, 500, events[4].Hits[0].ADC)
	})

	t.Run("stops early without error", func(t *testing.T) {
		src, err := NewTreeSource([]string{first, second}, "tr", 0, 0)
		require.NoError(t, err)

		seen := 0
		err = src.ForEach(func(RawEvent) error {
			seen++
			if seen == 6 {
				return ErrStop
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 6, seen)
	})

	t.Run("missing tree and missing file", func(t *testing.T) {
		_, err := NewTreeSource([]string{first}, "nope", 0, 0)
		assert.Error(t, err)

		_, err = NewTreeSource([]string{filepath.Join(dir, "missing.root")}, "tr", 0, 0)
		var open *ErrOpenFile
		assert.ErrorAs(t, err, &open)

		_, err = NewTreeSource(nil, "tr", 0, 0)
		assert.Error(t, err)
	})
}

func TestMemorySource(t *testing.T) {
	src := MemorySource{{Number: 1}, {Number: 2}, {Number: 3}}
	assert.Equal(t, int64(3), src.NEntries())

	t.Run("stops on ErrStop", func(t *testing.T) {
		seen := []int64{}
		err := src.ForEach(func(evt RawEvent) error {
			seen = append(seen, evt.Number)
			if evt.Number == 2 {
				return ErrStop
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, seen)
	})

	t.Run("passes other errors on", func(t *testing.T) {
		boom := errors.New("boom")
		err := src.ForEach(func(RawEvent) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("collects a copy", func(t *testing.T) {
		events, err := Collect(src)
		require.NoError(t, err)
		assert.Equal(t, src, events)
	})
}
