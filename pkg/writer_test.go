package salvator

import (
	"path/filepath"
	"testing"

	hdf5 "github.com/jmbenlloch/go-hdf5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableRows(t *testing.T, f *hdf5.File, name string) uint {
	t.Helper()
	dset, err := f.OpenDataset(name)
	require.NoError(t, err)
	defer dset.Close()
	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	require.NoError(t, err)
	require.Len(t, dims, 1)
	return dims[0]
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hits.h5")
	w, err := NewWriter(path, "0b7d6c1e-run", 42, 4)
	require.NoError(t, err)

	first := testEvent()
	empty := &Event{Number: 6, Beta: 0.5}
	third := testEvent()
	third.Number = 7
	third.Addback = append(third.Addback, Hit{ID: 100, DCEnergy: 90, Nadded: 1})

	for _, evt := range []*Event{first, empty, third} {
		require.NoError(t, w.WriteEvent(evt))
	}
	assert.Equal(t, 3, w.EvtCounter)
	assert.Equal(t, 3, w.HitCounter)
	require.NoError(t, w.Close())

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, uint(1), tableRows(t, f, "Run/runInfo"))
	assert.Equal(t, uint(3), tableRows(t, f, "Reco/events"))
	assert.Equal(t, uint(3), tableRows(t, f, "Reco/hits"))
}

func TestWriterBadPath(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "missing", "hits.h5"), "run", 1, 0)
	var open *ErrOpenFile
	assert.ErrorAs(t, err, &open)
}
