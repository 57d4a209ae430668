package salvator

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Writer stores reconstructed events in an HDF5 file: one row per event in
// Reco/events and one row per add-back hit in Reco/hits.
type Writer struct {
	File         *hdf5.File
	Filename     string
	RunGroup     *hdf5.Group
	RecoGroup    *hdf5.Group
	RunInfoTable *hdf5.Dataset
	EventTable   *hdf5.Dataset
	HitTable     *hdf5.Dataset
	EvtCounter   int
	HitCounter   int
}

func NewWriter(filename string, runID string, runNumber int, compression int) (*Writer, error) {
	logger.Info(fmt.Sprintf("Creating file: %s", filename), "writer")

	var err error
	writer := &Writer{Filename: filename}
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		writer.Close()
		return nil, err
	}
	if writer.RecoGroup, err = createGroup(writer.File, "Reco"); err != nil {
		writer.Close()
		return nil, err
	}
	if writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compression); err != nil {
		writer.Close()
		return nil, err
	}
	if writer.EventTable, err = createTable(writer.RecoGroup, "events", EventHDF5{}, compression); err != nil {
		writer.Close()
		return nil, err
	}
	if writer.HitTable, err = createTable(writer.RecoGroup, "hits", HitHDF5{}, compression); err != nil {
		writer.Close()
		return nil, err
	}

	runInfo := RunInfoHDF5{
		run_id:     convertToHdf5String(runID),
		run_number: int32(runNumber),
	}
	if err := writeEntryToTable(writer.RunInfoTable, runInfo, 0); err != nil {
		writer.Close()
		return nil, fmt.Errorf("error writing run info: %w", err)
	}
	return writer, nil
}

func (w *Writer) WriteEvent(event *Event) error {
	evtNumber := int32(event.Number)
	entry := EventHDF5{
		evt_number: evtNumber,
		beta:       event.Beta,
		mult:       int32(len(event.Singles)),
		mult_ab:    int32(len(event.Addback)),
	}
	if err := writeEntryToTable(w.EventTable, entry, w.EvtCounter); err != nil {
		return fmt.Errorf("error writing event %d: %w", event.Number, err)
	}
	w.EvtCounter++

	// The array MUST be allocated at creation, if not, HDF5 will panic
	// doing appends will not work
	hits := make([]HitHDF5, len(event.Addback))
	for i, hit := range event.Addback {
		hits[i] = HitHDF5{
			evt_number: evtNumber,
			crystal_id: int32(hit.ID),
			energy:     hit.Energy,
			dc_energy:  hit.DCEnergy,
			time:       hit.Time,
			x:          hit.Pos.X,
			y:          hit.Pos.Y,
			z:          hit.Pos.Z,
			nadded:     int32(hit.Nadded),
		}
	}
	if err := writeArrayToTable(w.HitTable, &hits, w.HitCounter); err != nil {
		return fmt.Errorf("error writing hits of event %d: %w", event.Number, err)
	}
	w.HitCounter += len(hits)
	return nil
}

func (w *Writer) Close() error {
	logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "writer")
	var errs []error

	if w.HitTable != nil {
		if err := w.HitTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing hit table: %w", err))
		}
	}
	if w.EventTable != nil {
		if err := w.EventTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing event table: %w", err))
		}
	}
	if w.RunInfoTable != nil {
		if err := w.RunInfoTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run info table: %w", err))
		}
	}
	if w.RecoGroup != nil {
		if err := w.RecoGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing reco group: %w", err))
		}
	}
	if w.RunGroup != nil {
		if err := w.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
