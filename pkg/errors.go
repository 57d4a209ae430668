package salvator

import (
	"errors"
	"fmt"
)

// UnknownCrystalError is returned when a crystal identity has no entry in the
// crystal table. It means the position table is broken and is fatal for the run.
type UnknownCrystalError struct {
	ID int
	N  int
}

func (e *UnknownCrystalError) Error() string {
	return fmt.Sprintf("unknown crystal %d (table holds %d crystals)", e.ID, e.N)
}

// InvalidBetaError reports a beta outside [0,1). PerEvent marks a beta taken
// from the beam reconstruction of a single event under the "drop" policy.
type InvalidBetaError struct {
	Beta     float64
	PerEvent bool
}

func (e *InvalidBetaError) Error() string {
	if e.PerEvent {
		return fmt.Sprintf("unphysical beam beta %g for this event", e.Beta)
	}
	return fmt.Sprintf("invalid beta %g, must be in [0,1)", e.Beta)
}

// MalformedHitError reports a raw hit with a missing or unusable field.
type MalformedHitError struct {
	Index int
	Field string
}

func (e *MalformedHitError) Error() string {
	return fmt.Sprintf("malformed hit %d: bad %s", e.Index, e.Field)
}

// DegenerateGeometryError is returned when the emission angle of a hit cannot
// be computed, either because the crystal sits on the vertex or the beam
// direction has zero length.
type DegenerateGeometryError struct {
	ID     int
	Reason string
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate geometry for crystal %d: %s", e.ID, e.Reason)
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Reason)
}

// ErrOpenFile represents an error when opening a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// IsFatal tells whether err must abort the whole run. Malformed hits and
// per-event beam betas only cost the current event; anything else, including
// errors this package does not know about, is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var malformed *MalformedHitError
	if errors.As(err, &malformed) {
		return false
	}
	var beta *InvalidBetaError
	if errors.As(err, &beta) {
		return !beta.PerEvent
	}
	return true
}
