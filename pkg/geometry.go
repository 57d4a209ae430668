package salvator

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Crystal is one row of the crystal table: the average first interaction
// point inside the crystal and its energy calibration.
type Crystal struct {
	ID     int
	Pos    r3.Vec
	Gain   float64
	Offset float64
}

// CrystalTable maps crystal identities to their positions. It is filled once
// and only read afterwards, so it can be shared by any number of workers.
type CrystalTable struct {
	crystals []Crystal
	loaded   []bool
}

func NewCrystalTable(n int) *CrystalTable {
	return &CrystalTable{
		crystals: make([]Crystal, n),
		loaded:   make([]bool, n),
	}
}

// Len returns the number of crystal slots, loaded or not.
func (t *CrystalTable) Len() int {
	return len(t.crystals)
}

func (t *CrystalTable) Set(c Crystal) error {
	if c.ID < 0 || c.ID >= len(t.crystals) {
		return &UnknownCrystalError{ID: c.ID, N: len(t.crystals)}
	}
	if t.loaded[c.ID] {
		return fmt.Errorf("crystal %d defined twice", c.ID)
	}
	t.crystals[c.ID] = c
	t.loaded[c.ID] = true
	return nil
}

func (t *CrystalTable) Crystal(id int) (Crystal, error) {
	if id < 0 || id >= len(t.crystals) || !t.loaded[id] {
		return Crystal{}, &UnknownCrystalError{ID: id, N: len(t.crystals)}
	}
	return t.crystals[id], nil
}

func (t *CrystalTable) PositionOf(id int) (r3.Vec, error) {
	c, err := t.Crystal(id)
	if err != nil {
		return r3.Vec{}, err
	}
	return c.Pos, nil
}

// Validate makes sure every crystal is loaded and none of them sits on the
// vertex, where the emission angle would be undefined.
func (t *CrystalTable) Validate(vertex r3.Vec) error {
	for id := range t.crystals {
		if !t.loaded[id] {
			return &UnknownCrystalError{ID: id, N: len(t.crystals)}
		}
		if r3.Norm(r3.Sub(t.crystals[id].Pos, vertex)) == 0 {
			return &DegenerateGeometryError{ID: id, Reason: "crystal position coincides with the vertex"}
		}
	}
	return nil
}

// ReadPositions parses a position table with one crystal per line:
//
//	id x y z [gain offset]
//
// Lines starting with # and blank lines are skipped. Gain and offset default
// to 1 and 0.
func ReadPositions(r io.Reader, n int) (*CrystalTable, error) {
	table := NewCrystalTable(n)
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 && len(fields) != 6 {
			return nil, fmt.Errorf("line %d: expected 4 or 6 columns, got %d", lineNumber, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad crystal id: %w", lineNumber, err)
		}
		values := make([]float64, len(fields)-1)
		for i, f := range fields[1:] {
			values[i], err = strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q: %w", lineNumber, f, err)
			}
		}
		crystal := Crystal{
			ID:   id,
			Pos:  r3.Vec{X: values[0], Y: values[1], Z: values[2]},
			Gain: 1,
		}
		if len(values) == 5 {
			crystal.Gain = values[3]
			crystal.Offset = values[4]
		}
		if err := table.Set(crystal); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading positions: %w", err)
	}
	return table, nil
}

func ReadPositionsFile(filename string, n int) (*CrystalTable, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()
	table, err := ReadPositions(file, n)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}
	return table, nil
}
