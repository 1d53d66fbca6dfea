// Package cube defines the read interface over the multidimensional raster
// dataset and an in-memory implementation of it.
//
// The engine only ever reads: a 2-D band slice at a case index, coordinate
// values, and the spatial coordinate axes. The storage backend behind the
// interface is swappable; renders hold no assumption beyond this contract.
package cube

import (
	"context"
	"fmt"
	"math"

	"github.com/eocis/cubetile/internal/model"
)

// Slice is one band at one case index on the dataset's native grid.
// Values are row-major with y varying slowest; NaN marks no-data.
type Slice struct {
	Width  int
	Height int
	Values []float64
}

// At returns the value at native-grid pixel (x, y). Out-of-grid pixels
// read as NaN so callers can sample without bounds bookkeeping.
func (s *Slice) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return math.NaN()
	}
	return s.Values[y*s.Width+x]
}

// Cube is the opaque read interface over the dataset.
type Cube interface {
	// Cases returns the length of the case dimension.
	Cases() int

	// HasBand reports whether a band variable exists in the dataset.
	HasBand(name string) bool

	// Coords returns the 1-D values of the named coordinate axis, in
	// storage order.
	Coords(name string) []float64

	// CoordinateValue returns the physical value of a dimension at an
	// index, e.g. the timestamp string of case 3.
	CoordinateValue(dim string, index int) (any, error)

	// Slice reads one band at one case index. May perform I/O.
	Slice(ctx context.Context, caseIndex int, band string) (*Slice, error)
}

// MemCube is an in-memory Cube backed by plain slices. It carries the whole
// dataset resident, which suits test fixtures and small demo scenes.
type MemCube struct {
	caseDim    string
	caseValues []any

	coords map[string][]float64

	// bands[name][caseIndex] is one resident slice
	bands map[string][]*Slice
}

func NewMemCube(caseDim string, caseValues []any, coords map[string][]float64) *MemCube {
	return &MemCube{
		caseDim:    caseDim,
		caseValues: caseValues,
		coords:     coords,
		bands:      map[string][]*Slice{},
	}
}

// AddBand registers one slice per case for a band. All slices must share
// the grid implied by the coordinate axes.
func (c *MemCube) AddBand(name string, slices []*Slice) {
	c.bands[name] = slices
}

func (c *MemCube) Cases() int { return len(c.caseValues) }

func (c *MemCube) HasBand(name string) bool {
	_, ok := c.bands[name]
	return ok
}

func (c *MemCube) Coords(name string) []float64 {
	return c.coords[name]
}

func (c *MemCube) CoordinateValue(dim string, index int) (any, error) {
	if dim == c.caseDim {
		if index < 0 || index >= len(c.caseValues) {
			return nil, fmt.Errorf("%w: %s[%d]", model.ErrIndexOutOfRange, dim, index)
		}
		return c.caseValues[index], nil
	}
	axis, ok := c.coords[dim]
	if !ok {
		return nil, fmt.Errorf("no coordinate %q", dim)
	}
	if index < 0 || index >= len(axis) {
		return nil, fmt.Errorf("%w: %s[%d]", model.ErrIndexOutOfRange, dim, index)
	}
	return axis[index], nil
}

func (c *MemCube) Slice(_ context.Context, caseIndex int, band string) (*Slice, error) {
	slices, ok := c.bands[band]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingBand, band)
	}
	if caseIndex < 0 || caseIndex >= len(slices) {
		return nil, fmt.Errorf("%w: %d", model.ErrIndexOutOfRange, caseIndex)
	}
	return slices[caseIndex], nil
}
