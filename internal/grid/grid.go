// Package grid maps XYZ tile addresses onto the dataset's native pixel grid.
//
// The pyramid is anchored at the dataset extent: the zoom-0 tile covers the
// extent's larger axis from its top-left corner, and every zoom step halves
// the tile edge. All mappings are computed directly from (z, x, y) and the
// fixed origin/resolution so zoom levels never accumulate drift.
package grid

import (
	"fmt"
	"math"

	"github.com/eocis/cubetile/internal/model"
)

type Grid struct {
	xs, ys []float64 // pixel-centre coordinate axes, storage order
	stepX  float64   // signed spacing, xs[i] = xs[0] + i*stepX
	stepY  float64

	ext   model.BBox
	edge0 float64 // zoom-0 tile edge in CRS units
	spec  model.ImageSpec
	crs   string
}

// New derives the pyramid from the spatial coordinate axes. Axes hold pixel
// centres; the extent pads each side by half a pixel, matching the area the
// outermost pixels cover.
func New(xs, ys []float64, spec model.ImageSpec, crs string) (*Grid, error) {
	if len(xs) < 2 || len(ys) < 2 {
		return nil, fmt.Errorf("grid: coordinate axes need at least 2 entries (x=%d y=%d)", len(xs), len(ys))
	}
	if spec.GridWidth <= 0 {
		return nil, fmt.Errorf("grid: grid-width must be positive, got %d", spec.GridWidth)
	}
	if spec.MaxZoom < 0 {
		return nil, fmt.Errorf("grid: max-zoom must be non-negative, got %d", spec.MaxZoom)
	}

	stepX := xs[1] - xs[0]
	stepY := ys[1] - ys[0]
	if stepX == 0 || stepY == 0 {
		return nil, fmt.Errorf("grid: degenerate coordinate spacing")
	}

	ext := model.BBox{
		XMin: math.Min(xs[0], xs[len(xs)-1]) - math.Abs(stepX)/2,
		XMax: math.Max(xs[0], xs[len(xs)-1]) + math.Abs(stepX)/2,
		YMin: math.Min(ys[0], ys[len(ys)-1]) - math.Abs(stepY)/2,
		YMax: math.Max(ys[0], ys[len(ys)-1]) + math.Abs(stepY)/2,
	}

	return &Grid{
		xs:    xs,
		ys:    ys,
		stepX: stepX,
		stepY: stepY,
		ext:   ext,
		edge0: math.Max(ext.Width(), ext.Height()),
		spec:  spec,
		crs:   crs,
	}, nil
}

func (g *Grid) Extent() model.BBox { return g.ext }
func (g *Grid) CRS() string        { return g.crs }
func (g *Grid) Spec() model.ImageSpec {
	return g.spec
}

// TileBBox returns the CRS bounding box of tile (z, x, y). Tile y grows
// southward from the extent's top edge, tile x eastward from its left edge.
func (g *Grid) TileBBox(z, x, y int) (model.BBox, error) {
	if z < 0 || z > g.spec.MaxZoom {
		return model.BBox{}, fmt.Errorf("%w: z=%d max=%d", model.ErrZoomOutOfRange, z, g.spec.MaxZoom)
	}
	edge := g.edge0 / float64(int64(1)<<uint(z))
	xmin := g.ext.XMin + float64(x)*edge
	ymax := g.ext.YMax - float64(y)*edge
	return model.BBox{XMin: xmin, YMin: ymax - edge, XMax: xmin + edge, YMax: ymax}, nil
}

// Sampler maps tile pixels of one bbox onto native grid indices.
type Sampler struct {
	bbox model.BBox
	gw   int
	g    *Grid
}

// Sampler prepares the nearest-neighbour mapping from the tile's pixels to
// the dataset grid.
func (g *Grid) Sampler(b model.BBox) *Sampler {
	return &Sampler{bbox: b, gw: g.spec.GridWidth, g: g}
}

// Native returns the native grid indices under tile pixel (i, j), with j
// counted from the tile's top row. Pixels outside the dataset map to
// (-1, -1).
func (s *Sampler) Native(i, j int) (int, int) {
	crsX := s.bbox.XMin + (float64(i)+0.5)*s.bbox.Width()/float64(s.gw)
	crsY := s.bbox.YMax - (float64(j)+0.5)*s.bbox.Height()/float64(s.gw)

	// signed steps make ascending and descending axes one formula
	col := int(math.Round((crsX - s.g.xs[0]) / s.g.stepX))
	row := int(math.Round((crsY - s.g.ys[0]) / s.g.stepY))
	if col < 0 || col >= len(s.g.xs) || row < 0 || row >= len(s.g.ys) {
		return -1, -1
	}
	return col, row
}
