// Package model holds the shared value types of the tile engine.
package model

import "fmt"

// LayerType tags the closed set of layer variants understood by the
// renderer. The set is fixed by the layer document schema.
type LayerType string

const (
	LayerMask   LayerType = "mask"
	LayerSingle LayerType = "single"
	LayerRGB    LayerType = "rgb"
	LayerWMS    LayerType = "wms"
)

// RGB is an opaque colour triple.
type RGB struct {
	R, G, B uint8
}

// Range is a declared numeric data range.
type Range struct {
	Min float64
	Max float64
}

// Layer is one entry of the layer document. Type selects the variant;
// only the fields of that variant are meaningful.
type Layer struct {
	ID    string
	Label string
	Type  LayerType

	// mask and single
	Band string

	// mask: bit pattern tested against the QA band, and the fill colour.
	// Mask == 0 means any non-zero QA value flags the pixel.
	Mask   uint32
	Colour RGB

	// single
	MinValue  float64
	MaxValue  float64
	Colormap  string
	DataLabel string // optional ${...} template for pixel readouts

	// rgb: band names plus optional declared stretch ranges. A nil range
	// means stretch from the slice's own finite min/max.
	RedBand    string
	GreenBand  string
	BlueBand   string
	RedRange   *Range
	GreenRange *Range
	BlueRange  *Range

	// wms
	URL   string
	Scale int
}

// ImageSpec fixes the tile geometry for the whole document.
type ImageSpec struct {
	GridWidth int // tile pixel edge length
	MaxZoom   int // inclusive upper bound on zoom level
}

// BBox is an axis-aligned bounding box in dataset CRS units.
type BBox struct {
	XMin, YMin, XMax, YMax float64
}

func (b BBox) Width() float64  { return b.XMax - b.XMin }
func (b BBox) Height() float64 { return b.YMax - b.YMin }

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.XMin, b.YMin, b.XMax, b.YMax)
}

// TileKey uniquely identifies a renderable tile. Immutable once built.
type TileKey struct {
	Layer string
	Case  int // index on the case dimension
	Z     int
	X     int
	Y     int
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d", k.Layer, k.Case, k.Z, k.X, k.Y)
}

// ContentKind distinguishes a real raster from a transparent placeholder
// produced when an external fetch failed.
type ContentKind int

const (
	ContentRaster ContentKind = iota
	ContentPlaceholder
)

// RenderedTile is the immutable product of one render.
type RenderedTile struct {
	Bytes []byte
	Kind  ContentKind
}
