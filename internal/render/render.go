// Package render turns layer definitions plus cube slices into RGBA tile
// images. Dispatch over the layer variants is a closed switch; the variant
// set is fixed by the document schema.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/eocis/cubetile/internal/colormap"
	"github.com/eocis/cubetile/internal/cube"
	"github.com/eocis/cubetile/internal/grid"
	"github.com/eocis/cubetile/internal/model"
	"github.com/eocis/cubetile/internal/observability"
	"github.com/eocis/cubetile/internal/wmsclient"
)

type Renderer struct {
	cube cube.Cube
	grid *grid.Grid
	wms  *wmsclient.Client
	zl   *zerolog.Logger
}

func New(c cube.Cube, g *grid.Grid, w *wmsclient.Client, zl *zerolog.Logger) *Renderer {
	return &Renderer{cube: c, grid: g, wms: w, zl: zl}
}

// Tile renders one tile. The only suspension points are the cube slice
// reads and the WMS fetch; everything else is pure in-memory computation.
func (r *Renderer) Tile(ctx context.Context, l model.Layer, key model.TileKey) (model.RenderedTile, error) {
	start := time.Now()
	defer func() {
		observability.ObserveRender(string(l.Type), time.Since(start).Seconds())
	}()

	bbox, err := r.grid.TileBBox(key.Z, key.X, key.Y)
	if err != nil {
		return model.RenderedTile{}, err
	}

	switch l.Type {
	case model.LayerMask:
		return r.maskTile(ctx, l, key, bbox)
	case model.LayerSingle:
		return r.singleTile(ctx, l, key, bbox)
	case model.LayerRGB:
		return r.rgbTile(ctx, l, key, bbox)
	case model.LayerWMS:
		return r.wmsTile(ctx, l, bbox)
	default:
		return model.RenderedTile{}, fmt.Errorf("unknown layer type %q", l.Type)
	}
}

func (r *Renderer) maskTile(ctx context.Context, l model.Layer, key model.TileKey, bbox model.BBox) (model.RenderedTile, error) {
	slice, err := r.cube.Slice(ctx, key.Case, l.Band)
	if err != nil {
		return model.RenderedTile{}, err
	}

	gw := r.grid.Spec().GridWidth
	img := image.NewRGBA(image.Rect(0, 0, gw, gw))
	s := r.grid.Sampler(bbox)
	fill := color.RGBA{R: l.Colour.R, G: l.Colour.G, B: l.Colour.B, A: 255}

	for j := 0; j < gw; j++ {
		for i := 0; i < gw; i++ {
			cx, cy := s.Native(i, j)
			v := slice.At(cx, cy)
			if math.IsNaN(v) {
				continue // transparent
			}
			qa := uint32(v)
			flagged := qa != 0
			if l.Mask != 0 {
				flagged = qa&l.Mask != 0
			}
			if flagged {
				img.SetRGBA(i, j, fill)
			}
		}
	}
	return encode(img)
}

func (r *Renderer) singleTile(ctx context.Context, l model.Layer, key model.TileKey, bbox model.BBox) (model.RenderedTile, error) {
	slice, err := r.cube.Slice(ctx, key.Case, l.Band)
	if err != nil {
		return model.RenderedTile{}, err
	}
	// validated at load time
	cmap, err := colormap.Lookup(l.Colormap)
	if err != nil {
		return model.RenderedTile{}, err
	}

	gw := r.grid.Spec().GridWidth
	img := image.NewRGBA(image.Rect(0, 0, gw, gw))
	s := r.grid.Sampler(bbox)

	for j := 0; j < gw; j++ {
		for i := 0; i < gw; i++ {
			cx, cy := s.Native(i, j)
			rgb, ok := cmap.At(slice.At(cx, cy), l.MinValue, l.MaxValue)
			if !ok {
				continue
			}
			img.SetRGBA(i, j, color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255})
		}
	}
	return encode(img)
}

func (r *Renderer) rgbTile(ctx context.Context, l model.Layer, key model.TileKey, bbox model.BBox) (model.RenderedTile, error) {
	bands := []string{l.RedBand, l.GreenBand, l.BlueBand}
	declared := []*model.Range{l.RedRange, l.GreenRange, l.BlueRange}

	slices := make([]*cube.Slice, 3)
	ranges := make([]model.Range, 3)
	for i, band := range bands {
		slice, err := r.cube.Slice(ctx, key.Case, band)
		if err != nil {
			return model.RenderedTile{}, err
		}
		slices[i] = slice
		if declared[i] != nil {
			ranges[i] = *declared[i]
		} else {
			ranges[i] = finiteRange(slice)
		}
	}

	gw := r.grid.Spec().GridWidth
	img := image.NewRGBA(image.Rect(0, 0, gw, gw))
	s := r.grid.Sampler(bbox)

	for j := 0; j < gw; j++ {
		for i := 0; i < gw; i++ {
			cx, cy := s.Native(i, j)
			var ch [3]uint8
			ok := true
			for b := 0; b < 3; b++ {
				v := slices[b].At(cx, cy)
				if math.IsNaN(v) {
					ok = false
					break
				}
				ch[b] = stretch(v, ranges[b])
			}
			if !ok {
				continue
			}
			img.SetRGBA(i, j, color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 255})
		}
	}
	return encode(img)
}

// wmsTile proxies the external base map. Upstream failure is non-fatal: the
// tile degrades to a transparent placeholder and the failure is logged.
func (r *Renderer) wmsTile(ctx context.Context, l model.Layer, bbox model.BBox) (model.RenderedTile, error) {
	size := r.grid.Spec().GridWidth * l.Scale
	url := wmsclient.BuildURL(l.URL, bbox, size, size)

	body, err := r.wms.GetMap(ctx, url)
	if err != nil {
		if r.zl != nil {
			r.zl.Warn().Str("layer", l.ID).Err(err).Msg("wms tile degraded to placeholder")
		}
		return Placeholder(r.grid.Spec().GridWidth)
	}
	return model.RenderedTile{Bytes: body, Kind: model.ContentRaster}, nil
}

// stretch maps v linearly from rng onto [0,255], clamped.
func stretch(v float64, rng model.Range) uint8 {
	if rng.Max <= rng.Min {
		return 0
	}
	n := (v - rng.Min) / (rng.Max - rng.Min)
	if n < 0 {
		n = 0
	} else if n > 1 {
		n = 1
	}
	return uint8(math.Round(n * 255))
}

// finiteRange scans a slice for its finite min/max, the default stretch
// range when the layer declares none.
func finiteRange(s *cube.Slice) model.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range s.Values {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > hi {
		return model.Range{Min: 0, Max: 1}
	}
	if lo == hi {
		hi = lo + 1
	}
	return model.Range{Min: lo, Max: hi}
}
