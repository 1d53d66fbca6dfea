// Package service orchestrates tile and metadata requests: it resolves a
// request to a layer definition, runs the render through the cache, and
// evaluates the document's templated metadata.
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eocis/cubetile/internal/cube"
	"github.com/eocis/cubetile/internal/grid"
	"github.com/eocis/cubetile/internal/layerconf"
	"github.com/eocis/cubetile/internal/model"
	"github.com/eocis/cubetile/internal/render"
	"github.com/eocis/cubetile/internal/rendercache"
	"github.com/eocis/cubetile/internal/templated"
)

type Service struct {
	doc      *layerconf.Document
	cube     cube.Cube
	grid     *grid.Grid
	renderer *render.Renderer
	cache    *rendercache.Cache

	// limiter bounds concurrent render computation independently of the
	// HTTP serving goroutines
	limiter chan struct{}

	zl *zerolog.Logger
}

func New(doc *layerconf.Document, c cube.Cube, g *grid.Grid, r *render.Renderer,
	cache *rendercache.Cache, concurrency int, zl *zerolog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		doc:      doc,
		cube:     c,
		grid:     g,
		renderer: r,
		cache:    cache,
		limiter:  make(chan struct{}, concurrency),
		zl:       zl,
	}
}

// Tile serves one tile request. Zoom and case bounds are rejected
// synchronously before any render work starts.
func (s *Service) Tile(ctx context.Context, layerID string, caseIdx, z, x, y int) (model.RenderedTile, error) {
	l, ok := s.doc.Layers[layerID]
	if !ok {
		return model.RenderedTile{}, fmt.Errorf("%w: %q", model.ErrUnknownLayer, layerID)
	}
	if z < 0 || z > s.doc.Image.MaxZoom {
		return model.RenderedTile{}, fmt.Errorf("%w: z=%d max=%d", model.ErrZoomOutOfRange, z, s.doc.Image.MaxZoom)
	}
	if caseIdx < 0 || caseIdx >= s.cube.Cases() {
		return model.RenderedTile{}, fmt.Errorf("%w: %d of %d", model.ErrIndexOutOfRange, caseIdx, s.cube.Cases())
	}

	key := model.TileKey{Layer: layerID, Case: caseIdx, Z: z, X: x, Y: y}
	return s.cache.Get(ctx, key, func(ctx context.Context) (model.RenderedTile, error) {
		select {
		case s.limiter <- struct{}{}:
		case <-ctx.Done():
			return model.RenderedTile{}, ctx.Err()
		}
		defer func() { <-s.limiter }()
		return s.renderer.Tile(ctx, l, key)
	})
}

// Legend returns the layer's legend strip, or ok=false when the layer
// carries none.
func (s *Service) Legend(layerID string) (model.RenderedTile, bool, error) {
	l, ok := s.doc.Layers[layerID]
	if !ok {
		return model.RenderedTile{}, false, fmt.Errorf("%w: %q", model.ErrUnknownLayer, layerID)
	}
	if !render.HasLegend(l) {
		return model.RenderedTile{}, false, nil
	}
	t, err := render.Legend(l)
	if err != nil {
		return model.RenderedTile{}, true, err
	}
	return t, true, nil
}

// Metadata is the evaluated templated text for one pixel probe.
type Metadata struct {
	Group string            `json:"group"`
	Info  map[string]string `json:"info"`
	Label string            `json:"label,omitempty"`
}

// Metadata evaluates the document's group and info templates against the
// probe context. layerID is optional; when it names a single layer with a
// data label, the evaluated label is included.
func (s *Service) Metadata(layerID string, caseIdx int, lat, lon, value float64) (Metadata, error) {
	if caseIdx < 0 || caseIdx >= s.cube.Cases() {
		return Metadata{}, fmt.Errorf("%w: %d of %d", model.ErrIndexOutOfRange, caseIdx, s.cube.Cases())
	}
	timeVal, err := s.cube.CoordinateValue(s.doc.Dimensions.Case, caseIdx)
	if err != nil {
		return Metadata{}, err
	}

	tctx := templated.Context{
		"time":  timeVal,
		"lat":   lat,
		"lon":   lon,
		"value": value,
		"data": templated.Context{
			s.doc.Dimensions.Case: templated.Context{"data": timeVal},
		},
	}

	md := Metadata{Info: map[string]string{}}
	if s.doc.Group != "" && !s.doc.Disabled["group"] {
		md.Group = s.renderText(s.doc.Group, tctx)
	}
	for label, text := range s.doc.Info {
		if s.doc.Disabled["info:"+label] {
			md.Info[label] = ""
			continue
		}
		md.Info[label] = s.renderText(text, tctx)
	}

	if layerID != "" {
		l, ok := s.doc.Layers[layerID]
		if !ok {
			return Metadata{}, fmt.Errorf("%w: %q", model.ErrUnknownLayer, layerID)
		}
		if l.DataLabel != "" {
			md.Label = s.renderText(l.DataLabel, tctx)
		}
	}
	return md, nil
}

// renderText evaluates one template, degrading to the empty string on
// evaluation errors so one bad template cannot fail the whole request.
func (s *Service) renderText(text string, tctx templated.Context) string {
	out, err := templated.Render(text, tctx)
	if err != nil {
		if s.zl != nil {
			s.zl.Warn().Err(err).Str("template", text).Msg("template evaluation failed")
		}
		return ""
	}
	return out
}

// LayerInfo describes one layer for the index endpoint.
type LayerInfo struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Legend bool   `json:"legend"`
}

// Layers lists the configured layers in document order.
func (s *Service) Layers() []LayerInfo {
	out := make([]LayerInfo, 0, len(s.doc.Order))
	for _, id := range s.doc.Order {
		l := s.doc.Layers[id]
		out = append(out, LayerInfo{
			ID:     id,
			Label:  l.Label,
			Type:   string(l.Type),
			Legend: render.HasLegend(l),
		})
	}
	return out
}

// Cases reports the number of renderable scenes.
func (s *Service) Cases() int { return s.cube.Cases() }
