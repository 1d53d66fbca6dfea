// Package colormap maps normalized scalars to colours through named lookup
// tables. Tables are materialized once at startup into 256-entry ramps and
// are read-only afterwards, so renders may share them without locking.
package colormap

import (
	"fmt"
	"math"

	"github.com/eocis/cubetile/internal/model"
)

// Map is a named 256-entry colour ramp.
type Map struct {
	name string
	ramp [256]model.RGB
}

func (m *Map) Name() string { return m.name }

// At normalizes v into [0,1] over [min,max], clamps, and looks up the ramp.
// The second return is false for NaN input, which callers render as a fully
// transparent pixel.
func (m *Map) At(v, min, max float64) (model.RGB, bool) {
	if math.IsNaN(v) {
		return model.RGB{}, false
	}
	n := (v - min) / (max - min)
	if n < 0 {
		n = 0
	} else if n > 1 {
		n = 1
	}
	return m.ramp[int(math.Round(n*255))], true
}

// Stop returns the ramp entry at a raw index, used for legend strips.
func (m *Map) Stop(i int) model.RGB {
	if i < 0 {
		i = 0
	} else if i > 255 {
		i = 255
	}
	return m.ramp[i]
}

func lerp(a, b uint8, frac float64) uint8 {
	return uint8(math.Round(float64(a) + frac*(float64(b)-float64(a))))
}

// build interpolates a ramp through the given colour stops, exact at both
// endpoints.
func build(name string, stops []model.RGB) *Map {
	m := &Map{name: name}
	last := len(stops) - 1
	for i := 0; i < 256; i++ {
		pos := float64(i) / 255 * float64(last)
		k := int(pos)
		if k >= last {
			m.ramp[i] = stops[last]
			continue
		}
		frac := pos - float64(k)
		m.ramp[i] = model.RGB{
			R: lerp(stops[k].R, stops[k+1].R, frac),
			G: lerp(stops[k].G, stops[k+1].G, frac),
			B: lerp(stops[k].B, stops[k+1].B, frac),
		}
	}
	return m
}

var registry = map[string]*Map{
	"rainbow": build("rainbow", []model.RGB{
		{R: 128, G: 0, B: 255},
		{R: 0, G: 0, B: 255},
		{R: 0, G: 255, B: 255},
		{R: 0, G: 255, B: 0},
		{R: 255, G: 255, B: 0},
		{R: 255, G: 128, B: 0},
		{R: 255, G: 0, B: 0},
	}),
	"coolwarm": build("coolwarm", []model.RGB{
		{R: 59, G: 76, B: 192},
		{R: 144, G: 178, B: 254},
		{R: 220, G: 220, B: 220},
		{R: 245, G: 156, B: 125},
		{R: 180, G: 4, B: 38},
	}),
	"viridis": build("viridis", []model.RGB{
		{R: 68, G: 1, B: 84},
		{R: 59, G: 82, B: 139},
		{R: 33, G: 145, B: 140},
		{R: 94, G: 201, B: 98},
		{R: 253, G: 231, B: 37},
	}),
	"greys": build("greys", []model.RGB{
		{R: 0, G: 0, B: 0},
		{R: 255, G: 255, B: 255},
	}),
}

// Lookup resolves a colormap name. Unknown names fail here, at layer
// validation time, never per pixel.
func Lookup(name string) (*Map, error) {
	m, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownColormap, name)
	}
	return m, nil
}

// Names lists the registered colormaps.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
