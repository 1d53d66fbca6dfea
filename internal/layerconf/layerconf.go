// Package layerconf decodes and validates the declarative layer document
// driving the tile engine.
package layerconf

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/eocis/cubetile/internal/colormap"
	"github.com/eocis/cubetile/internal/cube"
	"github.com/eocis/cubetile/internal/model"
	"github.com/eocis/cubetile/internal/templated"
)

// ValidationError is fatal to startup; the document is rejected as a whole.
type ValidationError struct {
	Layer  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("layer document: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("layer %q: %s: %s", e.Layer, e.Field, e.Reason)
}

// Dimensions names the dataset axes the document binds to.
type Dimensions struct {
	Case string `json:"case"`
	X    string `json:"x"`
	Y    string `json:"y"`
}

// Document is the decoded layer document.
type Document struct {
	Dimensions Dimensions
	Image      model.ImageSpec
	CRS        string
	Labels     map[string]string // display names for dataset variables
	Group      string            // ${...} template
	Info       map[string]string // label -> ${...} template
	Layers     map[string]model.Layer
	Order      []string // layer ids in document order (sorted; JSON objects are unordered)

	// Disabled marks group/info templates that failed validation. They
	// render as the empty string instead of failing metadata requests.
	Disabled map[string]bool
}

type rawImage struct {
	GridWidth int `json:"grid-width"`
	MaxZoom   int `json:"max-zoom"`
}

type rawRange [2]float64

type rawLayer struct {
	Type      string  `json:"type"`
	Label     string  `json:"label"`
	Band      string  `json:"band"`
	Mask      *int64  `json:"mask"`
	R         *int    `json:"r"`
	G         *int    `json:"g"`
	B         *int    `json:"b"`
	Colour    string  `json:"colour"`
	MinValue  float64 `json:"min_value"`
	MaxValue  float64 `json:"max_value"`
	Cmap      string  `json:"cmap"`
	DataLabel string  `json:"data_label"`

	RedBand    string    `json:"red_band"`
	GreenBand  string    `json:"green_band"`
	BlueBand   string    `json:"blue_band"`
	RedRange   *rawRange `json:"red_range"`
	GreenRange *rawRange `json:"green_range"`
	BlueRange  *rawRange `json:"blue_range"`

	URL   string `json:"url"`
	Scale int    `json:"scale"`
}

type rawDocument struct {
	Dimensions  Dimensions          `json:"dimensions"`
	Coordinates json.RawMessage     `json:"coordinates"`
	Image       rawImage            `json:"image"`
	Labels      map[string]string   `json:"labels"`
	CRS         string              `json:"crs"`
	Group       string              `json:"group"`
	Info        map[string]string   `json:"info"`
	Layers      map[string]rawLayer `json:"layers"`
}

// Load reads and decodes the document at path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layer document: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode parses the JSON document and applies the factory defaults: label
// falls back to the layer id, colormap to "coolwarm", WMS scale to 1.
func Decode(r io.Reader) (*Document, error) {
	var raw rawDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode layer document: %w", err)
	}

	doc := &Document{
		Dimensions: raw.Dimensions,
		Labels:     raw.Labels,
		Image:      model.ImageSpec{GridWidth: raw.Image.GridWidth, MaxZoom: raw.Image.MaxZoom},
		CRS:        raw.CRS,
		Group:      raw.Group,
		Info:       raw.Info,
		Layers:     map[string]model.Layer{},
		Disabled:   map[string]bool{},
	}
	if doc.Dimensions.Case == "" {
		doc.Dimensions.Case = "time"
	}
	if doc.Dimensions.X == "" {
		doc.Dimensions.X = "x"
	}
	if doc.Dimensions.Y == "" {
		doc.Dimensions.Y = "y"
	}

	for id, rl := range raw.Layers {
		l := model.Layer{
			ID:        id,
			Label:     rl.Label,
			Type:      model.LayerType(rl.Type),
			Band:      rl.Band,
			MinValue:  rl.MinValue,
			MaxValue:  rl.MaxValue,
			Colormap:  rl.Cmap,
			DataLabel: rl.DataLabel,
			RedBand:   rl.RedBand,
			GreenBand: rl.GreenBand,
			BlueBand:  rl.BlueBand,
			URL:       rl.URL,
			Scale:     rl.Scale,
		}
		if l.Label == "" {
			l.Label = id
		}
		if l.Type == model.LayerSingle && l.Colormap == "" {
			l.Colormap = "coolwarm"
		}
		if l.Type == model.LayerWMS && l.Scale == 0 {
			l.Scale = 1
		}
		if rl.Mask != nil {
			if *rl.Mask < 0 || *rl.Mask > math.MaxUint32 {
				return nil, &ValidationError{Layer: id, Field: "mask",
					Reason: fmt.Sprintf("must be a 32-bit non-negative pattern, got %d", *rl.Mask)}
			}
			l.Mask = uint32(*rl.Mask)
		}
		switch {
		case rl.Colour != "":
			c, ok := colormap.ParseColour(rl.Colour)
			if !ok {
				return nil, &ValidationError{Layer: id, Field: "colour", Reason: fmt.Sprintf("unknown colour %q", rl.Colour)}
			}
			l.Colour = c
		case rl.R != nil && rl.G != nil && rl.B != nil:
			l.Colour = model.RGB{R: clamp8(*rl.R), G: clamp8(*rl.G), B: clamp8(*rl.B)}
		}
		l.RedRange = toRange(rl.RedRange)
		l.GreenRange = toRange(rl.GreenRange)
		l.BlueRange = toRange(rl.BlueRange)

		doc.Layers[id] = l
		doc.Order = append(doc.Order, id)
	}
	sort.Strings(doc.Order)

	return doc, nil
}

func toRange(r *rawRange) *model.Range {
	if r == nil {
		return nil
	}
	return &model.Range{Min: r[0], Max: r[1]}
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Validate checks the document against the dataset. Structural problems
// (bad band references, inverted ranges, unknown colormaps, malformed WMS
// URLs) are fatal. Malformed group/info templates only disable themselves.
func (d *Document) Validate(c cube.Cube) error {
	if d.Image.GridWidth <= 0 {
		return &ValidationError{Field: "image.grid-width", Reason: "must be positive"}
	}
	if d.Image.MaxZoom < 0 {
		return &ValidationError{Field: "image.max-zoom", Reason: "must be non-negative"}
	}
	for _, axis := range []string{d.Dimensions.X, d.Dimensions.Y} {
		if len(c.Coords(axis)) == 0 {
			return &ValidationError{Field: "dimensions", Reason: fmt.Sprintf("no coordinate %q in dataset", axis)}
		}
	}

	for id, l := range d.Layers {
		switch l.Type {
		case model.LayerMask:
			if err := requireBand(c, id, "band", l.Band); err != nil {
				return err
			}
		case model.LayerSingle:
			if err := requireBand(c, id, "band", l.Band); err != nil {
				return err
			}
			if !(l.MinValue < l.MaxValue) {
				return &ValidationError{Layer: id, Field: "min_value/max_value",
					Reason: fmt.Sprintf("min_value (%g) must be below max_value (%g)", l.MinValue, l.MaxValue)}
			}
			if _, err := colormap.Lookup(l.Colormap); err != nil {
				return &ValidationError{Layer: id, Field: "cmap", Reason: err.Error()}
			}
			if l.DataLabel != "" {
				if _, err := templated.Parse(l.DataLabel); err != nil {
					return &ValidationError{Layer: id, Field: "data_label", Reason: err.Error()}
				}
			}
		case model.LayerRGB:
			for _, b := range []struct{ field, band string }{
				{"red_band", l.RedBand}, {"green_band", l.GreenBand}, {"blue_band", l.BlueBand},
			} {
				if err := requireBand(c, id, b.field, b.band); err != nil {
					return err
				}
			}
			for _, rg := range []struct {
				field string
				r     *model.Range
			}{
				{"red_range", l.RedRange}, {"green_range", l.GreenRange}, {"blue_range", l.BlueRange},
			} {
				if rg.r != nil && !(rg.r.Min < rg.r.Max) {
					return &ValidationError{Layer: id, Field: rg.field,
						Reason: fmt.Sprintf("min (%g) must be below max (%g)", rg.r.Min, rg.r.Max)}
				}
			}
		case model.LayerWMS:
			for _, ph := range []string{"{WIDTH}", "{HEIGHT}", "{XMIN}", "{YMIN}", "{XMAX}", "{YMAX}"} {
				if !strings.Contains(l.URL, ph) {
					return &ValidationError{Layer: id, Field: "url", Reason: "missing placeholder " + ph}
				}
			}
			if l.Scale <= 0 {
				return &ValidationError{Layer: id, Field: "scale", Reason: "must be positive"}
			}
		default:
			return &ValidationError{Layer: id, Field: "type", Reason: fmt.Sprintf("unknown layer type %q", l.Type)}
		}
	}

	// templates that fail to parse are disabled, not fatal
	if d.Group != "" {
		if _, err := templated.Parse(d.Group); err != nil {
			d.Disabled["group"] = true
		}
	}
	for label, text := range d.Info {
		if _, err := templated.Parse(text); err != nil {
			d.Disabled["info:"+label] = true
		}
	}

	return nil
}

func requireBand(c cube.Cube, layer, field, band string) error {
	if band == "" {
		return &ValidationError{Layer: layer, Field: field, Reason: "missing band name"}
	}
	if !c.HasBand(band) {
		return &ValidationError{Layer: layer, Field: field, Reason: fmt.Sprintf("no variable %q in dataset", band)}
	}
	return nil
}
