package render

import (
	"image"
	"image/color"

	"github.com/eocis/cubetile/internal/colormap"
	"github.com/eocis/cubetile/internal/model"
)

const (
	legendWidth  = 200
	legendHeight = 20
)

// HasLegend reports whether a layer exposes a legend strip. Only single
// band layers do; mask, rgb and wms layers carry no value scale.
func HasLegend(l model.Layer) bool {
	return l.Type == model.LayerSingle
}

// Legend renders the horizontal colour strip sweeping the layer's value
// range left to right through its colormap.
func Legend(l model.Layer) (model.RenderedTile, error) {
	cmap, err := colormap.Lookup(l.Colormap)
	if err != nil {
		return model.RenderedTile{}, err
	}

	img := image.NewRGBA(image.Rect(0, 0, legendWidth, legendHeight))
	for x := 0; x < legendWidth; x++ {
		v := l.MinValue + float64(x)/legendWidth*(l.MaxValue-l.MinValue)
		rgb, _ := cmap.At(v, l.MinValue, l.MaxValue)
		c := color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255}
		for y := 0; y < legendHeight; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return encode(img)
}
