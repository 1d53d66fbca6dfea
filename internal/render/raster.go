package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/eocis/cubetile/internal/model"
)

func encode(img image.Image) (model.RenderedTile, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.RenderedTile{}, fmt.Errorf("encode tile: %w", err)
	}
	return model.RenderedTile{Bytes: buf.Bytes(), Kind: model.ContentRaster}, nil
}

// Placeholder is a fully transparent tile, returned when an external fetch
// failed.
func Placeholder(gridWidth int) (model.RenderedTile, error) {
	t, err := encode(image.NewRGBA(image.Rect(0, 0, gridWidth, gridWidth)))
	if err != nil {
		return model.RenderedTile{}, err
	}
	t.Kind = model.ContentPlaceholder
	return t, nil
}
