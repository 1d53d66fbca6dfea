package colormap

import (
	"strconv"
	"strings"

	"github.com/eocis/cubetile/internal/model"
)

var namedColours = map[string]model.RGB{
	"violet":      {R: 238, G: 130, B: 238},
	"magenta":     {R: 255, G: 0, B: 255},
	"purple":      {R: 128, G: 0, B: 128},
	"indigo":      {R: 75, G: 0, B: 130},
	"pink":        {R: 255, G: 192, B: 203},
	"crimson":     {R: 220, G: 20, B: 60},
	"darkred":     {R: 139, G: 0, B: 0},
	"red":         {R: 255, G: 0, B: 0},
	"darkorange":  {R: 255, G: 140, B: 0},
	"orange":      {R: 255, G: 165, B: 0},
	"yellow":      {R: 255, G: 255, B: 0},
	"lightyellow": {R: 255, G: 255, B: 224},
	"gold":        {R: 255, G: 215, B: 0},
	"brown":       {R: 165, G: 42, B: 42},
	"lightgreen":  {R: 144, G: 238, B: 144},
	"green":       {R: 0, G: 128, B: 0},
	"darkgreen":   {R: 0, G: 100, B: 0},
	"cyan":        {R: 0, G: 255, B: 255},
	"lightblue":   {R: 173, G: 216, B: 230},
	"blue":        {R: 0, G: 0, B: 255},
	"darkblue":    {R: 0, G: 0, B: 139},
	"white":       {R: 255, G: 255, B: 255},
	"lightgray":   {R: 211, G: 211, B: 211},
	"darkgray":    {R: 169, G: 169, B: 169},
	"gray":        {R: 128, G: 128, B: 128},
	"black":       {R: 0, G: 0, B: 0},
}

// ParseColour resolves a named colour or "#rrggbb" hex string.
func ParseColour(s string) (model.RGB, bool) {
	if c, ok := namedColours[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") && len(s) == 7 {
		r, er := strconv.ParseUint(s[1:3], 16, 8)
		g, eg := strconv.ParseUint(s[3:5], 16, 8)
		b, eb := strconv.ParseUint(s[5:7], 16, 8)
		if er == nil && eg == nil && eb == nil {
			return model.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}, true
		}
	}
	return model.RGB{}, false
}
