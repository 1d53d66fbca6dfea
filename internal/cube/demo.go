package cube

import "math"

// NewDemo builds a small synthetic scene: surface temperature, three
// reflectance bands and a QA bitmask over a 512x512 grid, three dates.
// Used by the server binary when no dataset path is configured.
func NewDemo() *MemCube {
	const (
		w = 512
		h = 512
		// EPSG:27700-style extent, 1km pixels
		x0  = 300000.0
		y0  = 200000.0
		res = 1000.0
	)

	xs := make([]float64, w)
	for i := range xs {
		xs[i] = x0 + (float64(i)+0.5)*res
	}
	ys := make([]float64, h)
	for j := range ys {
		// stored north-up: first row has the largest y
		ys[j] = y0 + (float64(h-j)-0.5)*res
	}

	dates := []any{
		"2023-05-01T10:00:00",
		"2023-06-12T10:00:00",
		"2023-07-30T10:00:00",
	}

	c := NewMemCube("time", dates, map[string][]float64{
		"x": xs,
		"y": ys,
	})

	mk := func(f func(t, x, y int) float64) []*Slice {
		out := make([]*Slice, len(dates))
		for t := range dates {
			s := &Slice{Width: w, Height: h, Values: make([]float64, w*h)}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					s.Values[y*w+x] = f(t, x, y)
				}
			}
			out[t] = s
		}
		return out
	}

	c.AddBand("ST", mk(func(t, x, y int) float64 {
		return 270 + 30*math.Abs(math.Sin(float64(x)/60)*math.Cos(float64(y)/60)) + float64(t)
	}))
	c.AddBand("SR_B4", mk(func(t, x, y int) float64 {
		return 0.05 + 0.4*math.Abs(math.Sin(float64(x+y)/90))
	}))
	c.AddBand("SR_B3", mk(func(t, x, y int) float64 {
		return 0.05 + 0.4*math.Abs(math.Cos(float64(x-y)/90))
	}))
	c.AddBand("SR_B2", mk(func(t, x, y int) float64 {
		return 0.05 + 0.3*math.Abs(math.Sin(float64(x)/45))
	}))
	c.AddBand("QA_PIXEL", mk(func(t, x, y int) float64 {
		// a diagonal band of "cloud" (bit 3) drifting with time
		if (x+y+40*t)%256 < 32 {
			return 8
		}
		return 0
	}))

	return c
}
