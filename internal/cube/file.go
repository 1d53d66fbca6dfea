package cube

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

type fileCase struct {
	Dimension string `json:"dimension"`
	Values    []any  `json:"values"`
}

// fileCube is the on-disk JSON shape: bands[name][case][row][col], with
// null marking no-data.
type fileCube struct {
	Case        fileCase                  `json:"case"`
	Coordinates map[string][]float64      `json:"coordinates"`
	Bands       map[string][][][]*float64 `json:"bands"`
}

// Load reads a dataset exported as JSON into a MemCube.
func Load(path string) (*MemCube, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var fc fileCube
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if fc.Case.Dimension == "" {
		fc.Case.Dimension = "time"
	}

	c := NewMemCube(fc.Case.Dimension, fc.Case.Values, fc.Coordinates)
	for name, cases := range fc.Bands {
		if len(cases) != len(fc.Case.Values) {
			return nil, fmt.Errorf("band %q: %d cases, expected %d", name, len(cases), len(fc.Case.Values))
		}
		slices := make([]*Slice, len(cases))
		for t, rows := range cases {
			s, err := sliceFromRows(name, rows)
			if err != nil {
				return nil, err
			}
			slices[t] = s
		}
		c.AddBand(name, slices)
	}
	return c, nil
}

func sliceFromRows(band string, rows [][]*float64) (*Slice, error) {
	h := len(rows)
	if h == 0 {
		return nil, fmt.Errorf("band %q: empty slice", band)
	}
	w := len(rows[0])
	s := &Slice{Width: w, Height: h, Values: make([]float64, w*h)}
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("band %q: ragged row %d", band, y)
		}
		for x, v := range row {
			if v == nil {
				s.Values[y*w+x] = math.NaN()
			} else {
				s.Values[y*w+x] = *v
			}
		}
	}
	return s, nil
}
