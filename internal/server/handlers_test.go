package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eocis/cubetile/internal/config"
	"github.com/eocis/cubetile/internal/cube"
	"github.com/eocis/cubetile/internal/grid"
	"github.com/eocis/cubetile/internal/layerconf"
	"github.com/eocis/cubetile/internal/logger"
	"github.com/eocis/cubetile/internal/render"
	"github.com/eocis/cubetile/internal/rendercache"
	"github.com/eocis/cubetile/internal/service"
)

const routerDoc = `{
  "image": {"grid-width": 4, "max-zoom": 2},
  "group": "Scene ${str(data['time'].data)[0:10]}",
  "info": {"Time": "${str(data['time'].data)[0:10]}"},
  "layers": {
    "st": {
      "type": "single", "band": "ST",
      "min_value": 270, "max_value": 300,
      "data_label": "ST: ${fixed(value, 2)} K"
    }
  }
}`

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	c := cube.NewMemCube("time", []any{"2023-05-01T10:00:00"}, map[string][]float64{
		"x": {5, 15, 25, 35},
		"y": {35, 25, 15, 5},
	})
	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = 285
	}
	c.AddBand("ST", []*cube.Slice{{Width: 4, Height: 4, Values: vals}})

	doc, err := layerconf.Decode(strings.NewReader(routerDoc))
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Validate(c); err != nil {
		t.Fatal(err)
	}
	g, err := grid.New(c.Coords("x"), c.Coords("y"), doc.Image, doc.CRS)
	if err != nil {
		t.Fatal(err)
	}
	cache, err := rendercache.New(16, 0, 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	l := logger.Build(logger.Config{Level: "error"}, io.Discard)
	zl := &l
	svc := service.New(doc, c, g, render.New(c, g, nil, zl), cache, 4, zl)

	cfg := config.Config{MetricsEnabled: false}
	return NewRouter(cfg, svc, nil, zl)
}

func get(t *testing.T, h http.Handler, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestRouter(t), "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestTileEndpoint(t *testing.T) {
	h := newTestRouter(t)
	rec := get(t, h, "/tiles/st/0/0/0/0.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	if !strings.HasPrefix(rec.Body.String(), "\x89PNG") {
		t.Error("body is not a png")
	}
}

func TestTileETagRevalidation(t *testing.T) {
	h := newTestRouter(t)
	first := get(t, h, "/tiles/st/0/0/0/0.png", nil)
	etag := first.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	second := get(t, h, "/tiles/st/0/0/0/0.png", map[string]string{"If-None-Match": etag})
	if second.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", second.Code)
	}
	if second.Body.Len() != 0 {
		t.Errorf("304 carried a body of %d bytes", second.Body.Len())
	}
}

func TestTileErrorStatuses(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		path string
		code int
	}{
		{"/tiles/st/0/9/0/0.png", http.StatusBadRequest},  // zoom past max
		{"/tiles/nope/0/0/0/0.png", http.StatusNotFound},  // unknown layer
		{"/tiles/st/7/0/0/0.png", http.StatusNotFound},    // case index past end
		{"/tiles/st/x/0/0/0.png", http.StatusBadRequest},  // non-numeric address
		{"/tiles/st/0/0/0/0", http.StatusNotFound},        // missing .png suffix
	}
	for _, c := range cases {
		if rec := get(t, h, c.path, nil); rec.Code != c.code {
			t.Errorf("%s: status = %d, want %d", c.path, rec.Code, c.code)
		}
	}
}

func TestLegendEndpoint(t *testing.T) {
	h := newTestRouter(t)
	rec := get(t, h, "/legend/st.png", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if rec := get(t, h, "/legend/nope.png", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown layer legend status = %d", rec.Code)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	h := newTestRouter(t)
	rec := get(t, h, "/metadata?time=0&layer=st&lat=51.5&lon=-0.12&value=285.3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var md service.Metadata
	if err := json.Unmarshal(rec.Body.Bytes(), &md); err != nil {
		t.Fatal(err)
	}
	if md.Group != "Scene 2023-05-01" {
		t.Errorf("group = %q", md.Group)
	}
	if md.Label != "ST: 285.30 K" {
		t.Errorf("label = %q", md.Label)
	}

	if rec := get(t, h, "/metadata?time=zzz", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed time status = %d", rec.Code)
	}
	if rec := get(t, h, "/metadata?time=9", nil); rec.Code != http.StatusNotFound {
		t.Errorf("out-of-range time status = %d", rec.Code)
	}
}

func TestLayersEndpoint(t *testing.T) {
	h := newTestRouter(t)
	rec := get(t, h, "/layers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Cases  int                 `json:"cases"`
		Layers []service.LayerInfo `json:"layers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Cases != 1 || len(out.Layers) != 1 || out.Layers[0].ID != "st" || !out.Layers[0].Legend {
		t.Errorf("layers = %+v", out)
	}
}

func TestRequestIDEcho(t *testing.T) {
	h := newTestRouter(t)
	rec := get(t, h, "/healthz", map[string]string{"X-Request-Id": "abc-123"})
	if got := rec.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Errorf("X-Request-Id = %q", got)
	}
	rec = get(t, h, "/healthz", nil)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing generated X-Request-Id")
	}
}
