package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/eocis/cubetile/internal/logger"
	"github.com/eocis/cubetile/internal/model"
	"github.com/eocis/cubetile/internal/observability"
	"github.com/eocis/cubetile/internal/service"
)

type handlers struct {
	svc *service.Service
	zl  *zerolog.Logger
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *handlers) tile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer func() {
		observability.ObserveHTTP(r.Method, "/tiles", sw.code, time.Since(start).Seconds())
	}()

	layerID := chi.URLParam(r, "layer")
	caseIdx, err1 := strconv.Atoi(chi.URLParam(r, "time"))
	z, err2 := strconv.Atoi(chi.URLParam(r, "z"))
	x, err3 := strconv.Atoi(chi.URLParam(r, "x"))
	y, err4 := strconv.Atoi(chi.URLParam(r, "y"))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		http.Error(sw, "tile address must be numeric", http.StatusBadRequest)
		return
	}

	ctx := logger.WithLayer(r.Context(), layerID)
	tile, err := h.svc.Tile(ctx, layerID, caseIdx, z, x, y)
	if err != nil {
		h.writeError(sw, r, err)
		return
	}
	writeImage(sw, r, tile.Bytes)
}

func (h *handlers) legend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer func() {
		observability.ObserveHTTP(r.Method, "/legend", sw.code, time.Since(start).Seconds())
	}()

	layerID := chi.URLParam(r, "layer")
	tile, ok, err := h.svc.Legend(layerID)
	if err != nil {
		h.writeError(sw, r, err)
		return
	}
	if !ok {
		http.Error(sw, fmt.Sprintf("layer %q has no legend", layerID), http.StatusNotFound)
		return
	}
	writeImage(sw, r, tile.Bytes)
}

func (h *handlers) metadata(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer func() {
		observability.ObserveHTTP(r.Method, "/metadata", sw.code, time.Since(start).Seconds())
	}()

	q := r.URL.Query()
	caseIdx, err := strconv.Atoi(q.Get("time"))
	if err != nil {
		http.Error(sw, "missing or malformed time index", http.StatusBadRequest)
		return
	}
	lat, err := parseFloatParam(q.Get("lat"))
	if err != nil {
		http.Error(sw, "malformed lat", http.StatusBadRequest)
		return
	}
	lon, err := parseFloatParam(q.Get("lon"))
	if err != nil {
		http.Error(sw, "malformed lon", http.StatusBadRequest)
		return
	}
	value, err := parseFloatParam(q.Get("value"))
	if err != nil {
		http.Error(sw, "malformed value", http.StatusBadRequest)
		return
	}

	md, err := h.svc.Metadata(q.Get("layer"), caseIdx, lat, lon, value)
	if err != nil {
		h.writeError(sw, r, err)
		return
	}
	writeJSON(sw, md)
}

func (h *handlers) layers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	defer func() {
		observability.ObserveHTTP(r.Method, "/layers", sw.code, time.Since(start).Seconds())
	}()
	writeJSON(sw, struct {
		Cases  int                 `json:"cases"`
		Layers []service.LayerInfo `json:"layers"`
	}{Cases: h.svc.Cases(), Layers: h.svc.Layers()})
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrZoomOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrUnknownLayer), errors.Is(err, model.ErrIndexOutOfRange):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.FromContext(r.Context(), h.zl).Error().Err(err).Msg("request failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// writeImage serves PNG bytes with an ETag so clients re-panning over the
// same tiles revalidate instead of re-downloading.
func writeImage(w http.ResponseWriter, r *http.Request, body []byte) {
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func parseFloatParam(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
