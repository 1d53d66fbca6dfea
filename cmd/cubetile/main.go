package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eocis/cubetile/internal/config"
	"github.com/eocis/cubetile/internal/cube"
	"github.com/eocis/cubetile/internal/grid"
	"github.com/eocis/cubetile/internal/layerconf"
	"github.com/eocis/cubetile/internal/logger"
	"github.com/eocis/cubetile/internal/metrics"
	"github.com/eocis/cubetile/internal/observability"
	"github.com/eocis/cubetile/internal/render"
	"github.com/eocis/cubetile/internal/rendercache"
	"github.com/eocis/cubetile/internal/server"
	"github.com/eocis/cubetile/internal/service"
	"github.com/eocis/cubetile/internal/wmsclient"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	layerFlag := flag.String("layers", "", "path to the layer document (overrides LAYER_DOC)")
	dataFlag := flag.String("data", "", "path to the dataset (overrides DATA_PATH)")
	flag.Parse()

	cfg := config.FromEnv()
	if *layerFlag != "" {
		cfg.LayerPath = *layerFlag
	}
	if *dataFlag != "" {
		cfg.DataPath = *dataFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "cubetile",
	}, os.Stdout)

	zl.Info().Str("version", Version).Str("addr", cfg.Addr).Msg("starting cubetile")

	var (
		ds  cube.Cube
		doc *layerconf.Document
		err error
	)
	if cfg.DataPath == "" && !fileExists(cfg.LayerPath) {
		zl.Warn().Str("layer_doc", cfg.LayerPath).Msg("no layer document found, serving the built-in demo scene")
		ds = cube.NewDemo()
		doc, err = layerconf.Decode(strings.NewReader(demoDocument))
	} else {
		if cfg.DataPath == "" {
			zl.Error().Msg("DATA_PATH is required when a layer document is configured")
			return 1
		}
		ds, err = cube.Load(cfg.DataPath)
		if err != nil {
			zl.Error().Err(err).Msg("failed to open dataset")
			return 1
		}
		doc, err = layerconf.Load(cfg.LayerPath)
	}
	if err != nil {
		zl.Error().Err(err).Msg("failed to load layer document")
		return 1
	}

	// configuration problems are fatal to startup, never silently ignored
	if err := doc.Validate(ds); err != nil {
		zl.Error().Err(err).Msg("layer document rejected")
		return 1
	}

	g, err := grid.New(ds.Coords(doc.Dimensions.X), ds.Coords(doc.Dimensions.Y), doc.Image, doc.CRS)
	if err != nil {
		zl.Error().Err(err).Msg("failed to derive tile grid")
		return 1
	}

	cache, err := rendercache.New(cfg.CacheEntries, cfg.CacheBytes, cfg.RetryBudget, cfg.FailureTTL)
	if err != nil {
		zl.Error().Err(err).Msg("failed to build render cache")
		return 1
	}

	wms := wmsclient.New(cfg.WMSTimeout, cfg.FailureTTL, &zl)
	renderer := render.New(ds, g, wms, &zl)
	svc := service.New(doc, ds, g, renderer, cache, cfg.RenderConcurrency, &zl)

	var prov *metrics.Provider
	if cfg.MetricsEnabled {
		prov = metrics.Init()
		observability.ExposeBuildInfo(Version)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := server.NewRouter(cfg, svc, prov, &zl)
	if err := server.Run(ctx, cfg, handler, &zl); err != nil {
		zl.Error().Err(err).Msg("server exited")
		return 1
	}
	zl.Info().Msg("shutdown complete")
	return 0
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
