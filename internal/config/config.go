package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	// LayerPath points at the layer document consumed at startup.
	LayerPath string

	// DataPath points at the dataset the cube accessor opens. Empty means
	// the built-in demo cube.
	DataPath string

	CacheEntries int
	CacheBytes   int64
	FailureTTL   time.Duration
	RetryBudget  int

	WMSTimeout time.Duration

	// RenderConcurrency bounds the number of tile renders executing at
	// once, independent of the HTTP serving goroutines.
	RenderConcurrency int

	MetricsEnabled bool
	MetricsPath    string
}

func FromEnv() Config {
	return Config{
		Addr:              getenv("ADDR", ":8400"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		LayerPath:         getenv("LAYER_DOC", "layers.json"),
		DataPath:          getenv("DATA_PATH", ""),
		CacheEntries:      getint("CACHE_ENTRIES", 4096),
		CacheBytes:        getint64("CACHE_BYTES", 256<<20),
		FailureTTL:        getduration("FAILURE_TTL", 30*time.Second),
		RetryBudget:       getint("RETRY_BUDGET", 3),
		WMSTimeout:        getduration("WMS_TIMEOUT", 10*time.Second),
		RenderConcurrency: getint("RENDER_CONCURRENCY", 16),
		MetricsEnabled:    getbool("METRICS_ENABLED", true),
		MetricsPath:       getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
