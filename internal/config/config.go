// Package config defines service configuration and its loading hooks.
//
// Conventions:
// - Keys are flat and snake_case; env vars use the SHAKER_ prefix.
// - New returns defaults; Load layers file and env on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// DataDir is where the Badger ledger lives.
	DataDir string `koanf:"data_dir"`
	// SyncWrites fsyncs every ledger commit.
	SyncWrites bool `koanf:"sync_writes"`

	// CatalogPath points at a JSON or YAML drinks file.
	CatalogPath string `koanf:"catalog_path"`
	// TasteAxes fixes the numeric taste dimensions, in vector order.
	TasteAxes []string `koanf:"taste_axes"`

	// Block weights for the feature vector.
	SpiritWeight float64 `koanf:"spirit_weight"`
	TagWeight    float64 `koanf:"tag_weight"`
	SeasonWeight float64 `koanf:"season_weight"`
	TasteWeight  float64 `koanf:"taste_weight"`

	// DislikeWeight scales disliked slots (negative) relative to the block weight.
	DislikeWeight float64 `koanf:"dislike_weight"`
	// HistoryWeight scales the mean of positively rated drinks.
	HistoryWeight float64 `koanf:"history_weight"`
	// NegativeHistoryWeight scales the mean of negatively rated drinks (subtracted).
	NegativeHistoryWeight float64 `koanf:"negative_history_weight"`

	// PositiveRating is the lowest rating counted as "loved".
	PositiveRating int `koanf:"positive_rating"`
	// NegativeRating is the highest rating counted as disliked history.
	NegativeRating int `koanf:"negative_rating"`
	// TasteThreshold is the distinct-drink count that sets has_taste.
	TasteThreshold int `koanf:"taste_threshold"`
	// TopTagsLimit and TopSeasonsLimit bound the profile summary.
	TopTagsLimit    int `koanf:"top_tags_limit"`
	TopSeasonsLimit int `koanf:"top_seasons_limit"`

	// DefaultK is the /recs size when the request omits k.
	DefaultK int `koanf:"default_k"`
	// DefaultSimilarK is the /similar size when the query omits k.
	DefaultSimilarK int `koanf:"default_similar_k"`
	// MaxK caps k on /recs and /similar.
	MaxK int `koanf:"max_k"`
	// DefaultPageSize and MaxPageSize govern /drinks and /search paging.
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
	// ParallelScanThreshold is the catalog size above which similarity scans fan out.
	ParallelScanThreshold int `koanf:"parallel_scan_threshold"`

	// EventQueueSize bounds the in-memory popularity queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of popularity workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the idempotency key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DefaultUserID is used when a request omits user_id.
	DefaultUserID string `koanf:"default_user_id"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	// RateLimitRequests per RateLimitWindowMS per client IP on write endpoints. 0 disables.
	RateLimitRequests int `koanf:"rate_limit_requests"`
	RateLimitWindowMS int `koanf:"rate_limit_window_ms"`

	// BreakerFailureThreshold consecutive ledger read failures open the breaker.
	BreakerFailureThreshold int `koanf:"breaker_failure_threshold"`
	// BreakerTimeoutMS is how long the breaker stays open.
	BreakerTimeoutMS int `koanf:"breaker_timeout_ms"`
}

// DefaultTasteAxes are the numeric taste dimensions of the curated catalog.
var DefaultTasteAxes = []string{
	"sweet", "sour", "bitter", "boozy", "herbal", "smoky", "spicy", "creamy", "fruity",
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":8000",
		DataDir:                 "data/ledger",
		SyncWrites:              true,
		CatalogPath:             "data/drinks.json",
		TasteAxes:               append([]string(nil), DefaultTasteAxes...),
		SpiritWeight:            2.0,
		TagWeight:               1.2,
		SeasonWeight:            0.8,
		TasteWeight:             1.0,
		DislikeWeight:           0.5,
		HistoryWeight:           1.0,
		NegativeHistoryWeight:   0.5,
		PositiveRating:          4,
		NegativeRating:          2,
		TasteThreshold:          1,
		TopTagsLimit:            5,
		TopSeasonsLimit:         3,
		DefaultK:                48,
		DefaultSimilarK:         20,
		MaxK:                    200,
		DefaultPageSize:         24,
		MaxPageSize:             100,
		ParallelScanThreshold:   4096,
		EventQueueSize:          10_000,
		WorkerCount:             runtime.NumCPU(),
		DedupeSize:              100_000,
		DefaultUserID:           "local",
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		RateLimitRequests:       120,
		RateLimitWindowMS:       60_000,
		BreakerFailureThreshold: 5,
		BreakerTimeoutMS:        10_000,
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.PositiveRating < 1 || c.PositiveRating > 5:
		return fmt.Errorf("%w: positive_rating must be in [1,5]", ErrInvalidConfig)
	case c.NegativeRating < 0 || c.NegativeRating >= c.PositiveRating:
		return fmt.Errorf("%w: negative_rating must be below positive_rating", ErrInvalidConfig)
	case c.SpiritWeight < 0 || c.TagWeight < 0 || c.SeasonWeight < 0 || c.TasteWeight < 0:
		return fmt.Errorf("%w: block weights must not be negative", ErrInvalidConfig)
	case c.DefaultK < 1 || c.DefaultSimilarK < 1 || c.MaxK < c.DefaultK || c.MaxK < c.DefaultSimilarK:
		return fmt.Errorf("%w: default_k and default_similar_k must be in [1,max_k]", ErrInvalidConfig)
	case c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize:
		return fmt.Errorf("%w: default_page_size must be in [1,max_page_size]", ErrInvalidConfig)
	case c.EventQueueSize < 1 || c.WorkerCount < 1:
		return fmt.Errorf("%w: queue_size and worker_count must be positive", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}
