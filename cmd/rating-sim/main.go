package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/shaker/internal/simulate"
	"github.com/okian/shaker/pkg/logger"
)

// Default configuration constants.
const (
	defaultUsers          = 200
	defaultRatingsPerUser = 20
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultK              = 10
	defaultPositiveRating = 4
	defaultDuplicateRate  = 0.05
	defaultTimeout        = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

const usage = `Shaker Rating Simulator
=======================

Submits ratings for simulated users against a running recommender, then
checks every user's /profile ratings_count and that /recs does not return
drinks the user already loves.

The write endpoints are rate limited per client IP; start the server with
SHAKER_RATE_LIMIT_REQUESTS=0 for large runs.

Usage:
  go run ./cmd/rating-sim [options]

Options:
`

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Base URL of the service")
		users     = flag.Int("users", defaultUsers, "Number of simulated users")
		ratings   = flag.Int("ratings", defaultRatingsPerUser, "Ratings per user")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent users in flight")
		k         = flag.Int("k", defaultK, "Size of the /recs check")
		positive  = flag.Int("positive", defaultPositiveRating, "Lowest rating the server counts as loved")
		dupRate   = flag.Float64("dup-rate", defaultDuplicateRate, "Share of ratings resent with the same Idempotency-Key")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed") //nolint:gosec // clock is positive
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Write generated plans to this JSON file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every failed request")
	)
	flag.Usage = func() {
		os.Stderr.WriteString(usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	_, err := simulate.Run(ctx, &simulate.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		RatingsPerUser: *ratings,
		Workers:        *workers,
		K:              *k,
		PositiveRating: *positive,
		DuplicateRate:  *dupRate,
		Seed:           *seed,
		Timeout:        *timeout,
		OutputFile:     *output,
		Verbose:        *verbose,
	})
	if err != nil {
		log.Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "simulation passed")
}
