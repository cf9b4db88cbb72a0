package simulate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/shaker/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run generates rating plans, submits them and verifies the results.
// A verification failure is reported as ErrVerification along with the
// collected stats.
func Run(ctx context.Context, cfg *Config) (Stats, error) {
	if err := cfg.validate(); err != nil {
		return Stats{}, err
	}
	log := logger.Get().Named("rating-sim")
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting rating simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("ratings_per_user", cfg.RatingsPerUser),
		logger.Int("workers", cfg.Workers),
		logger.Float64("duplicate_rate", cfg.DuplicateRate),
	)

	// Step 1: fetch the catalog
	ids, err := c.drinkIDs(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("fetch catalog: %w", err)
	}
	if len(ids) == 0 {
		return Stats{}, ErrEmptyCatalog
	}
	stats := Stats{Drinks: len(ids), Users: cfg.Users}

	// Step 2: generate plans
	plans := generatePlans(cfg, ids)
	for _, p := range plans {
		stats.RatingsPlanned += len(p.Ratings)
	}
	if cfg.OutputFile != "" {
		if err := savePlans(cfg.OutputFile, plans); err != nil {
			log.Warn(ctx, "failed to save plans", logger.Error(err))
		}
	}

	// Step 3: submit, one goroutine per user in flight
	failedUsers := submit(ctx, cfg, c, plans, &stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Step 4: verify profiles and recommendations
	if err := verify(ctx, cfg, c, plans, failedUsers, len(ids), &stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "final statistics",
		logger.Int("drinks", stats.Drinks),
		logger.Int("ratings_planned", stats.RatingsPlanned),
		logger.Int("ratings_created", stats.RatingsCreated),
		logger.Int("ratings_duplicate", stats.RatingsDuplicate),
		logger.Int("ratings_failed", stats.RatingsFailed),
		logger.Int("profiles_checked", stats.ProfilesChecked),
		logger.Int("profile_mismatches", stats.ProfileMismatches),
		logger.Int("recs_checked", stats.RecsChecked),
		logger.Int("recs_violations", stats.RecsViolations),
		logger.Duration("duration", stats.Duration),
	)
	if stats.ProfileMismatches > 0 || stats.RecsViolations > 0 {
		return stats, fmt.Errorf("%w: %d profile mismatches, %d recs violations",
			ErrVerification, stats.ProfileMismatches, stats.RecsViolations)
	}
	return stats, nil
}

// submit posts every plan in order. Users are spread over cfg.Workers
// goroutines; one user's ratings are never reordered. It returns the users
// with at least one failed request.
func submit(ctx context.Context, cfg *Config, c *client, plans []Plan, stats *Stats) map[string]bool {
	log := logger.Get().Named("rating-sim")
	var created, duplicate, failed atomic.Int64
	var mu sync.Mutex
	failedUsers := map[string]bool{}

	planCh := make(chan Plan, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range planCh {
				for _, r := range p.Ratings {
					if ctx.Err() != nil {
						return
					}
					status, err := c.rate(ctx, p.UserID, r)
					switch {
					case err != nil:
						failed.Add(1)
						mu.Lock()
						failedUsers[p.UserID] = true
						mu.Unlock()
						if cfg.Verbose {
							log.Warn(ctx, "rating failed", logger.String("user_id", p.UserID), logger.Error(err))
						}
					case status == "duplicate":
						duplicate.Add(1)
					default:
						created.Add(1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(planCh)
		for _, p := range plans {
			select {
			case <-ctx.Done():
				return
			case planCh <- p:
			}
		}
	}()
	wg.Wait()

	stats.RatingsCreated = int(created.Load())
	stats.RatingsDuplicate = int(duplicate.Load())
	stats.RatingsFailed = int(failed.Load())
	log.Info(ctx, "rating submission completed",
		logger.Int("created", stats.RatingsCreated),
		logger.Int("duplicate", stats.RatingsDuplicate),
		logger.Int("failed", stats.RatingsFailed),
	)
	return failedUsers
}

func savePlans(path string, plans []Plan) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plans: %w", err)
	}
	return os.WriteFile(path, raw, filePermission)
}

// verify checks every fully submitted user concurrently.
func verify(ctx context.Context, cfg *Config, c *client, plans []Plan, failedUsers map[string]bool, drinks int, stats *Stats) error {
	log := logger.Get().Named("rating-sim")
	var checked, mismatches, recsChecked, violations atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range plans {
		if failedUsers[p.UserID] {
			continue
		}
		g.Go(func() error {
			final := p.Final()
			prof, err := c.profile(gctx, p.UserID)
			if err != nil {
				return fmt.Errorf("profile %s: %w", p.UserID, err)
			}
			checked.Add(1)
			if prof.RatingsCount != len(final) {
				mismatches.Add(1)
				log.Warn(gctx, "ratings_count mismatch",
					logger.String("user_id", p.UserID),
					logger.Int("want", len(final)),
					logger.Int("got", prof.RatingsCount),
				)
			}

			loved := map[string]bool{}
			for id, r := range final {
				if r >= cfg.PositiveRating {
					loved[id] = true
				}
			}
			// Loved drinks may back-fill when too few others remain.
			if drinks-len(loved) < cfg.K {
				return nil
			}
			recs, err := c.recs(gctx, p.UserID, cfg.K)
			if err != nil {
				return fmt.Errorf("recs %s: %w", p.UserID, err)
			}
			recsChecked.Add(1)
			for _, it := range recs.Items {
				if loved[it.ID] {
					violations.Add(1)
					log.Warn(gctx, "recommended a drink the user already loves",
						logger.String("user_id", p.UserID), logger.String("drink_id", it.ID))
					break
				}
			}
			return nil
		})
	}
	err := g.Wait()
	stats.ProfilesChecked = int(checked.Load())
	stats.ProfileMismatches = int(mismatches.Load())
	stats.RecsChecked = int(recsChecked.Load())
	stats.RecsViolations = int(violations.Load())
	return err
}
