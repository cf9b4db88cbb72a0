// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	eventqueue "github.com/okian/shaker/internal/adapters/mq/queue"
	workerpool "github.com/okian/shaker/internal/adapters/mq/worker"
	"github.com/okian/shaker/internal/adapters/ledger"
	"github.com/okian/shaker/internal/adapters/repository"
	"github.com/okian/shaker/internal/config"
	"github.com/okian/shaker/internal/domain/catalog"
	"github.com/okian/shaker/internal/domain/dedupe"
	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/profile"
	"github.com/okian/shaker/internal/domain/recommend"
	"github.com/okian/shaker/internal/domain/search"
	"github.com/okian/shaker/internal/domain/similarity"
	"github.com/okian/shaker/internal/domain/taste"
	"github.com/okian/shaker/pkg/logger"
	"github.com/okian/shaker/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies of the recommender.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	ledger     *ledger.Ledger
	catalog    *catalog.Store
	profiles   *profile.Aggregator
	popularity *repository.TreapStore
	engine     *recommend.Engine
	search     *search.Service
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool

	ledgerOpts []ledger.Option

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedgerOptions appends options used when the ledger is opened.
func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(s *Service) {
		s.ledgerOpts = append(s.ledgerOpts, opts...)
	}
}

// New constructs a Service from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the catalog, opens the ledger, rebuilds the popularity index
// and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting recommender service...")

	snap, err := s.loadCatalog(ctx)
	if err != nil {
		return err
	}
	s.catalog = catalog.NewStore(snap)
	metrics.UpdateCatalogSize(snap.Len())

	lopts := append([]ledger.Option{
		ledger.WithCatalog(s.catalog),
		ledger.WithSyncWrites(cfg.SyncWrites),
		ledger.WithLogger(s.logger.Named("ledger")),
	}, s.ledgerOpts...)
	if s.ledger, err = ledger.Open(cfg.DataDir, lopts...); err != nil {
		return err
	}

	s.profiles = profile.New(s.ledger, s.catalog,
		profile.WithTasteThreshold(cfg.TasteThreshold),
		profile.WithSummaryLimits(cfg.TopTagsLimit, cfg.TopSeasonsLimit),
		profile.WithBreaker(cfg.BreakerFailureThreshold, time.Duration(cfg.BreakerTimeoutMS)*time.Millisecond),
		profile.WithLogger(s.logger.Named("profile")),
	)
	s.popularity = repository.NewTreapStore(ctx)
	if err := s.replayPopularity(ctx); err != nil {
		_ = s.popularity.Close()
		_ = s.ledger.Close()
		return err
	}
	s.engine = recommend.New(s.catalog, s.profiles, s.popularity,
		recommend.WithMaxK(cfg.MaxK),
		recommend.WithLogger(s.logger.Named("recommend")),
	)
	s.search = search.New(s.catalog, search.WithMaxPageSize(cfg.MaxPageSize))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.EventQueueSize))
	s.workerPool = workerpool.NewPool(cfg.WorkerCount, s.eventQueue, s.popularity)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "recommender service started",
		logger.Int("drinks", snap.Len()),
		logger.Int("popular_drinks", s.popularity.Count(ctx)),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queue_size", cfg.EventQueueSize),
		logger.Int("dedupe_size", cfg.DedupeSize),
	)
	return nil
}

func (s *Service) loadCatalog(ctx context.Context) (*catalog.Snapshot, error) {
	const op = "service.load_catalog"
	cfg := s.cfg
	drinks, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, model.WrapKind(op, model.ErrUnavailable, err)
	}
	snap, err := catalog.Build(ctx, drinks,
		catalog.WithTasteAxes(cfg.TasteAxes),
		catalog.WithVectorizerOptions(
			taste.WithWeights(taste.Weights{
				Spirit:          cfg.SpiritWeight,
				Tag:             cfg.TagWeight,
				Season:          cfg.SeasonWeight,
				Taste:           cfg.TasteWeight,
				Dislike:         cfg.DislikeWeight,
				History:         cfg.HistoryWeight,
				NegativeHistory: cfg.NegativeHistoryWeight,
			}),
			taste.WithRatingThresholds(cfg.PositiveRating, cfg.NegativeRating),
		),
		catalog.WithIndexOptions(similarity.WithParallelThreshold(cfg.ParallelScanThreshold)),
	)
	if err != nil {
		return nil, model.WrapKind(op, model.ErrUnavailable, err)
	}
	s.logger.Info(ctx, "catalog loaded",
		logger.String("path", cfg.CatalogPath),
		logger.Int("drinks", snap.Len()),
	)
	return snap, nil
}

// replayPopularity rebuilds positive-rating counts from the ledger's
// latest-per-pair index.
func (s *Service) replayPopularity(ctx context.Context) error {
	s.popularity.Reset(ctx)
	counts := map[string]int64{}
	err := s.ledger.Latest(ctx, func(e ledger.LatestEntry) error {
		if e.Rating >= s.cfg.PositiveRating {
			counts[e.DrinkID]++
		}
		return nil
	})
	if err != nil {
		return err
	}
	for id, n := range counts {
		if _, err := s.popularity.Adjust(ctx, id, n); err != nil {
			return model.Wrap("service.replay_popularity", err)
		}
	}
	return nil
}

// Stop drains the worker pool and closes storage.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping recommender service...")

	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := s.popularity.Close(); err != nil {
		s.logger.Warn(ctx, "popularity store close", logger.Error(err))
	}
	if err := s.ledger.Close(); err != nil {
		s.logger.Error(ctx, "ledger close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "recommender service stopped")
}

// Browse pages through the catalog.
func (s *Service) Browse(ctx context.Context, f model.Filters, page, pageSize int) (search.Page, error) {
	return s.search.Browse(ctx, f, page, pageSize)
}

// Search runs a free-text query over the catalog.
func (s *Service) Search(ctx context.Context, q string, f model.Filters, page, pageSize int) (search.Page, error) {
	return s.search.Search(ctx, q, f, page, pageSize)
}

// Facets returns the catalog vocabulary with counts.
func (s *Service) Facets(ctx context.Context) (model.Facets, error) {
	return s.search.Facets(ctx)
}

// Get returns one drink.
func (s *Service) Get(ctx context.Context, id string) (model.Drink, error) {
	return s.search.Get(ctx, id)
}

// Recommend ranks drinks for a user.
func (s *Service) Recommend(ctx context.Context, req recommend.Request) (recommend.Result, error) {
	return s.engine.Recommend(ctx, req)
}

// Similar returns the neighbors of a drink.
func (s *Service) Similar(ctx context.Context, id string, k int) (model.Drink, []model.Neighbor, error) {
	return s.engine.Similar(ctx, id, k)
}

// Profile derives a user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (model.UserProfile, error) {
	return s.profiles.Profile(ctx, userID)
}

// SubmitRating appends a rating and projects its popularity change.
func (s *Service) SubmitRating(ctx context.Context, ev model.RatingEvent) (model.RatingEvent, error) {
	res, err := s.ledger.Append(ctx, ev)
	if err != nil {
		return model.RatingEvent{}, err
	}

	delta := s.positive(res.Event.Rating)
	if res.Previous != nil {
		delta -= s.positive(*res.Previous)
	}
	if delta != 0 {
		d := model.PopularityDelta{DrinkID: res.Event.DrinkID, Delta: delta}
		if err := s.eventQueue.Enqueue(ctx, d); err != nil {
			s.logger.Warn(ctx, "popularity queue rejected delta, applying inline",
				logger.String("drink_id", d.DrinkID), logger.Error(err))
			if _, err := s.popularity.Adjust(ctx, d.DrinkID, d.Delta); err != nil {
				s.logger.Error(ctx, "popularity adjust failed",
					logger.String("drink_id", d.DrinkID), logger.Error(err))
			}
		}
		metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	}
	return res.Event, nil
}

func (s *Service) positive(rating int) int64 {
	if rating >= s.cfg.PositiveRating {
		return 1
	}
	return 0
}

// SavePreferences normalizes and stores onboarding choices.
func (s *Service) SavePreferences(ctx context.Context, p model.Preferences) (model.Preferences, error) {
	p.Likes = model.Likes{
		Spirits: normalizeLabels(p.Likes.Spirits),
		Tags:    normalizeLabels(p.Likes.Tags),
		Seasons: normalizeLabels(p.Likes.Seasons),
	}
	p.Dislikes = model.Dislikes{
		Tags:    normalizeLabels(p.Dislikes.Tags),
		Seasons: normalizeLabels(p.Dislikes.Seasons),
	}
	if err := s.ledger.SavePreferences(ctx, p); err != nil {
		return model.Preferences{}, err
	}
	return p, nil
}

func normalizeLabels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = taste.Normalize(l); l != "" && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// TopN returns the most positively rated drinks.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.popularity.TopN(ctx, n)
}

// Rank returns one drink's position in the popularity ranking.
func (s *Service) Rank(ctx context.Context, drinkID string) (repository.Entry, error) {
	return s.popularity.Rank(ctx, drinkID)
}

// ReloadCatalog re-reads the catalog file and swaps the snapshot. On
// failure the current snapshot stays in place.
func (s *Service) ReloadCatalog(ctx context.Context) (int, error) {
	snap, err := s.loadCatalog(ctx)
	if err != nil {
		metrics.RecordCatalogReload("error")
		return 0, err
	}
	s.catalog.Swap(snap)
	metrics.UpdateCatalogSize(snap.Len())
	metrics.RecordCatalogReload("ok")
	return snap.Len(), nil
}

// SeenAndRecord atomically checks if an idempotency key was seen and
// records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordRatingDuplicate()
	}
	return seen
}

// Unrecord forgets a key so the request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the current number of remembered idempotency keys.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.EventQueueSize,
		"dedupeSize":  s.cfg.DedupeSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.eventQueue.Len(ctx)
	popular := s.popularity.Count(ctx)
	stats["queueLength"] = queueLen
	stats["popularDrinks"] = popular
	stats["processedDeltas"] = s.workerPool.Processed()
	stats["idempotencyKeys"] = s.deduper.Size()
	if snap := s.catalog.Current(); snap != nil {
		stats["catalogSize"] = snap.Len()
		stats["catalogVersion"] = s.catalog.Version()
		stats["catalogBuiltAt"] = snap.BuiltAt()
	}
	if n, err := s.ledger.Count(ctx); err == nil {
		stats["ratingEvents"] = n
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdatePopularDrinks(popular)
	metrics.UpdateWorkerCount(s.workerPool.Size())
	return stats
}
