// Package search serves catalog browsing, free-text search and facets.
package search

import (
	"context"

	"github.com/okian/shaker/internal/domain/catalog"
	"github.com/okian/shaker/internal/domain/model"
)

// Catalog hands out the current catalog snapshot.
type Catalog interface {
	Current() *catalog.Snapshot
}

// Page is one page of query results.
type Page struct {
	Items    []model.Drink
	Total    int
	Page     int
	PageSize int
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithMaxPageSize caps page_size.
func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPageSize = n
		}
	}
}

// Service reads from whichever snapshot is current when a call starts.
type Service struct {
	catalog     Catalog
	maxPageSize int
}

// New creates a Service.
func New(cat Catalog, opts ...Option) *Service {
	s := &Service{catalog: cat, maxPageSize: 100}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) snapshot(op string) (*catalog.Snapshot, error) {
	snap := s.catalog.Current()
	if snap == nil {
		return nil, model.WrapKind(op, model.ErrUnavailable, catalog.ErrNoSnapshot)
	}
	return snap, nil
}

// Browse lists drinks matching facet filters. Any free text in f is ignored.
func (s *Service) Browse(ctx context.Context, f model.Filters, page, pageSize int) (Page, error) {
	f.Q = ""
	return s.query(ctx, "search.browse", f, page, pageSize)
}

// Search lists drinks matching facet filters and the free-text query q.
func (s *Service) Search(ctx context.Context, q string, f model.Filters, page, pageSize int) (Page, error) {
	f.Q = q
	return s.query(ctx, "search.search", f, page, pageSize)
}

func (s *Service) query(ctx context.Context, op string, f model.Filters, page, pageSize int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, model.Wrap(op, err)
	}
	if pageSize > s.maxPageSize {
		return Page{}, model.NewKind(op, model.ErrValidation, "page_size must be <= %d, got %d", s.maxPageSize, pageSize)
	}
	snap, err := s.snapshot(op)
	if err != nil {
		return Page{}, err
	}
	items, total, err := snap.Query(f, page, pageSize)
	if err != nil {
		return Page{}, model.Wrap(op, err)
	}
	return Page{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Facets returns label counts of the current catalog.
func (s *Service) Facets(ctx context.Context) (model.Facets, error) {
	if err := ctx.Err(); err != nil {
		return model.Facets{}, model.Wrap("search.facets", err)
	}
	snap, err := s.snapshot("search.facets")
	if err != nil {
		return model.Facets{}, err
	}
	return snap.Facets(), nil
}

// Get returns one drink.
func (s *Service) Get(ctx context.Context, id string) (model.Drink, error) {
	if err := ctx.Err(); err != nil {
		return model.Drink{}, model.Wrap("search.get", err)
	}
	snap, err := s.snapshot("search.get")
	if err != nil {
		return model.Drink{}, err
	}
	return snap.Get(id)
}
