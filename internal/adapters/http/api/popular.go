package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/okian/shaker/internal/adapters/repository"
	"github.com/okian/shaker/internal/domain/model"
)

const maxPopularLimit = 100

// handlePopular handles GET /popular?limit=N.
func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	const op = "api.popular"
	limit, err := intParam(r, op, "limit", 10)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit < 1 || limit > maxPopularLimit {
		s.writeError(w, r, model.NewKind(op, model.ErrValidation, "limit must be between 1 and %d", maxPopularLimit))
		return
	}
	entries, err := s.deps.TopN(r.Context(), limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLimit) {
			err = model.WrapKind(op, model.ErrValidation, err)
		}
		s.writeError(w, r, err)
		return
	}
	items := make([]PopularEntry, 0, len(entries))
	for _, e := range entries {
		d, err := s.deps.Get(r.Context(), e.DrinkID)
		if err != nil {
			// Counts can outlive a drink removed by a catalog reload.
			continue
		}
		items = append(items, PopularEntry{Rank: len(items) + 1, Count: e.Count, Drink: cardOf(d)})
	}
	writeJSON(w, http.StatusOK, PopularResponse{Items: items})
}

// handlePopularRank handles GET /popular/{id}.
func (s *Server) handlePopularRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.popular_rank"
	id := chi.URLParam(r, "id")
	d, err := s.deps.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.deps.Rank(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = model.NewKind(op, model.ErrNotFound, "drink %q has no positive ratings", id)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PopularEntry{Rank: entry.Rank, Count: entry.Count, Drink: cardOf(d)})
}
