package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/domain/search"
)

func filtersOf(r *http.Request) model.Filters {
	q := r.URL.Query()
	return model.Filters{
		Spirit: q.Get("spirit"),
		Tag:    q.Get("tag"),
		Season: q.Get("season"),
	}
}

func (s *Server) pageParams(r *http.Request, op string) (page, size int, err error) {
	if page, err = intParam(r, op, "page", 1); err != nil {
		return 0, 0, err
	}
	if size, err = intParam(r, op, "page_size", s.defaultPageSize); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Facets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleBrowse handles GET /drinks.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	page, size, err := s.pageParams(r, "api.browse")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Browse(r.Context(), filtersOf(r), page, size)
	s.writePage(w, r, res, err)
}

// handleSearch handles GET /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, size, err := s.pageParams(r, "api.search")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Search(r.Context(), r.URL.Query().Get("q"), filtersOf(r), page, size)
	s.writePage(w, r, res, err)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, p search.Page, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Items: cardsOf(p.Items), Total: p.Total, Page: p.Page})
}

// handleGetDrink handles GET /drinks/{id}.
func (s *Server) handleGetDrink(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleSimilar handles GET /similar/{id}.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	k, err := intParam(r, "api.similar", "k", s.defaultSimilarK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	src, neighbors, err := s.deps.Similar(r.Context(), chi.URLParam(r, "id"), k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]DrinkCard, len(neighbors))
	for i, n := range neighbors {
		items[i] = cardOf(n.Drink)
	}
	writeJSON(w, http.StatusOK, SimilarResponse{Items: items, Source: src})
}
