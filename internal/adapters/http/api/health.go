package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/shaker/pkg/metrics"
)

// handleHealth serves the custom Prometheus registry.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

type rootResponse struct {
	OK        bool     `json:"ok"`
	Message   string   `json:"message"`
	Endpoints []string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		OK:      true,
		Message: "Cocktail Recommender API",
		Endpoints: []string{
			"/drinks", "/search", "/facets", "/similar/{id}", "/recs",
			"/ratings", "/profile", "/preferences", "/popular", "/popular/{id}",
			"/api-docs",
		},
	})
}
