package api

import (
	"net/http"

	"github.com/okian/shaker/pkg/logger"
)

// handleReload handles POST /admin/catalog/reload.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.ReloadCatalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "catalog reloaded", logger.Int("total", n))
	writeJSON(w, http.StatusOK, ReloadResponse{Total: n})
}
