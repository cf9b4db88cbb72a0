package api

import (
	"net/http"

	"github.com/okian/shaker/internal/domain/recommend"
)

// handleRecs handles POST /recs.
func (s *Server) handleRecs(w http.ResponseWriter, r *http.Request) {
	var req RecsRequest
	if err := decode(w, r, "api.recs", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	k := s.defaultK
	if req.K != nil {
		k = *req.K
	}
	res, err := s.deps.Recommend(r.Context(), recommend.Request{
		UserID:   s.userID(req.UserID),
		Likes:    req.Likes,
		Dislikes: req.Dislikes,
		SeedIDs:  req.SeedIDs,
		K:        k,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]DrinkCard, len(res.Items))
	for i, it := range res.Items {
		items[i] = cardOf(it.Drink)
		items[i].Reason = it.Reasons
	}
	writeJSON(w, http.StatusOK, RecsResponse{Items: items, Mode: res.Mode})
}
