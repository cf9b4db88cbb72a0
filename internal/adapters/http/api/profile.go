package api

import (
	"net/http"

	"github.com/okian/shaker/internal/domain/model"
	"github.com/okian/shaker/internal/validation"
)

type profileQuery struct {
	UserID string `json:"user_id" validate:"userid"`
}

// handleProfile handles GET /profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	q := profileQuery{UserID: s.userID(r.URL.Query().Get("user_id"))}
	if err := validation.ValidateStruct(&q); err != nil {
		s.writeError(w, r, model.Wrap("api.profile", err))
		return
	}
	p, err := s.deps.Profile(r.Context(), q.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := ProfileResponse{
		UserID:       p.UserID,
		RatingsCount: p.RatingsCount,
		HasTaste:     p.HasTaste,
	}
	if !p.Likes.Empty() {
		likes := p.Likes
		resp.Likes = &likes
	}
	if !p.Dislikes.Empty() {
		dislikes := p.Dislikes
		resp.Dislikes = &dislikes
	}
	if !p.Summary.Empty() {
		sum := p.Summary
		resp.Summary = &sum
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePutPreferences handles PUT /preferences.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := decode(w, r, "api.put_preferences", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.SavePreferences(r.Context(), model.Preferences{
		UserID:   s.userID(req.UserID),
		Likes:    req.Likes,
		Dislikes: req.Dislikes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
