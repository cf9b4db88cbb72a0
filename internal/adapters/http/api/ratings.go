package api

import (
	"net/http"
	"strings"

	"github.com/okian/shaker/internal/domain/dedupe"
	"github.com/okian/shaker/internal/domain/model"
)

// IdempotencyHeader lets clients retry POST /ratings safely.
const IdempotencyHeader = "Idempotency-Key"

// handlePostRating handles POST /ratings.
func (s *Server) handlePostRating(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RatingRequest
	if err := decode(w, r, "api.post_rating", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := s.userID(req.UserID)

	var key string
	if raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader)); raw != "" {
		key = dedupe.Key(userID, raw)
		if s.deps.SeenAndRecord(ctx, key) {
			writeJSON(w, http.StatusOK, RatingResponse{Status: "duplicate"})
			return
		}
	}

	ev, err := s.deps.SubmitRating(ctx, model.RatingEvent{
		UserID:  userID,
		DrinkID: req.DrinkID,
		Rating:  int(req.Rating),
		Tried:   req.Tried,
	})
	if err != nil {
		if key != "" {
			// Roll back so the client can retry with the same key.
			s.deps.Unrecord(ctx, key)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RatingResponse{Status: "created", Event: &ev})
}
