package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"oracle-bot/internal/domain"
	"oracle-bot/internal/domain/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func buyerIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "buyerID"), 10, 64)
	return id, err == nil && id != 0
}

// handleGetSession shows a buyer's purchase state for support.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := buyerIDParam(r)
	if !ok {
		http.Error(w, "bad buyer id", http.StatusBadRequest)
		return
	}
	sess, err := s.sessions.Get(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case err != nil:
		s.log.Error().Err(err).Int64("buyer_id", id).Msg("admin get session")
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

// handleDeleteSession resets a stuck buyer to idle. There is no unlock
// counterpart; only a verified payment notification grants a question.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := buyerIDParam(r)
	if !ok {
		http.Error(w, "bad buyer id", http.StatusBadRequest)
		return
	}
	if err := s.sessions.Clear(r.Context(), id); err != nil {
		s.log.Error().Err(err).Int64("buyer_id", id).Msg("admin clear session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.log.Info().Int64("buyer_id", id).Str("stage", model.StageIdle.String()).Msg("session reset by admin")
	w.WriteHeader(http.StatusNoContent)
}
