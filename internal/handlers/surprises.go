package handlers

import (
	"errors"
	"net/http"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/sirupsen/logrus"
)

type surpriseResponse struct {
	*models.Surprise
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

// ListSurprisesHandler returns the surprises the caller has not seen yet.
func (s *Server) ListSurprisesHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	surprises, err := s.Store.ListUnseenSurprises(r.Context(), conn.ID, userID)
	if err != nil {
		s.serverError(w, r, err, "failed to list surprises")
		return
	}
	if surprises == nil {
		surprises = []*models.Surprise{}
	}
	writeJSON(w, http.StatusOK, surprises)
}

func (s *Server) CreateSurpriseHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	var req struct {
		ImageURL *string `json:"imageUrl"`
		Message  *string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || trimmed(req.ImageURL) == "" {
		writeError(w, http.StatusBadRequest, "imageUrl is required")
		return
	}

	sp := &models.Surprise{
		ImageURL:     trimmed(req.ImageURL),
		Message:      optional(req.Message),
		UserID:       userID,
		ConnectionID: conn.ID,
	}
	res, err := s.Store.CreateSurprise(r.Context(), sp)
	if errors.Is(err, database.ErrPendingSurprise) {
		writeError(w, http.StatusBadRequest, "you already have a surprise waiting to be seen")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to create surprise")
		return
	}
	s.recordAward(res, tree.ActionSurprise)
	writeJSON(w, http.StatusCreated, surpriseResponse{Surprise: sp, TreeUpdate: res})
}

// SeenSurpriseHandler marks the caller's side seen, deleting the surprise
// once both members have seen it.
func (s *Server) SeenSurpriseHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "surpriseId")
	if err != nil {
		writeError(w, http.StatusNotFound, "surprise not found")
		return
	}

	sp, err := s.Store.GetSurprise(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "surprise not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load surprise")
		return
	}
	if sp.ConnectionID != conn.ID {
		writeError(w, http.StatusForbidden, "surprise belongs to another connection")
		return
	}

	if sp.SeenBy(userID) {
		writeJSON(w, http.StatusOK, sp)
		return
	}

	updated, deleted, err := s.Store.MarkSurpriseSeen(r.Context(), id, userID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "surprise not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to mark surprise seen")
		return
	}
	if deleted {
		image := updated.ImageURL
		s.removeFile(r, conn, &image)
		s.Logger.WithFields(logrus.Fields{"connection": conn.ID, "surprise": id}).Debug("surprise removed after both views")
		writeJSON(w, http.StatusOK, map[string]string{"message": "surprise seen and deleted"})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
