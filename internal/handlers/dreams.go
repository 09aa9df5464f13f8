package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

type dreamRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	LinkURL     *string `json:"linkUrl"`
	Category    *string `json:"category"`
}

type dreamResponse struct {
	*models.Dream
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

type dreamCommentResponse struct {
	*models.DreamComment
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

func (s *Server) ListDreamsHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	dreams, err := s.Store.ListDreams(r.Context(), conn.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to list dreams")
		return
	}
	if dreams == nil {
		dreams = []*models.Dream{}
	}
	writeJSON(w, http.StatusOK, dreams)
}

func (s *Server) CreateDreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	var req dreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	title, desc := trimmed(req.Title), trimmed(req.Description)
	if title == "" || desc == "" {
		writeError(w, http.StatusBadRequest, "title and description are required")
		return
	}
	category := models.DreamOther
	if c := trimmed(req.Category); c != "" {
		category = models.DreamCategory(strings.ToUpper(c))
		if !category.Valid() {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
	}

	d := &models.Dream{
		Title:        title,
		Description:  desc,
		ImageURL:     optional(req.ImageURL),
		LinkURL:      optional(req.LinkURL),
		Category:     category,
		UserID:       userID,
		ConnectionID: conn.ID,
		Comments:     []models.DreamComment{},
	}
	res, err := s.Store.CreateDream(r.Context(), d)
	if err != nil {
		s.serverError(w, r, err, "failed to create dream")
		return
	}
	s.recordAward(res, tree.ActionDream)
	writeJSON(w, http.StatusCreated, dreamResponse{Dream: d, TreeUpdate: res})
}

// DeleteDreamHandler lets the creator remove a dream with its comments.
func (s *Server) DeleteDreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	d, ok := s.loadDream(w, r, conn)
	if !ok {
		return
	}
	if d.UserID != userID {
		writeError(w, http.StatusForbidden, "only the creator can delete this dream")
		return
	}

	image, err := s.Store.DeleteDream(r.Context(), conn.ID, d.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dream not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to delete dream")
		return
	}
	s.removeFile(r, conn, image)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "dream deleted"})
}

func (s *Server) CreateDreamCommentHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	var req struct {
		Content *string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil || trimmed(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	d, ok := s.loadDream(w, r, conn)
	if !ok {
		return
	}

	c := &models.DreamComment{
		Content: trimmed(req.Content),
		DreamID: d.ID,
		UserID:  userID,
	}
	res, err := s.Store.AddDreamComment(r.Context(), conn.ID, c)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dream not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to add comment")
		return
	}
	s.recordAward(res, tree.ActionDreamComment)
	writeJSON(w, http.StatusCreated, dreamCommentResponse{DreamComment: c, TreeUpdate: res})
}

func (s *Server) loadDream(w http.ResponseWriter, r *http.Request, conn *models.Connection) (*models.Dream, bool) {
	id, err := pathID(r, "dreamId")
	if err != nil {
		writeError(w, http.StatusNotFound, "dream not found")
		return nil, false
	}
	d, err := s.Store.GetDream(r.Context(), conn.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dream not found")
		return nil, false
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load dream")
		return nil, false
	}
	return d, true
}
