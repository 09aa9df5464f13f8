package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

// defaultNoteTTL applies to temporary notes created without expiresAt.
const defaultNoteTTL = 24 * time.Hour

type noteRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	IsTemporary bool    `json:"isTemporary"`
	ExpiresAt   *string `json:"expiresAt"`
}

type noteResponse struct {
	*models.Note
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

func (s *Server) ListNotesHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	notes, err := s.Store.ListNotes(r.Context(), conn.ID, s.now())
	if err != nil {
		s.serverError(w, r, err, "failed to list notes")
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) CreateNoteHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	title, content := trimmed(req.Title), trimmed(req.Content)
	if title == "" || content == "" {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	n := &models.Note{
		Title:        title,
		Content:      content,
		AuthorID:     userID,
		ConnectionID: conn.ID,
	}
	if req.IsTemporary || trimmed(req.ExpiresAt) != "" {
		now := s.now()
		expires := now.Add(defaultNoteTTL)
		if raw := trimmed(req.ExpiresAt); raw != "" {
			t, err := parseDate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid expiresAt")
				return
			}
			expires = t
		}
		if !expires.After(now) {
			writeError(w, http.StatusBadRequest, "expiresAt must be in the future")
			return
		}
		n.IsTemporary = true
		n.ExpiresAt = &expires
	}

	res, err := s.Store.CreateNote(r.Context(), n)
	if err != nil {
		s.serverError(w, r, err, "failed to create note")
		return
	}
	s.recordAward(res, tree.ActionNote)
	writeJSON(w, http.StatusCreated, noteResponse{Note: n, TreeUpdate: res})
}

func (s *Server) GetNoteHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	n, ok := s.loadNote(w, r, conn)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNoteHandler lets the note's author or the connection owner delete it.
func (s *Server) DeleteNoteHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	n, ok := s.loadNote(w, r, conn)
	if !ok {
		return
	}
	if n.AuthorID != userID && conn.UserID != userID {
		writeError(w, http.StatusForbidden, "you cannot delete this note")
		return
	}

	err := s.Store.DeleteNote(r.Context(), conn.ID, n.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to delete note")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "note deleted"})
}

// RateNoteHandler stores a 1..5 rating from the partner.
func (s *Server) RateNoteHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	var req struct {
		Rating *float64 `json:"rating"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Rating == nil {
		writeError(w, http.StatusBadRequest, "rating must be an integer between 1 and 5")
		return
	}
	rating := int(*req.Rating)
	if float64(rating) != *req.Rating || rating < 1 || rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be an integer between 1 and 5")
		return
	}

	n, ok := s.loadNote(w, r, conn)
	if !ok {
		return
	}
	if n.AuthorID == userID {
		writeError(w, http.StatusForbidden, "you cannot rate your own note")
		return
	}

	rated, err := s.Store.RateNote(r.Context(), conn.ID, n.ID, rating)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to rate note")
		return
	}
	writeJSON(w, http.StatusOK, rated)
}

func (s *Server) loadNote(w http.ResponseWriter, r *http.Request, conn *models.Connection) (*models.Note, bool) {
	id, err := pathID(r, "noteId")
	if err != nil {
		writeError(w, http.StatusNotFound, "note not found")
		return nil, false
	}
	n, err := s.Store.GetNote(r.Context(), conn.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "note not found")
		return nil, false
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load note")
		return nil, false
	}
	return n, true
}
