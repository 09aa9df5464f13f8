package handlers

import (
	"errors"
	"net/http"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

type memoryRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	ImageURL    *string `json:"imageUrl"`
}

type memoryResponse struct {
	*models.Memory
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

func (s *Server) ListMemoriesHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	memories, err := s.Store.ListMemories(r.Context(), conn.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to list memories")
		return
	}
	if memories == nil {
		memories = []*models.Memory{}
	}
	writeJSON(w, http.StatusOK, memories)
}

func (s *Server) CreateMemoryHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	title, desc, rawDate := trimmed(req.Title), trimmed(req.Description), trimmed(req.Date)
	if title == "" || desc == "" || rawDate == "" {
		writeError(w, http.StatusBadRequest, "title, description and date are required")
		return
	}
	date, err := parseDate(rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	m := &models.Memory{
		Title:        title,
		Description:  desc,
		Date:         date,
		ImageURL:     optional(req.ImageURL),
		UserID:       userID,
		ConnectionID: conn.ID,
	}
	res, err := s.Store.CreateMemory(r.Context(), m)
	if err != nil {
		s.serverError(w, r, err, "failed to create memory")
		return
	}
	s.recordAward(res, tree.ActionMemory)
	writeJSON(w, http.StatusCreated, memoryResponse{Memory: m, TreeUpdate: res})
}

func (s *Server) GetMemoryHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "memoryId")
	if err != nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	m, err := s.Store.GetMemory(r.Context(), conn.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load memory")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMemoryHandler removes the memory and then its image.
func (s *Server) DeleteMemoryHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "memoryId")
	if err != nil {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	image, err := s.Store.DeleteMemory(r.Context(), conn.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to delete memory")
		return
	}
	s.removeFile(r, conn, image)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "memory deleted"})
}
