package handlers

import (
	"errors"
	"net/http"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/tree"
)

// GetTreeHandler returns the connection's tree with its progress fields.
func (s *Server) GetTreeHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	t, err := s.Store.GetTree(r.Context(), conn.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tree not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load tree")
		return
	}
	writeJSON(w, http.StatusOK, tree.Describe(t))
}

// WaterTreeHandler awards XP for actionType, planting the tree if needed.
func (s *Server) WaterTreeHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	var req struct {
		ActionType string `json:"actionType"`
	}
	// a missing or malformed body waters as MEMORY
	_ = decodeJSON(r, &req)
	action := tree.ParseAction(req.ActionType)

	res, err := s.Store.WaterTree(r.Context(), conn.ID, action)
	if err != nil {
		s.serverError(w, r, err, "failed to water tree")
		return
	}
	s.recordAward(res, action)
	writeJSON(w, http.StatusOK, res)
}
