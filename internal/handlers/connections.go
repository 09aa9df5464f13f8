package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/pairing"
	"github.com/sirupsen/logrus"
)

const codeAttempts = 5

// ListConnectionsHandler returns every connection the caller belongs to.
func (s *Server) ListConnectionsHandler(w http.ResponseWriter, r *http.Request) {
	conns, err := s.Store.ListConnections(r.Context(), currentUser(r))
	if err != nil {
		s.serverError(w, r, err, "failed to list connections")
		return
	}
	if conns == nil {
		conns = []*models.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// CreateConnectionHandler hands out a pairing code, reusing the caller's
// open connection if one exists.
func (s *Server) CreateConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)

	existing, err := s.Store.OpenConnection(r.Context(), userID)
	if err == nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		s.serverError(w, r, err, "failed to load connection")
		return
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := pairing.GenerateCode()
		if err != nil {
			s.serverError(w, r, err, "failed to generate connection code")
			return
		}
		conn, err := s.Store.CreateConnection(r.Context(), userID, code)
		if errors.Is(err, database.ErrConflict) {
			continue
		}
		if err != nil {
			s.serverError(w, r, err, "failed to create connection")
			return
		}
		s.Logger.WithFields(logrus.Fields{"user": userID, "connection": conn.ID}).Info("connection created")
		writeJSON(w, http.StatusCreated, conn)
		return
	}
	s.serverError(w, r, errors.New("connection code space exhausted"), "failed to create connection")
}

// PairHandler joins the caller to the connection behind a code.
func (s *Server) PairHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConnectionCode string `json:"connectionCode"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ConnectionCode) == "" {
		writeError(w, http.StatusBadRequest, "connectionCode is required")
		return
	}
	userID := currentUser(r)
	code := strings.ToUpper(strings.TrimSpace(req.ConnectionCode))

	conn, err := s.Store.GetConnectionByCode(r.Context(), code)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "invalid connection code")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load connection")
		return
	}
	if conn.UserID == userID {
		writeError(w, http.StatusBadRequest, "you cannot pair with yourself")
		return
	}
	if conn.Paired() {
		writeError(w, http.StatusBadRequest, "connection code already used")
		return
	}

	paired, err := s.Store.Pair(r.Context(), conn.ID, userID)
	if errors.Is(err, database.ErrAlreadyPaired) {
		writeError(w, http.StatusBadRequest, "connection code already used")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to pair")
		return
	}

	s.Logger.WithFields(logrus.Fields{"user": userID, "connection": paired.ID}).Info("connection paired")
	writeJSON(w, http.StatusOK, paired)
}

// ActiveConnectionHandler returns the caller's paired connection or null.
func (s *Server) ActiveConnectionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("userId"))
	if err != nil || userID != currentUser(r) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	conn, err := s.Store.ActiveConnection(r.Context(), userID)
	if errors.Is(err, database.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"connection": nil})
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load active connection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"connection": conn})
}

// DisconnectHandler deletes a connection and everything hanging off it.
func (s *Server) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	images, err := s.Store.Disconnect(r.Context(), conn.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "connection not found or access denied")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to disconnect")
		return
	}
	for i := range images {
		s.removeFile(r, conn, &images[i])
	}

	s.Logger.WithFields(logrus.Fields{
		"user":       userID,
		"connection": conn.ID,
		"files":      len(images),
	}).Info("connection removed")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "connection removed"})
}
