package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/models"
)

// ListMessagesHandler returns the chat history oldest first and marks the
// partner's messages read.
func (s *Server) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	msgs, err := s.Store.ListMessages(r.Context(), conn.ID, userID)
	if err != nil {
		s.serverError(w, r, err, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []*models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessageHandler stores a message and pushes it to live subscribers.
func (s *Server) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
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

	msg, err := s.postMessage(r, conn, userID, trimmed(req.Content))
	if err != nil {
		s.serverError(w, r, err, "failed to send message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// PresenceHandler reports whether each member is online.
func (s *Server) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	ids := []uuid.UUID{conn.UserID}
	if conn.PairedWithID != nil {
		ids = append(ids, *conn.PairedWithID)
	}

	out := make(map[string]models.Presence, len(ids))
	if s.Hub == nil {
		for _, id := range ids {
			out[id.String()] = models.Presence{}
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	presence, err := s.Hub.Presence(r.Context(), ids)
	if err != nil {
		s.serverError(w, r, err, "failed to load presence")
		return
	}
	for _, id := range ids {
		out[id.String()] = presence[id]
	}
	writeJSON(w, http.StatusOK, out)
}

// postMessage persists content from userID and broadcasts it.
func (s *Server) postMessage(r *http.Request, conn *models.Connection, userID uuid.UUID, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		Content:      strings.TrimSpace(content),
		UserID:       userID,
		ConnectionID: conn.ID,
		User:         memberSummary(conn, userID),
	}
	if err := s.Store.CreateMessage(r.Context(), msg); err != nil {
		return nil, err
	}
	if s.Hub != nil {
		s.Hub.Broadcast(r.Context(), msg)
	}
	return msg, nil
}

func memberSummary(conn *models.Connection, userID uuid.UUID) *models.UserSummary {
	switch {
	case conn.User != nil && conn.User.ID == userID:
		return conn.User
	case conn.PairedWith != nil && conn.PairedWith.ID == userID:
		return conn.PairedWith
	}
	return nil
}
