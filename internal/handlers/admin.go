package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/sirupsen/logrus"
)

const activeWindow = 30 * 24 * time.Hour

// AdminCheckHandler tells the client whether the caller is an admin.
func (s *Server) AdminCheckHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.Store.GetUserByID(r.Context(), currentUser(r))
	if errors.Is(err, database.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": false})
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": u.IsAdmin()})
}

func (s *Server) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.Stats(r.Context(), s.now().Add(-activeWindow))
	if err != nil {
		s.serverError(w, r, err, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) AdminUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.Store.ListUsersWithConnectionCount(r.Context())
	if err != nil {
		s.serverError(w, r, err, "failed to list users")
		return
	}
	if users == nil {
		users = []models.AdminUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

// MakeAdminHandler promotes a user. Promoting an admin again is a no-op.
func (s *Server) MakeAdminHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	u, err := s.Store.SetRole(r.Context(), id, models.RoleAdmin)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to update role")
		return
	}
	s.Logger.WithFields(logrus.Fields{"admin": currentUser(r), "user": u.ID}).Info("user promoted to admin")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": u})
}

type notifyRequest struct {
	Title            string          `json:"title"`
	Message          string          `json:"message"`
	Data             json.RawMessage `json:"data"`
	Type             string          `json:"type"`
	Recipients       []string        `json:"recipients"`
	NotificationType string          `json:"notificationType"`
}

// AdminNotifyHandler sends a notification to everyone or to listed users.
func (s *Server) AdminNotifyHandler(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Title, req.Message = strings.TrimSpace(req.Title), strings.TrimSpace(req.Message)
	if req.Title == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "title and message are required")
		return
	}

	kind := models.NotificationSystem
	if req.NotificationType != "" {
		kind = models.NotificationType(strings.ToUpper(req.NotificationType))
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "invalid notificationType")
			return
		}
	}
	if len(req.Data) > 0 && !json.Valid(req.Data) {
		writeError(w, http.StatusBadRequest, "data must be valid JSON")
		return
	}

	var recipients []uuid.UUID
	switch req.Type {
	case "all":
	case "users":
		if len(req.Recipients) == 0 {
			writeError(w, http.StatusBadRequest, "recipients are required")
			return
		}
		recipients = make([]uuid.UUID, 0, len(req.Recipients))
		for _, raw := range req.Recipients {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid recipient id")
				return
			}
			recipients = append(recipients, id)
		}
	default:
		writeError(w, http.StatusBadRequest, "type must be all or users")
		return
	}

	n := models.Notification{Title: req.Title, Body: req.Message, Type: kind, Data: req.Data}
	sent, err := s.Store.CreateNotifications(r.Context(), n, recipients)
	if err != nil {
		s.serverError(w, r, err, "failed to send notifications")
		return
	}
	s.Logger.WithFields(logrus.Fields{"admin": currentUser(r), "type": kind, "sent": sent}).Info("notifications sent")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "sentCount": sent})
}
