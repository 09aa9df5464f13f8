package handlers

import (
	"errors"
	"net/http"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
)

func (s *Server) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	ns, err := s.Store.ListNotifications(r.Context(), currentUser(r))
	if err != nil {
		s.serverError(w, r, err, "failed to list notifications")
		return
	}
	if ns == nil {
		ns = []*models.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) ReadNotificationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "notificationId")
	if err != nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	err = s.Store.MarkNotificationRead(r.Context(), currentUser(r), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to update notification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
