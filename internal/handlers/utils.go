package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/metrics"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/sirupsen/logrus"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// pathID parses the named path wildcard as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// optional turns a blank string into nil.
func optional(s *string) *string {
	if v := trimmed(s); v != "" {
		return &v
	}
	return nil
}

// currentUser returns the id stored by middleware.RequireAuth.
func currentUser(r *http.Request) uuid.UUID {
	id, _ := auth.UserID(r.Context())
	return id
}

// serverError logs err with request context and answers a generic 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	s.Logger.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"user":   currentUser(r),
	}).Error(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func (s *Server) recordAward(res *tree.Result, action tree.Action) {
	if res == nil {
		return
	}
	metrics.RecordAward(string(action), res.XPAdded, res.LeveledUp)
	if res.LeveledUp {
		s.Logger.WithFields(logrus.Fields{
			"connection": res.Tree.ConnectionID,
			"level":      res.Tree.GrowthLevel,
		}).Info("tree leveled up")
	}
}

// removeFile deletes an uploaded file when a member of conn uploaded it,
// logging instead of failing.
func (s *Server) removeFile(r *http.Request, conn *models.Connection, url *string) {
	if url == nil || *url == "" || s.Files == nil {
		return
	}
	log := s.Logger.WithFields(logrus.Fields{"url": *url, "connection": conn.ID})
	released, err := s.Store.ReleaseUpload(r.Context(), *url, conn.Members())
	if err != nil {
		log.WithError(err).Warn("failed to release uploaded file")
		return
	}
	if !released {
		log.Debug("keeping file not uploaded by this connection")
		return
	}
	if err := s.Files.Delete(r.Context(), *url); err != nil {
		log.WithError(err).Warn("failed to delete uploaded file")
	}
}

// requireConnection resolves {id} to a connection the caller belongs to.
// It writes the error response itself and returns false when access is denied.
func (s *Server) requireConnection(w http.ResponseWriter, r *http.Request) (*models.Connection, uuid.UUID, bool) {
	userID := currentUser(r)
	connID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusNotFound, "connection not found or access denied")
		return nil, userID, false
	}

	conn, err := s.Store.GetConnection(r.Context(), connID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !conn.HasMember(userID)) {
		writeError(w, http.StatusNotFound, "connection not found or access denied")
		return nil, userID, false
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load connection")
		return nil, userID, false
	}
	return conn, userID, true
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
