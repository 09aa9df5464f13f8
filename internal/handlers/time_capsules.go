package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

type capsuleRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	ImageURL    *string `json:"imageUrl"`
	OpenDate    *string `json:"openDate"`
}

// capsuleUpdateRequest tracks whether imageUrl was sent at all; an explicit
// null or "" clears the image.
type capsuleUpdateRequest struct {
	capsuleRequest
	ImageURL json.RawMessage `json:"imageUrl"`
}

func (req capsuleUpdateRequest) image() (set bool, url *string, err error) {
	if len(req.ImageURL) == 0 {
		return false, nil, nil
	}
	var v *string
	if err := json.Unmarshal(req.ImageURL, &v); err != nil {
		return false, nil, err
	}
	return true, optional(v), nil
}

type capsuleResponse struct {
	*models.TimeCapsule
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

// ListCapsulesHandler returns capsules with locked content withheld.
func (s *Server) ListCapsulesHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	capsules, err := s.Store.ListCapsules(r.Context(), conn.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to list time capsules")
		return
	}
	now := s.now()
	for _, c := range capsules {
		c.Conceal(now)
	}
	if capsules == nil {
		capsules = []*models.TimeCapsule{}
	}
	writeJSON(w, http.StatusOK, capsules)
}

func (s *Server) CreateCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	var req capsuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	title, desc, content, rawDate := trimmed(req.Title), trimmed(req.Description), trimmed(req.Content), trimmed(req.OpenDate)
	if title == "" || desc == "" || content == "" || rawDate == "" {
		writeError(w, http.StatusBadRequest, "title, description, content and openDate are required")
		return
	}
	openDate, ok := s.futureDate(w, rawDate)
	if !ok {
		return
	}

	c := &models.TimeCapsule{
		Title:        title,
		Description:  desc,
		Content:      &content,
		ImageURL:     optional(req.ImageURL),
		OpenDate:     openDate,
		UserID:       userID,
		ConnectionID: conn.ID,
	}
	res, err := s.Store.CreateCapsule(r.Context(), c)
	if err != nil {
		s.serverError(w, r, err, "failed to create time capsule")
		return
	}
	s.recordAward(res, tree.ActionTimeCapsule)
	c.Conceal(s.now())
	writeJSON(w, http.StatusCreated, capsuleResponse{TimeCapsule: c, TreeUpdate: res})
}

// GetCapsuleHandler returns one capsule with its comments.
func (s *Server) GetCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	c, ok := s.loadCapsule(w, r, conn)
	if !ok {
		return
	}
	comments, err := s.Store.ListCapsuleComments(r.Context(), c.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to load comments")
		return
	}
	if comments == nil {
		comments = []models.TimeCapsuleComment{}
	}
	c.Comments = comments
	c.Conceal(s.now())
	writeJSON(w, http.StatusOK, c)
}

// UpdateCapsuleHandler edits an unopened capsule owned by the caller.
func (s *Server) UpdateCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	c, ok := s.loadCapsule(w, r, conn)
	if !ok {
		return
	}
	if c.UserID != userID {
		writeError(w, http.StatusForbidden, "only the owner can edit this time capsule")
		return
	}
	if c.IsOpened {
		writeError(w, http.StatusBadRequest, "time capsule already opened")
		return
	}

	var req capsuleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	imageSet, imageURL, err := req.image()
	if err != nil {
		writeError(w, http.StatusBadRequest, "imageUrl must be a string or null")
		return
	}
	u := database.CapsuleUpdate{
		Title:       optional(req.Title),
		Description: optional(req.Description),
		Content:     optional(req.Content),
		ImageURL:    imageURL,
		ImageSet:    imageSet,
	}
	if raw := trimmed(req.OpenDate); raw != "" {
		openDate, ok := s.futureDate(w, raw)
		if !ok {
			return
		}
		u.OpenDate = &openDate
	}
	if u.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	updated, err := s.Store.UpdateCapsule(r.Context(), conn.ID, c.ID, u)
	if errors.Is(err, database.ErrAlreadyOpened) {
		writeError(w, http.StatusBadRequest, "time capsule already opened")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to update time capsule")
		return
	}
	if imageSet && c.ImageURL != nil && (imageURL == nil || *imageURL != *c.ImageURL) {
		s.removeFile(r, conn, c.ImageURL)
	}
	updated.Conceal(s.now())
	writeJSON(w, http.StatusOK, updated)
}

// OpenCapsuleHandler opens a capsule whose date has arrived.
func (s *Server) OpenCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	c, ok := s.loadCapsule(w, r, conn)
	if !ok {
		return
	}
	if c.IsOpened {
		writeError(w, http.StatusBadRequest, "time capsule already opened")
		return
	}
	now := s.now()
	if c.OpenDate.After(now) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "time capsule cannot be opened yet",
			"openDate": c.OpenDate,
		})
		return
	}

	opened, err := s.Store.OpenCapsule(r.Context(), conn.ID, c.ID, now)
	if errors.Is(err, database.ErrAlreadyOpened) {
		writeError(w, http.StatusBadRequest, "time capsule already opened")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to open time capsule")
		return
	}
	writeJSON(w, http.StatusOK, opened)
}

func (s *Server) DeleteCapsuleHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	c, ok := s.loadCapsule(w, r, conn)
	if !ok {
		return
	}
	if c.UserID != userID {
		writeError(w, http.StatusForbidden, "only the owner can delete this time capsule")
		return
	}
	image, err := s.Store.DeleteCapsule(r.Context(), conn.ID, c.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "time capsule not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to delete time capsule")
		return
	}
	s.removeFile(r, conn, image)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "time capsule deleted"})
}

func (s *Server) ListCapsuleCommentsHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	c, ok := s.loadCapsule(w, r, conn)
	if !ok {
		return
	}
	comments, err := s.Store.ListCapsuleComments(r.Context(), c.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []models.TimeCapsuleComment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) CreateCapsuleCommentHandler(w http.ResponseWriter, r *http.Request) {
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
	c, ok := s.loadCapsule(w, r, conn)
	if !ok {
		return
	}

	comment := &models.TimeCapsuleComment{
		Content:       trimmed(req.Content),
		TimeCapsuleID: c.ID,
		UserID:        userID,
	}
	if err := s.Store.AddCapsuleComment(r.Context(), comment); err != nil {
		s.serverError(w, r, err, "failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) loadCapsule(w http.ResponseWriter, r *http.Request, conn *models.Connection) (*models.TimeCapsule, bool) {
	id, err := pathID(r, "capsuleId")
	if err != nil {
		writeError(w, http.StatusNotFound, "time capsule not found")
		return nil, false
	}
	c, err := s.Store.GetCapsule(r.Context(), conn.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "time capsule not found")
		return nil, false
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load time capsule")
		return nil, false
	}
	return c, true
}

// futureDate parses raw and requires it to be after now.
func (s *Server) futureDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	t, err := parseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid openDate")
		return time.Time{}, false
	}
	if !t.After(s.now()) {
		writeError(w, http.StatusBadRequest, "openDate must be in the future")
		return time.Time{}, false
	}
	return t, true
}
