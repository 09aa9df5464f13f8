package handlers

import (
	"errors"
	"net/http"

	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

type specialDayRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	IsRecurring *bool   `json:"isRecurring"`
}

type specialDayResponse struct {
	*models.SpecialDay
	TreeUpdate *tree.Result `json:"treeUpdate,omitempty"`
}

// ListSpecialDaysHandler returns the days with their countdown fields.
func (s *Server) ListSpecialDaysHandler(w http.ResponseWriter, r *http.Request) {
	conn, _, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	days, err := s.Store.ListSpecialDays(r.Context(), conn.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to list special days")
		return
	}
	now := s.now()
	for _, d := range days {
		d.Annotate(now)
	}
	if days == nil {
		days = []*models.SpecialDay{}
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) CreateSpecialDayHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}

	var req specialDayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	title, rawDate := trimmed(req.Title), trimmed(req.Date)
	if title == "" || rawDate == "" {
		writeError(w, http.StatusBadRequest, "title and date are required")
		return
	}
	date, err := parseDate(rawDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	recurring := true
	if req.IsRecurring != nil {
		recurring = *req.IsRecurring
	}

	d := &models.SpecialDay{
		Title:        title,
		Description:  optional(req.Description),
		Date:         date,
		IsRecurring:  recurring,
		UserID:       userID,
		ConnectionID: conn.ID,
	}
	res, err := s.Store.CreateSpecialDay(r.Context(), d)
	if err != nil {
		s.serverError(w, r, err, "failed to create special day")
		return
	}
	s.recordAward(res, tree.ActionSpecialDay)
	d.Annotate(s.now())
	writeJSON(w, http.StatusCreated, specialDayResponse{SpecialDay: d, TreeUpdate: res})
}

// ConfirmSpecialDayHandler records the partner's confirmation.
func (s *Server) ConfirmSpecialDayHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	d, ok := s.loadSpecialDay(w, r, conn)
	if !ok {
		return
	}
	if d.UserID == userID {
		writeError(w, http.StatusBadRequest, "you cannot confirm your own special day")
		return
	}
	if d.IsConfirmed {
		writeError(w, http.StatusBadRequest, "special day already confirmed")
		return
	}

	confirmed, err := s.Store.ConfirmSpecialDay(r.Context(), conn.ID, d.ID, userID)
	switch {
	case errors.Is(err, database.ErrAlreadyDone):
		writeError(w, http.StatusBadRequest, "special day already confirmed")
		return
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "special day not found")
		return
	case err != nil:
		s.serverError(w, r, err, "failed to confirm special day")
		return
	}
	confirmed.Annotate(s.now())
	writeJSON(w, http.StatusOK, confirmed)
}

// DeleteSpecialDayHandler lets the creator remove a day.
func (s *Server) DeleteSpecialDayHandler(w http.ResponseWriter, r *http.Request) {
	conn, userID, ok := s.requireConnection(w, r)
	if !ok {
		return
	}
	d, ok := s.loadSpecialDay(w, r, conn)
	if !ok {
		return
	}
	if d.UserID != userID {
		writeError(w, http.StatusForbidden, "only the creator can delete this special day")
		return
	}
	err := s.Store.DeleteSpecialDay(r.Context(), conn.ID, d.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "special day not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to delete special day")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "special day deleted"})
}

func (s *Server) loadSpecialDay(w http.ResponseWriter, r *http.Request, conn *models.Connection) (*models.SpecialDay, bool) {
	id, err := pathID(r, "dayId")
	if err != nil {
		writeError(w, http.StatusNotFound, "special day not found")
		return nil, false
	}
	d, err := s.Store.GetSpecialDay(r.Context(), conn.ID, id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "special day not found")
		return nil, false
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load special day")
		return nil, false
	}
	return d, true
}
