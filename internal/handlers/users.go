package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/storage"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/sirupsen/logrus"
)

const (
	minPasswordLength = 6
	oauthStateCookie  = "oauth_state"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// RegisterHandler creates a password account.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if req.Email == "" || req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email, name and password are required")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	u := &models.User{Email: req.Email, Name: req.Name, Password: req.Password}
	if err := s.Store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, database.ErrConflict) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		s.serverError(w, r, err, "failed to create user")
		return
	}

	s.Logger.WithField("user", u.ID).Info("user registered")
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler verifies credentials, sets the session cookie and waters the
// active connection's tree.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := s.Store.AuthenticateUser(r.Context(), req.Email, req.Password)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to log in")
		return
	}

	token, ok := s.startSession(w, r, u)
	if !ok {
		return
	}
	s.awardLogin(r, u)

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": u})
}

// LogoutHandler clears the session cookie.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GoogleLoginHandler redirects to Google's consent screen.
func (s *Server) GoogleLoginHandler(w http.ResponseWriter, r *http.Request) {
	if s.Google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	state, err := randomState()
	if err != nil {
		s.serverError(w, r, err, "failed to start google sign-in")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.Google.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallbackHandler finishes the OAuth flow and signs the user in.
func (s *Server) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if s.Google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	c, err := r.Cookie(oauthStateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	profile, err := s.Google.Exchange(r.Context(), code)
	if err != nil {
		s.Logger.WithError(err).Warn("google exchange failed")
		writeError(w, http.StatusUnauthorized, "google sign-in failed")
		return
	}

	var image *string
	if profile.Picture != "" {
		image = &profile.Picture
	}
	name := profile.Name
	if name == "" {
		name, _, _ = strings.Cut(profile.Email, "@")
	}
	u, err := s.Store.UpsertOAuthUser(r.Context(), profile.Email, name, image)
	if err != nil {
		s.serverError(w, r, err, "failed to sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/auth/google", MaxAge: -1})
	if _, ok := s.startSession(w, r, u); !ok {
		return
	}
	s.awardLogin(r, u)
	http.Redirect(w, r, "/", http.StatusFound)
}

// MeHandler returns the caller's account.
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	u, err := s.Store.GetUserByID(r.Context(), currentUser(r))
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.serverError(w, r, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// FCMTokenHandler stores the caller's push token.
func (s *Server) FCMTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FCMToken string `json:"fcmToken"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.FCMToken) == "" {
		writeError(w, http.StatusBadRequest, "fcmToken is required")
		return
	}
	if err := s.Store.SetFCMToken(r.Context(), currentUser(r), strings.TrimSpace(req.FCMToken)); err != nil {
		s.serverError(w, r, err, "failed to save fcm token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// UploadHandler stores a single image from the multipart "file" field.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if s.Files == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are disabled")
		return
	}
	limit := s.MaxUploadBytes
	if limit <= 0 {
		limit = storage.DefaultMaxBytes
	}
	// multipart framing on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)

	f, _, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	url, err := storage.Upload(r.Context(), s.Files, body, limit)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "file too large")
		return
	case errors.Is(err, storage.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "only JPEG, PNG, GIF and WEBP images are allowed")
		return
	case errors.Is(err, storage.ErrEmpty):
		writeError(w, http.StatusBadRequest, "file is empty")
		return
	case err != nil:
		s.serverError(w, r, err, "failed to store file")
		return
	}
	if err := s.Store.RecordUpload(r.Context(), url, currentUser(r)); err != nil {
		if derr := s.Files.Delete(r.Context(), url); derr != nil {
			s.Logger.WithError(derr).WithField("url", url).Warn("failed to discard unrecorded upload")
		}
		s.serverError(w, r, err, "failed to store file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "fileUrl": url})
}

// ServeUploadHandler serves files written by the local storage driver.
func (s *Server) ServeUploadHandler(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("name"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.UploadDir, name))
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *models.User) (string, bool) {
	token, err := s.Sessions.Issue(u.ID)
	if err != nil {
		s.serverError(w, r, err, "failed to issue session")
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   s.Sessions.MaxAge(),
		HttpOnly: true,
		Secure:   s.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, true
}

// awardLogin waters the user's active tree. Failures never block the login.
func (s *Server) awardLogin(r *http.Request, u *models.User) {
	conn, err := s.Store.ActiveConnection(r.Context(), u.ID)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	if err != nil {
		s.Logger.WithError(err).WithField("user", u.ID).Warn("failed to load active connection")
		return
	}
	res, err := s.Store.AwardXP(r.Context(), conn.ID, tree.ActionLogin)
	if err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"user":       u.ID,
			"connection": conn.ID,
		}).Warn("failed to award login xp")
		return
	}
	s.recordAward(res, tree.ActionLogin)
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
