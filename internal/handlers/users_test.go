package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/storage"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser("taken", models.RoleUser)

	tests := []struct {
		name string
		body map[string]string
		code int
	}{
		{"missing name", map[string]string{"email": "a@b.co", "password": "secret1"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "name": "A", "password": "secret1"}, http.StatusBadRequest},
		{"short password", map[string]string{"email": "a@b.co", "name": "A", "password": "12345"}, http.StatusBadRequest},
		{"duplicate", map[string]string{"email": "taken@example.com", "name": "A", "password": "secret1"}, http.StatusBadRequest},
		{"ok", map[string]string{"email": "new@b.co", "name": "New", "password": "secret1"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/auth/register", nil, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestRegisterOmitsPassword(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/auth/register", nil, map[string]string{
		"email": "carol@example.com", "name": "Carol", "password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "hunter22")
	assert.NotContains(t, w.Body.String(), "password")
}

func TestLoginSetsCookieAndWatersTree(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/auth/register", nil, map[string]string{
		"email": "dana@example.com", "name": "Dana", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var dana models.User
	decodeBody(t, w, &dana)

	partner := env.store.addUser("eve", models.RoleUser)
	env.store.addConnection(dana.ID, &partner.ID)

	w = env.do(http.MethodPost, "/auth/login", nil, map[string]string{
		"email": "DANA@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, w, &body)
	got, err := env.sessions.Verify(body.Token)
	require.NoError(t, err)
	assert.Equal(t, dana.ID, got)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, body.Token, cookie.Value)

	assert.Equal(t, []tree.Action{tree.ActionLogin}, env.store.awarded())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/auth/register", nil, map[string]string{
		"email": "fay@example.com", "name": "Fay", "password": "secret1",
	})
	w := env.do(http.MethodPost, "/auth/login", nil, map[string]string{
		"email": "fay@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, env.store.awarded())
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/users/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeAcceptsCookie(t *testing.T) {
	env := newTestEnv(t)
	u := env.store.addUser("gus", models.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: env.token(u.ID)})
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got models.User
	decodeBody(t, w, &got)
	assert.Equal(t, u.ID, got.ID)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestGoogleLoginDisabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/auth/google/login", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func uploadRequest(t *testing.T, env *testEnv, u *models.User, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.bin")
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token(u.ID))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	return w
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	files, err := storage.NewLocalStore(t.TempDir(), "/uploads/images")
	require.NoError(t, err)
	env.server.Files = files
	env.server.MaxUploadBytes = 1024
	u := env.store.addUser("hal", models.RoleUser)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	w := uploadRequest(t, env, u, png)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Success bool   `json:"success"`
		FileURL string `json:"fileUrl"`
	}
	decodeBody(t, w, &body)
	assert.True(t, body.Success)
	assert.Regexp(t, `^/uploads/images/[0-9a-f-]{36}\.png$`, body.FileURL)
	assert.Equal(t, u.ID, env.store.uploads[body.FileURL], "upload is recorded against its uploader")

	w = uploadRequest(t, env, u, []byte("just some text"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = uploadRequest(t, env, u, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 2048)...))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
