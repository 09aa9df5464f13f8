package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/chat"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps everything in maps. Methods a test does not need fall
// through to the nil embedded Store and panic.
type fakeStore struct {
	Store

	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	passwords map[string]string
	conns     map[uuid.UUID]*models.Connection
	memories  map[uuid.UUID]*models.Memory
	notes     map[uuid.UUID]*models.Note
	days      map[uuid.UUID]*models.SpecialDay
	dreams    map[uuid.UUID]*models.Dream
	surprises map[uuid.UUID]*models.Surprise
	capsules  map[uuid.UUID]*models.TimeCapsule
	messages  []*models.ChatMessage
	uploads   map[string]uuid.UUID

	awards       []tree.Action
	codeFailures int

	notified   *models.Notification
	recipients []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[uuid.UUID]*models.User{},
		passwords: map[string]string{},
		conns:     map[uuid.UUID]*models.Connection{},
		memories:  map[uuid.UUID]*models.Memory{},
		notes:     map[uuid.UUID]*models.Note{},
		days:      map[uuid.UUID]*models.SpecialDay{},
		dreams:    map[uuid.UUID]*models.Dream{},
		surprises: map[uuid.UUID]*models.Surprise{},
		capsules:  map[uuid.UUID]*models.TimeCapsule{},
		uploads:   map[string]uuid.UUID{},
	}
}

func (f *fakeStore) addUser(name string, role models.UserRole) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: uuid.New(), Email: name + "@example.com", Name: name, Role: role}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addConnection(owner uuid.UUID, partner *uuid.UUID) *models.Connection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Connection{ID: uuid.New(), ConnectionCode: "ABCDEF", UserID: owner, PairedWithID: partner}
	if u, ok := f.users[owner]; ok {
		c.User = &models.UserSummary{ID: u.ID, Name: u.Name}
	}
	if partner != nil {
		if u, ok := f.users[*partner]; ok {
			c.PairedWith = &models.UserSummary{ID: u.ID, Name: u.Name}
		}
	}
	f.conns[c.ID] = c
	return c
}

func (f *fakeStore) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return database.ErrConflict
		}
	}
	u.ID = uuid.New()
	u.Role = models.RoleUser
	f.passwords[strings.ToLower(u.Email)] = u.Password
	u.Password = ""
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) AuthenticateUser(_ context.Context, email, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(email)
	if pw, ok := f.passwords[email]; !ok || pw != password {
		return nil, database.ErrNotFound
	}
	for _, u := range f.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) SetRole(_ context.Context, id uuid.UUID, role models.UserRole) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	u.Role = role
	return u, nil
}

func (f *fakeStore) Stats(context.Context, time.Time) (*models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Stats{TotalUsers: len(f.users), TotalConnections: len(f.conns)}, nil
}

func (f *fakeStore) GetConnection(_ context.Context, id uuid.UUID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conns[id]; ok {
		return c, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) GetConnectionByCode(_ context.Context, code string) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.ConnectionCode == code {
			return c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) OpenConnection(_ context.Context, userID uuid.UUID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.UserID == userID && !c.Paired() {
			return c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) ActiveConnection(_ context.Context, userID uuid.UUID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.Paired() && c.HasMember(userID) {
			return c, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) CreateConnection(_ context.Context, userID uuid.UUID, code string) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codeFailures > 0 {
		f.codeFailures--
		return nil, database.ErrConflict
	}
	c := &models.Connection{ID: uuid.New(), ConnectionCode: code, UserID: userID}
	f.conns[c.ID] = c
	return c, nil
}

func (f *fakeStore) Pair(_ context.Context, connectionID, userID uuid.UUID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.conns[connectionID]
	if c.Paired() {
		return nil, database.ErrAlreadyPaired
	}
	c.PairedWithID = &userID
	c.Tree = &models.Tree{ID: uuid.New(), ConnectionID: c.ID, GrowthLevel: tree.StartLevel}
	return c, nil
}

func (f *fakeStore) award(connectionID uuid.UUID, action tree.Action) *tree.Result {
	f.awards = append(f.awards, action)
	t := &models.Tree{ConnectionID: connectionID, GrowthLevel: tree.StartLevel}
	res := tree.Water(t, action)
	return &res
}

func (f *fakeStore) AwardXP(_ context.Context, connectionID uuid.UUID, action tree.Action) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.award(connectionID, action), nil
}

func (f *fakeStore) WaterTree(_ context.Context, connectionID uuid.UUID, action tree.Action) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.award(connectionID, action), nil
}

func (f *fakeStore) ListMemories(context.Context, uuid.UUID) ([]*models.Memory, error) {
	return nil, nil
}

func (f *fakeStore) CreateMemory(_ context.Context, m *models.Memory) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New()
	f.memories[m.ID] = m
	return f.award(m.ConnectionID, tree.ActionMemory), nil
}

func (f *fakeStore) DeleteMemory(_ context.Context, connectionID, id uuid.UUID) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok || m.ConnectionID != connectionID {
		return nil, database.ErrNotFound
	}
	delete(f.memories, id)
	return m.ImageURL, nil
}

func (f *fakeStore) RecordUpload(_ context.Context, url string, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[url] = userID
	return nil
}

func (f *fakeStore) ReleaseUpload(_ context.Context, url string, owners []uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploader, ok := f.uploads[url]
	if !ok {
		return false, nil
	}
	for _, id := range owners {
		if id == uploader {
			delete(f.uploads, url)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetNote(_ context.Context, connectionID, id uuid.UUID) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notes[id]; ok && n.ConnectionID == connectionID {
		return n, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) CreateNote(_ context.Context, n *models.Note) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uuid.New()
	f.notes[n.ID] = n
	return f.award(n.ConnectionID, tree.ActionNote), nil
}

func (f *fakeStore) DeleteNote(_ context.Context, _, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notes, id)
	return nil
}

func (f *fakeStore) RateNote(_ context.Context, _, id uuid.UUID, rating int) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.notes[id]
	n.Rating = &rating
	return n, nil
}

func (f *fakeStore) ListSpecialDays(_ context.Context, connectionID uuid.UUID) ([]*models.SpecialDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SpecialDay
	for _, d := range f.days {
		if d.ConnectionID == connectionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSpecialDay(_ context.Context, connectionID, id uuid.UUID) (*models.SpecialDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.days[id]; ok && d.ConnectionID == connectionID {
		return d, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) CreateSpecialDay(_ context.Context, d *models.SpecialDay) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = uuid.New()
	f.days[d.ID] = d
	return f.award(d.ConnectionID, tree.ActionSpecialDay), nil
}

func (f *fakeStore) ConfirmSpecialDay(_ context.Context, _, id, userID uuid.UUID) (*models.SpecialDay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.days[id]
	now := time.Now()
	d.IsConfirmed = true
	d.ConfirmedByID = &userID
	d.ConfirmedAt = &now
	return d, nil
}

func (f *fakeStore) CreateDream(_ context.Context, d *models.Dream) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = uuid.New()
	d.Position = len(f.dreams)
	f.dreams[d.ID] = d
	return f.award(d.ConnectionID, tree.ActionDream), nil
}

func (f *fakeStore) GetSurprise(_ context.Context, id uuid.UUID) (*models.Surprise, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.surprises[id]; ok {
		return s, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) CreateSurprise(_ context.Context, s *models.Surprise) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.surprises {
		if existing.ConnectionID == s.ConnectionID && existing.UserID == s.UserID && existing.Pending() {
			return nil, database.ErrPendingSurprise
		}
	}
	s.ID = uuid.New()
	s.IsSeenByAuthor = true
	f.surprises[s.ID] = s
	return f.award(s.ConnectionID, tree.ActionSurprise), nil
}

func (f *fakeStore) MarkSurpriseSeen(_ context.Context, id, viewer uuid.UUID) (*models.Surprise, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.surprises[id]
	if !ok {
		return nil, false, database.ErrNotFound
	}
	if s.MarkSeen(viewer) {
		delete(f.surprises, id)
		return s, true, nil
	}
	return s, false, nil
}

func (f *fakeStore) ListCapsules(_ context.Context, connectionID uuid.UUID) ([]*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TimeCapsule
	for _, c := range f.capsules {
		if c.ConnectionID == connectionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCapsule(_ context.Context, connectionID, id uuid.UUID) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.capsules[id]; ok && c.ConnectionID == connectionID {
		cp := *c
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) CreateCapsule(_ context.Context, c *models.TimeCapsule) (*tree.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	cp := *c
	f.capsules[c.ID] = &cp
	return f.award(c.ConnectionID, tree.ActionTimeCapsule), nil
}

func (f *fakeStore) UpdateCapsule(_ context.Context, connectionID, id uuid.UUID, u database.CapsuleUpdate) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok || c.ConnectionID != connectionID {
		return nil, database.ErrNotFound
	}
	if c.IsOpened {
		return nil, database.ErrAlreadyOpened
	}
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Content != nil {
		c.Content = u.Content
	}
	if u.ImageSet {
		c.ImageURL = u.ImageURL
	}
	if u.OpenDate != nil {
		c.OpenDate = *u.OpenDate
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) OpenCapsule(_ context.Context, _, id uuid.UUID, now time.Time) (*models.TimeCapsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.capsules[id]
	if c.IsOpened {
		return nil, database.ErrAlreadyOpened
	}
	c.IsOpened = true
	c.OpenedAt = &now
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, m *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) CreateNotifications(_ context.Context, n models.Notification, recipients []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = &n
	f.recipients = recipients
	if recipients == nil {
		return int64(len(f.users)), nil
	}
	return int64(len(recipients)), nil
}

func (f *fakeStore) awarded() []tree.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tree.Action(nil), f.awards...)
}

type testEnv struct {
	t        *testing.T
	store    *fakeStore
	sessions *auth.Sessions
	server   *Server
	handler  http.Handler
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sessions, err := auth.NewSessions("test-secret", time.Hour)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := newFakeStore()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	srv := &Server{
		Store:    store,
		Sessions: sessions,
		Hub:      chat.NewHub(nil, logger),
		Logger:   logger,
		Now:      func() time.Time { return now },
	}
	return &testEnv{t: t, store: store, sessions: sessions, server: srv, handler: srv.Routes(), now: now}
}

func (e *testEnv) token(userID uuid.UUID) string {
	e.t.Helper()
	tok, err := e.sessions.Issue(userID)
	require.NoError(e.t, err)
	return tok
}

// do sends body (marshalled unless already a string) as user; a nil user sends no session.
func (e *testEnv) do(method, path string, user *models.User, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		rd = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(user.ID))
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// couple creates two users sharing a paired connection.
func (e *testEnv) couple() (owner, partner *models.User, conn *models.Connection) {
	owner = e.store.addUser("alice", models.RoleUser)
	partner = e.store.addUser("bob", models.RoleUser)
	conn = e.store.addConnection(owner.ID, &partner.ID)
	return owner, partner, conn
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decodeBody(t, w, &body)
	msg, _ := body["error"].(string)
	return msg
}
