// Package handlers implements the HTTP API.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/chat"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/metrics"
	"github.com/lovetree/lovetree/internal/middleware"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/storage"
	"github.com/lovetree/lovetree/internal/tree"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the handlers depend on; *database.Postgres implements it.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
	UpsertOAuthUser(ctx context.Context, email, name string, image *string) (*models.User, error)
	SetFCMToken(ctx context.Context, userID uuid.UUID, token string) error
	SetRole(ctx context.Context, userID uuid.UUID, role models.UserRole) (*models.User, error)
	ListUsersWithConnectionCount(ctx context.Context) ([]models.AdminUser, error)
	Stats(ctx context.Context, since time.Time) (*models.Stats, error)

	RecordUpload(ctx context.Context, url string, userID uuid.UUID) error
	ReleaseUpload(ctx context.Context, url string, owners []uuid.UUID) (bool, error)

	GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error)
	GetConnectionByCode(ctx context.Context, code string) (*models.Connection, error)
	ListConnections(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error)
	OpenConnection(ctx context.Context, userID uuid.UUID) (*models.Connection, error)
	ActiveConnection(ctx context.Context, userID uuid.UUID) (*models.Connection, error)
	CreateConnection(ctx context.Context, userID uuid.UUID, code string) (*models.Connection, error)
	Pair(ctx context.Context, connectionID, userID uuid.UUID) (*models.Connection, error)
	Disconnect(ctx context.Context, connectionID uuid.UUID) ([]string, error)

	GetTree(ctx context.Context, connectionID uuid.UUID) (*models.Tree, error)
	AwardXP(ctx context.Context, connectionID uuid.UUID, action tree.Action) (*tree.Result, error)
	WaterTree(ctx context.Context, connectionID uuid.UUID, action tree.Action) (*tree.Result, error)

	ListMemories(ctx context.Context, connectionID uuid.UUID) ([]*models.Memory, error)
	GetMemory(ctx context.Context, connectionID, id uuid.UUID) (*models.Memory, error)
	CreateMemory(ctx context.Context, m *models.Memory) (*tree.Result, error)
	DeleteMemory(ctx context.Context, connectionID, id uuid.UUID) (*string, error)

	ListNotes(ctx context.Context, connectionID uuid.UUID, now time.Time) ([]*models.Note, error)
	GetNote(ctx context.Context, connectionID, id uuid.UUID) (*models.Note, error)
	CreateNote(ctx context.Context, n *models.Note) (*tree.Result, error)
	DeleteNote(ctx context.Context, connectionID, id uuid.UUID) error
	RateNote(ctx context.Context, connectionID, id uuid.UUID, rating int) (*models.Note, error)

	ListSpecialDays(ctx context.Context, connectionID uuid.UUID) ([]*models.SpecialDay, error)
	GetSpecialDay(ctx context.Context, connectionID, id uuid.UUID) (*models.SpecialDay, error)
	CreateSpecialDay(ctx context.Context, d *models.SpecialDay) (*tree.Result, error)
	ConfirmSpecialDay(ctx context.Context, connectionID, id, userID uuid.UUID) (*models.SpecialDay, error)
	DeleteSpecialDay(ctx context.Context, connectionID, id uuid.UUID) error

	ListDreams(ctx context.Context, connectionID uuid.UUID) ([]*models.Dream, error)
	GetDream(ctx context.Context, connectionID, id uuid.UUID) (*models.Dream, error)
	CreateDream(ctx context.Context, d *models.Dream) (*tree.Result, error)
	DeleteDream(ctx context.Context, connectionID, id uuid.UUID) (*string, error)
	AddDreamComment(ctx context.Context, connectionID uuid.UUID, c *models.DreamComment) (*tree.Result, error)

	ListUnseenSurprises(ctx context.Context, connectionID, viewer uuid.UUID) ([]*models.Surprise, error)
	GetSurprise(ctx context.Context, id uuid.UUID) (*models.Surprise, error)
	CreateSurprise(ctx context.Context, s *models.Surprise) (*tree.Result, error)
	MarkSurpriseSeen(ctx context.Context, id, viewer uuid.UUID) (*models.Surprise, bool, error)

	ListCapsules(ctx context.Context, connectionID uuid.UUID) ([]*models.TimeCapsule, error)
	GetCapsule(ctx context.Context, connectionID, id uuid.UUID) (*models.TimeCapsule, error)
	CreateCapsule(ctx context.Context, c *models.TimeCapsule) (*tree.Result, error)
	UpdateCapsule(ctx context.Context, connectionID, id uuid.UUID, u database.CapsuleUpdate) (*models.TimeCapsule, error)
	OpenCapsule(ctx context.Context, connectionID, id uuid.UUID, now time.Time) (*models.TimeCapsule, error)
	DeleteCapsule(ctx context.Context, connectionID, id uuid.UUID) (*string, error)
	ListCapsuleComments(ctx context.Context, capsuleID uuid.UUID) ([]models.TimeCapsuleComment, error)
	AddCapsuleComment(ctx context.Context, c *models.TimeCapsuleComment) error

	ListMessages(ctx context.Context, connectionID, reader uuid.UUID) ([]*models.ChatMessage, error)
	CreateMessage(ctx context.Context, m *models.ChatMessage) error

	CreateNotifications(ctx context.Context, n models.Notification, recipients []uuid.UUID) (int64, error)
	ListNotifications(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error
}

// OAuthProvider is the Google sign-in flow; *auth.GoogleProvider implements it.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleProfile, error)
}

type Server struct {
	Store    Store
	Sessions *auth.Sessions
	Files    storage.Store
	Hub      *chat.Hub
	// Google is nil when sign-in with Google is not configured.
	Google  OAuthProvider
	Limiter *middleware.RateLimiter
	Logger  *logrus.Logger

	MaxUploadBytes int64
	CookieSecure   bool
	// UploadDir is served under /uploads/images/ when files live on local disk.
	UploadDir string

	Now func() time.Time
}

// Routes builds the full HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	public := func(h http.HandlerFunc) http.Handler {
		if s.Limiter == nil {
			return h
		}
		return s.Limiter.Handler(h)
	}
	guarded := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		mws := []func(http.Handler) http.Handler{middleware.RequireAuth(s.Sessions)}
		if s.Limiter != nil {
			mws = append(mws, s.Limiter.Handler)
		}
		return middleware.Chain(h, append(mws, extra...)...)
	}
	authed := func(h http.HandlerFunc) http.Handler { return guarded(h) }
	admin := func(h http.HandlerFunc) http.Handler {
		return guarded(h, middleware.RequireAdmin(s.Store.GetUserByID))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	// auth
	mux.Handle("POST /auth/register", public(s.RegisterHandler))
	mux.Handle("POST /auth/login", public(s.LoginHandler))
	mux.Handle("POST /auth/logout", public(s.LogoutHandler))
	mux.Handle("GET /auth/google/login", public(s.GoogleLoginHandler))
	mux.Handle("GET /auth/google/callback", public(s.GoogleCallbackHandler))

	// users
	mux.Handle("GET /users/me", authed(s.MeHandler))
	mux.Handle("POST /users/fcm-token", authed(s.FCMTokenHandler))
	mux.Handle("GET /users/{userId}/active-connection", authed(s.ActiveConnectionHandler))
	mux.Handle("POST /upload", authed(s.UploadHandler))
	if s.UploadDir != "" {
		mux.Handle("GET /uploads/images/{name}", http.HandlerFunc(s.ServeUploadHandler))
	}

	// connections
	mux.Handle("GET /connections", authed(s.ListConnectionsHandler))
	mux.Handle("POST /connections", authed(s.CreateConnectionHandler))
	mux.Handle("POST /connections/pair", authed(s.PairHandler))
	mux.Handle("DELETE /connections/{id}/disconnect", authed(s.DisconnectHandler))

	mux.Handle("GET /connections/{id}/tree", authed(s.GetTreeHandler))
	mux.Handle("POST /connections/{id}/tree/water", authed(s.WaterTreeHandler))

	mux.Handle("GET /connections/{id}/memories", authed(s.ListMemoriesHandler))
	mux.Handle("POST /connections/{id}/memories", authed(s.CreateMemoryHandler))
	mux.Handle("GET /connections/{id}/memories/{memoryId}", authed(s.GetMemoryHandler))
	mux.Handle("DELETE /connections/{id}/memories/{memoryId}", authed(s.DeleteMemoryHandler))

	mux.Handle("GET /connections/{id}/notes", authed(s.ListNotesHandler))
	mux.Handle("POST /connections/{id}/notes", authed(s.CreateNoteHandler))
	mux.Handle("GET /connections/{id}/notes/{noteId}", authed(s.GetNoteHandler))
	mux.Handle("DELETE /connections/{id}/notes/{noteId}", authed(s.DeleteNoteHandler))
	mux.Handle("POST /connections/{id}/notes/{noteId}/rate", authed(s.RateNoteHandler))

	mux.Handle("GET /connections/{id}/special-days", authed(s.ListSpecialDaysHandler))
	mux.Handle("POST /connections/{id}/special-days", authed(s.CreateSpecialDayHandler))
	mux.Handle("POST /connections/{id}/special-days/{dayId}/confirm", authed(s.ConfirmSpecialDayHandler))
	mux.Handle("DELETE /connections/{id}/special-days/{dayId}", authed(s.DeleteSpecialDayHandler))

	mux.Handle("GET /connections/{id}/dreams", authed(s.ListDreamsHandler))
	mux.Handle("POST /connections/{id}/dreams", authed(s.CreateDreamHandler))
	mux.Handle("DELETE /connections/{id}/dreams/{dreamId}", authed(s.DeleteDreamHandler))
	mux.Handle("POST /connections/{id}/dreams/{dreamId}/comments", authed(s.CreateDreamCommentHandler))

	mux.Handle("GET /connections/{id}/surprises", authed(s.ListSurprisesHandler))
	mux.Handle("POST /connections/{id}/surprises", authed(s.CreateSurpriseHandler))
	mux.Handle("POST /connections/{id}/surprises/{surpriseId}/seen", authed(s.SeenSurpriseHandler))

	mux.Handle("GET /connections/{id}/time-capsules", authed(s.ListCapsulesHandler))
	mux.Handle("POST /connections/{id}/time-capsules", authed(s.CreateCapsuleHandler))
	mux.Handle("GET /connections/{id}/time-capsules/{capsuleId}", authed(s.GetCapsuleHandler))
	mux.Handle("PUT /connections/{id}/time-capsules/{capsuleId}", authed(s.UpdateCapsuleHandler))
	mux.Handle("PATCH /connections/{id}/time-capsules/{capsuleId}", authed(s.OpenCapsuleHandler))
	mux.Handle("DELETE /connections/{id}/time-capsules/{capsuleId}", authed(s.DeleteCapsuleHandler))
	mux.Handle("GET /connections/{id}/time-capsules/{capsuleId}/comments", authed(s.ListCapsuleCommentsHandler))
	mux.Handle("POST /connections/{id}/time-capsules/{capsuleId}/comments", authed(s.CreateCapsuleCommentHandler))

	mux.Handle("GET /connections/{id}/chat", authed(s.ListMessagesHandler))
	mux.Handle("POST /connections/{id}/chat", authed(s.SendMessageHandler))
	mux.Handle("GET /connections/{id}/chat/ws", http.HandlerFunc(s.ChatWSHandler))
	mux.Handle("GET /connections/{id}/presence", authed(s.PresenceHandler))

	// notifications
	mux.Handle("GET /notifications", authed(s.ListNotificationsHandler))
	mux.Handle("POST /notifications/{notificationId}/read", authed(s.ReadNotificationHandler))

	// admin
	mux.Handle("GET /admin/auth/check", authed(s.AdminCheckHandler))
	mux.Handle("GET /admin/stats", admin(s.AdminStatsHandler))
	mux.Handle("GET /admin/users", admin(s.AdminUsersHandler))
	mux.Handle("POST /admin/users/{userId}/make-admin", admin(s.MakeAdminHandler))
	mux.Handle("POST /admin/notifications", admin(s.AdminNotifyHandler))

	return middleware.Chain(mux, middleware.LogMiddleware(s.Logger), metrics.InstrumentHandler)
}
