package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/auth"
	"github.com/lovetree/lovetree/internal/models"
)

const userColumns = `id, email, name, image, password, role, fcm_token, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u        models.User
		password *string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &password, &u.Role, &u.FCMToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if password != nil {
		u.Password = *password
	}
	return &u, nil
}

// CreateUser inserts user, hashing a non-empty Password first. A duplicate
// email yields ErrConflict.
func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var password *string
	if user.Password != "" {
		hash, err := auth.HashPassword(user.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
		password = &hash
	}

	q := `INSERT INTO users (id, email, name, image, password, role)
	      VALUES ($1, $2, $3, $4, $5, $6)
	      RETURNING created_at, updated_at`

	err := p.tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			user.ID, user.Email, user.Name, user.Image, password, user.Role,
		).Scan(&user.CreatedAt, &user.UpdatedAt)
	})
	return wrap("failed to insert user", err)
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(p.DB.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email))))
	return u, wrap("get user by email", err)
}

func (p *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(p.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return u, wrap("get user by id", err)
}

// AuthenticateUser returns the user owning email if password matches.
func (p *Postgres) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := p.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Password == "" {
		return nil, ErrNotFound
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil {
		return nil, fmt.Errorf("stored hash for %s: %w", user.ID, err)
	}
	if !match {
		return nil, ErrNotFound
	}

	// updated_at doubles as the activity marker for admin stats
	if _, err := p.DB.Exec(ctx, `UPDATE users SET updated_at=NOW() WHERE id=$1`, user.ID); err != nil {
		return nil, wrap("touch user", err)
	}
	return user, nil
}

// UpsertOAuthUser returns the user for email, creating it on first sign-in.
func (p *Postgres) UpsertOAuthUser(ctx context.Context, email, name string, image *string) (*models.User, error) {
	u, err := scanUser(p.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, name, image, role)
		VALUES ($1, $2, $3, $4, 'USER')
		ON CONFLICT (email) DO UPDATE
		SET image=COALESCE(users.image, EXCLUDED.image), updated_at=NOW()
		RETURNING `+userColumns,
		uuid.New(), strings.ToLower(strings.TrimSpace(email)), name, image,
	))
	return u, wrap("upsert oauth user", err)
}

func (p *Postgres) SetFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	tag, err := p.DB.Exec(ctx, `UPDATE users SET fcm_token=$1, updated_at=NOW() WHERE id=$2`, token, userID)
	if err == nil {
		err = expectRow(tag)
	}
	return wrap("set fcm token", err)
}

func (p *Postgres) SetRole(ctx context.Context, userID uuid.UUID, role models.UserRole) (*models.User, error) {
	u, err := scanUser(p.DB.QueryRow(ctx,
		`UPDATE users SET role=$1, updated_at=NOW() WHERE id=$2 RETURNING `+userColumns, role, userID))
	return u, wrap("set role", err)
}

// EnsureAdmin promotes the user owning email, or creates it as an admin.
// The returned bool reports whether a new row was inserted.
func (p *Postgres) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, bool, error) {
	existing, err := p.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return existing, false, nil
		}
		u, err := p.SetRole(ctx, existing.ID, models.RoleAdmin)
		return u, false, err
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	u := &models.User{Email: email, Name: name, Password: password, Role: models.RoleAdmin}
	if err := p.CreateUser(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (p *Postgres) ListUsersWithConnectionCount(ctx context.Context) ([]models.AdminUser, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT u.id, u.email, u.name, u.image, u.role, u.created_at, u.updated_at,
		       (SELECT COUNT(*) FROM connections c WHERE c.user_id=u.id OR c.paired_with_id=u.id)
		FROM users u
		ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, wrap("list users", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AdminUser, error) {
		var u models.AdminUser
		err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.ConnectionCount)
		return u, err
	})
	return users, wrap("list users", err)
}

func (p *Postgres) Stats(ctx context.Context, since time.Time) (*models.Stats, error) {
	var s models.Stats
	err := p.DB.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM connections),
		       (SELECT COUNT(*) FROM users WHERE updated_at >= $1)`, since,
	).Scan(&s.TotalUsers, &s.TotalConnections, &s.ActiveUsers30Days)
	if err != nil {
		return nil, wrap("stats", err)
	}
	return &s, nil
}
