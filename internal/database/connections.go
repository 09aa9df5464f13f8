package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const connectionColumns = `id, connection_code, user_id, paired_with_id, created_at, updated_at`

const connectionDetailQuery = `
	SELECT c.id, c.connection_code, c.user_id, c.paired_with_id, c.created_at, c.updated_at,
	       u.id, u.name, u.email, u.image,
	       pw.id, pw.name, pw.email, pw.image,
	       t.id, t.growth_level, t.growth_xp, t.last_watered, t.created_at, t.updated_at
	FROM connections c
	JOIN users u ON u.id = c.user_id
	LEFT JOIN users pw ON pw.id = c.paired_with_id
	LEFT JOIN trees t ON t.connection_id = c.id`

func scanConnection(row pgx.Row) (*models.Connection, error) {
	var c models.Connection
	err := row.Scan(&c.ID, &c.ConnectionCode, &c.UserID, &c.PairedWithID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// scanConnectionDetail reads a row of connectionDetailQuery.
func scanConnectionDetail(row pgx.Row) (*models.Connection, error) {
	var (
		c     models.Connection
		owner models.UserSummary

		pwID            *uuid.UUID
		pwName, pwEmail *string
		pwImage         *string
		treeID          *uuid.UUID
		level, xp       *int
		watered, tc, tu *time.Time
	)
	err := row.Scan(
		&c.ID, &c.ConnectionCode, &c.UserID, &c.PairedWithID, &c.CreatedAt, &c.UpdatedAt,
		&owner.ID, &owner.Name, &owner.Email, &owner.Image,
		&pwID, &pwName, &pwEmail, &pwImage,
		&treeID, &level, &xp, &watered, &tc, &tu,
	)
	if err != nil {
		return nil, err
	}

	c.User = &owner
	if pwID != nil {
		c.PairedWith = &models.UserSummary{ID: *pwID, Name: deref(pwName), Email: deref(pwEmail), Image: pwImage}
	}
	if treeID != nil {
		c.Tree = &models.Tree{
			ID:           *treeID,
			ConnectionID: c.ID,
			GrowthLevel:  *level,
			GrowthXP:     *xp,
			LastWatered:  *watered,
			CreatedAt:    *tc,
			UpdatedAt:    *tu,
		}
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetConnection loads a connection with both members and its tree.
func (p *Postgres) GetConnection(ctx context.Context, id uuid.UUID) (*models.Connection, error) {
	c, err := scanConnectionDetail(p.DB.QueryRow(ctx, connectionDetailQuery+` WHERE c.id=$1`, id))
	return c, wrap("get connection", err)
}

func (p *Postgres) GetConnectionByCode(ctx context.Context, code string) (*models.Connection, error) {
	c, err := scanConnection(p.DB.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE connection_code=$1`, code))
	return c, wrap("get connection by code", err)
}

func (p *Postgres) ListConnections(ctx context.Context, userID uuid.UUID) ([]*models.Connection, error) {
	rows, err := p.DB.Query(ctx,
		connectionDetailQuery+` WHERE c.user_id=$1 OR c.paired_with_id=$1 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, wrap("list connections", err)
	}
	conns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Connection, error) {
		return scanConnectionDetail(row)
	})
	return conns, wrap("list connections", err)
}

// OpenConnection returns the unpaired connection owned by userID.
func (p *Postgres) OpenConnection(ctx context.Context, userID uuid.UUID) (*models.Connection, error) {
	c, err := scanConnection(p.DB.QueryRow(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE user_id=$1 AND paired_with_id IS NULL
		ORDER BY created_at DESC LIMIT 1`, userID))
	return c, wrap("open connection", err)
}

// ActiveConnection returns the first paired connection userID belongs to.
func (p *Postgres) ActiveConnection(ctx context.Context, userID uuid.UUID) (*models.Connection, error) {
	c, err := scanConnectionDetail(p.DB.QueryRow(ctx, connectionDetailQuery+`
		WHERE (c.user_id=$1 OR c.paired_with_id=$1) AND c.paired_with_id IS NOT NULL
		ORDER BY c.created_at ASC LIMIT 1`, userID))
	return c, wrap("active connection", err)
}

// CreateConnection inserts an unpaired connection. A code collision yields ErrConflict.
func (p *Postgres) CreateConnection(ctx context.Context, userID uuid.UUID, code string) (*models.Connection, error) {
	var c *models.Connection
	err := p.tx(ctx, func(tx pgx.Tx) error {
		var err error
		c, err = scanConnection(tx.QueryRow(ctx, `
			INSERT INTO connections (id, connection_code, user_id)
			VALUES ($1, $2, $3)
			RETURNING `+connectionColumns,
			uuid.New(), code, userID,
		))
		return err
	})
	return c, wrap("create connection", err)
}

// Pair joins userID to connectionID, replacing any tree with a fresh one.
func (p *Postgres) Pair(ctx context.Context, connectionID, userID uuid.UUID) (*models.Connection, error) {
	err := p.tx(ctx, func(tx pgx.Tx) error {
		c, err := scanConnection(tx.QueryRow(ctx,
			`SELECT `+connectionColumns+` FROM connections WHERE id=$1 FOR UPDATE`, connectionID))
		if err != nil {
			return err
		}
		if c.Paired() {
			return ErrAlreadyPaired
		}

		if _, err := tx.Exec(ctx, `DELETE FROM trees WHERE connection_id=$1`, connectionID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE connections SET paired_with_id=$1, updated_at=NOW() WHERE id=$2`, userID, connectionID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO trees (id, connection_id, growth_level, growth_xp, last_watered)
			VALUES ($1, $2, $3, 0, NOW())`,
			uuid.New(), connectionID, tree.StartLevel)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyPaired) {
			return nil, err
		}
		return nil, wrap("pair connection", err)
	}
	return p.GetConnection(ctx, connectionID)
}

// disconnectOrder lists child tables in the order they must be emptied.
var disconnectOrder = []string{
	`DELETE FROM memories WHERE connection_id=$1`,
	`DELETE FROM notes WHERE connection_id=$1`,
	`DELETE FROM special_days WHERE connection_id=$1`,
	`DELETE FROM goals WHERE connection_id=$1`,
	`DELETE FROM dream_comments WHERE dream_id IN (SELECT id FROM dreams WHERE connection_id=$1)`,
	`DELETE FROM time_capsule_comments WHERE time_capsule_id IN (SELECT id FROM time_capsules WHERE connection_id=$1)`,
	`DELETE FROM time_capsules WHERE connection_id=$1`,
	`DELETE FROM dreams WHERE connection_id=$1`,
	`DELETE FROM surprises WHERE connection_id=$1`,
	`DELETE FROM chat_messages WHERE connection_id=$1`,
	`DELETE FROM trees WHERE connection_id=$1`,
	`DELETE FROM connections WHERE id=$1`,
}

// Disconnect removes the connection and everything under it. It returns the
// image URLs that were referenced so the caller can remove the files.
func (p *Postgres) Disconnect(ctx context.Context, connectionID uuid.UUID) ([]string, error) {
	var images []string
	err := p.tx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT image_url FROM memories WHERE connection_id=$1 AND image_url IS NOT NULL
			UNION ALL SELECT image_url FROM dreams WHERE connection_id=$1 AND image_url IS NOT NULL
			UNION ALL SELECT image_url FROM time_capsules WHERE connection_id=$1 AND image_url IS NOT NULL
			UNION ALL SELECT image_url FROM surprises WHERE connection_id=$1`, connectionID)
		if err != nil {
			return err
		}
		images, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		for _, q := range disconnectOrder {
			if _, err := tx.Exec(ctx, q, connectionID); err != nil {
				return err
			}
		}
		return nil
	})
	return images, wrap("disconnect", err)
}
