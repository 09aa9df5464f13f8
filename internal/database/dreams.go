package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const dreamSelect = `
	SELECT d.id, d.title, d.description, d.image_url, d.link_url, d.category, d.position,
	       d.user_id, d.connection_id, d.created_at, d.updated_at,
	       u.id, u.name, u.email, u.image
	FROM dreams d
	JOIN users u ON u.id = d.user_id`

func scanDream(row pgx.Row) (*models.Dream, error) {
	var (
		d models.Dream
		u models.UserSummary
	)
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.ImageURL, &d.LinkURL, &d.Category, &d.Position,
		&d.UserID, &d.ConnectionID, &d.CreatedAt, &d.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.Image)
	if err != nil {
		return nil, err
	}
	d.User = &u
	d.Comments = []models.DreamComment{}
	return &d, nil
}

// ListDreams returns the connection's dreams, most recently updated first,
// each with its comments oldest first.
func (p *Postgres) ListDreams(ctx context.Context, connectionID uuid.UUID) ([]*models.Dream, error) {
	rows, err := p.DB.Query(ctx, dreamSelect+` WHERE d.connection_id=$1 ORDER BY d.updated_at DESC`, connectionID)
	if err != nil {
		return nil, wrap("list dreams", err)
	}
	dreams, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Dream, error) {
		return scanDream(row)
	})
	if err != nil {
		return nil, wrap("list dreams", err)
	}

	byID := make(map[uuid.UUID]*models.Dream, len(dreams))
	for _, d := range dreams {
		byID[d.ID] = d
	}

	rows, err = p.DB.Query(ctx, `
		SELECT dc.id, dc.content, dc.dream_id, dc.user_id, dc.created_at, dc.updated_at,
		       u.id, u.name, u.email, u.image
		FROM dream_comments dc
		JOIN dreams d ON d.id = dc.dream_id
		JOIN users u ON u.id = dc.user_id
		WHERE d.connection_id=$1
		ORDER BY dc.created_at ASC`, connectionID)
	if err != nil {
		return nil, wrap("list dream comments", err)
	}
	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DreamComment, error) {
		return scanDreamComment(row)
	})
	if err != nil {
		return nil, wrap("list dream comments", err)
	}
	for _, c := range comments {
		if d, ok := byID[c.DreamID]; ok {
			d.Comments = append(d.Comments, c)
		}
	}
	return dreams, nil
}

func scanDreamComment(row pgx.Row) (models.DreamComment, error) {
	var (
		c models.DreamComment
		u models.UserSummary
	)
	err := row.Scan(&c.ID, &c.Content, &c.DreamID, &c.UserID, &c.CreatedAt, &c.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.Image)
	c.User = &u
	return c, err
}

func (p *Postgres) GetDream(ctx context.Context, connectionID, id uuid.UUID) (*models.Dream, error) {
	d, err := scanDream(p.DB.QueryRow(ctx, dreamSelect+` WHERE d.id=$1 AND d.connection_id=$2`, id, connectionID))
	return d, wrap("get dream", err)
}

// CreateDream appends d after the connection's last dream and waters the tree.
func (p *Postgres) CreateDream(ctx context.Context, d *models.Dream) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		// serialize position assignment per connection
		if _, err := tx.Exec(ctx, `SELECT 1 FROM connections WHERE id=$1 FOR UPDATE`, d.ConnectionID); err != nil {
			return err
		}

		d.ID = uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO dreams (id, title, description, image_url, link_url, category, position, user_id, connection_id)
			VALUES ($1, $2, $3, $4, $5, $6,
			        (SELECT COALESCE(MAX(position) + 1, 0) FROM dreams WHERE connection_id=$8),
			        $7, $8)
			RETURNING position, created_at, updated_at`,
			d.ID, d.Title, d.Description, d.ImageURL, d.LinkURL, d.Category, d.UserID, d.ConnectionID,
		).Scan(&d.Position, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return err
		}
		d.Comments = []models.DreamComment{}
		res, err = awardTx(ctx, tx, d.ConnectionID, tree.ActionDream)
		return err
	})
	return res, wrap("create dream", err)
}

// DeleteDream removes the dream with its comments and returns its image URL.
func (p *Postgres) DeleteDream(ctx context.Context, connectionID, id uuid.UUID) (*string, error) {
	var image *string
	err := p.tx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM dream_comments WHERE dream_id=$1`, id); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`DELETE FROM dreams WHERE id=$1 AND connection_id=$2 RETURNING image_url`, id, connectionID,
		).Scan(&image)
	})
	return image, wrap("delete dream", err)
}

func (p *Postgres) AddDreamComment(ctx context.Context, connectionID uuid.UUID, c *models.DreamComment) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		c.ID = uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO dream_comments (id, content, dream_id, user_id)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at`,
			c.ID, c.Content, c.DreamID, c.UserID,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE dreams SET updated_at=NOW() WHERE id=$1`, c.DreamID); err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, connectionID, tree.ActionDreamComment)
		return err
	})
	return res, wrap("add dream comment", err)
}
