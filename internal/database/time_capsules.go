package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const capsuleSelect = `
	SELECT c.id, c.title, c.description, c.content, c.image_url, c.open_date, c.is_opened, c.opened_at,
	       c.user_id, c.connection_id, c.created_at, c.updated_at,
	       u.id, u.name, u.email, u.image,
	       (SELECT COUNT(*) FROM time_capsule_comments cc WHERE cc.time_capsule_id = c.id)
	FROM time_capsules c
	JOIN users u ON u.id = c.user_id`

func scanCapsule(row pgx.Row) (*models.TimeCapsule, error) {
	var (
		c       models.TimeCapsule
		u       models.UserSummary
		content string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &content, &c.ImageURL, &c.OpenDate, &c.IsOpened, &c.OpenedAt,
		&c.UserID, &c.ConnectionID, &c.CreatedAt, &c.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.Image, &c.CommentCount)
	if err != nil {
		return nil, err
	}
	c.Content = &content
	c.User = &u
	return &c, nil
}

// ListCapsules returns raw rows newest first; callers conceal locked content.
func (p *Postgres) ListCapsules(ctx context.Context, connectionID uuid.UUID) ([]*models.TimeCapsule, error) {
	rows, err := p.DB.Query(ctx, capsuleSelect+` WHERE c.connection_id=$1 ORDER BY c.created_at DESC`, connectionID)
	if err != nil {
		return nil, wrap("list time capsules", err)
	}
	cs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.TimeCapsule, error) {
		return scanCapsule(row)
	})
	return cs, wrap("list time capsules", err)
}

func (p *Postgres) GetCapsule(ctx context.Context, connectionID, id uuid.UUID) (*models.TimeCapsule, error) {
	c, err := scanCapsule(p.DB.QueryRow(ctx, capsuleSelect+` WHERE c.id=$1 AND c.connection_id=$2`, id, connectionID))
	return c, wrap("get time capsule", err)
}

func (p *Postgres) CreateCapsule(ctx context.Context, c *models.TimeCapsule) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		c.ID = uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO time_capsules (id, title, description, content, image_url, open_date, user_id, connection_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`,
			c.ID, c.Title, c.Description, deref(c.Content), c.ImageURL, c.OpenDate, c.UserID, c.ConnectionID,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, c.ConnectionID, tree.ActionTimeCapsule)
		return err
	})
	return res, wrap("create time capsule", err)
}

// CapsuleUpdate holds the optional fields of an edit; nil leaves a column
// unchanged. ImageSet replaces image_url with ImageURL, so a nil ImageURL
// clears it.
type CapsuleUpdate struct {
	Title       *string
	Description *string
	Content     *string
	ImageURL    *string
	ImageSet    bool
	OpenDate    *time.Time
}

func (u CapsuleUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Content == nil && !u.ImageSet && u.OpenDate == nil
}

// UpdateCapsule applies u to an unopened capsule.
func (p *Postgres) UpdateCapsule(ctx context.Context, connectionID, id uuid.UUID, u CapsuleUpdate) (*models.TimeCapsule, error) {
	tag, err := p.DB.Exec(ctx, `
		UPDATE time_capsules
		SET title=COALESCE($1, title),
		    description=COALESCE($2, description),
		    content=COALESCE($3, content),
		    image_url=CASE WHEN $4 THEN $5 ELSE image_url END,
		    open_date=COALESCE($6, open_date),
		    updated_at=NOW()
		WHERE id=$7 AND connection_id=$8 AND NOT is_opened`,
		u.Title, u.Description, u.Content, u.ImageSet, u.ImageURL, u.OpenDate, id, connectionID)
	if err != nil {
		return nil, wrap("update time capsule", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyOpened
	}
	return p.GetCapsule(ctx, connectionID, id)
}

// OpenCapsule marks the capsule opened at now.
func (p *Postgres) OpenCapsule(ctx context.Context, connectionID, id uuid.UUID, now time.Time) (*models.TimeCapsule, error) {
	tag, err := p.DB.Exec(ctx, `
		UPDATE time_capsules SET is_opened=TRUE, opened_at=$1, updated_at=NOW()
		WHERE id=$2 AND connection_id=$3 AND NOT is_opened`, now, id, connectionID)
	if err != nil {
		return nil, wrap("open time capsule", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyOpened
	}
	return p.GetCapsule(ctx, connectionID, id)
}

func (p *Postgres) DeleteCapsule(ctx context.Context, connectionID, id uuid.UUID) (*string, error) {
	var image *string
	err := p.tx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM time_capsule_comments WHERE time_capsule_id=$1`, id); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`DELETE FROM time_capsules WHERE id=$1 AND connection_id=$2 RETURNING image_url`, id, connectionID,
		).Scan(&image)
	})
	return image, wrap("delete time capsule", err)
}

func (p *Postgres) ListCapsuleComments(ctx context.Context, capsuleID uuid.UUID) ([]models.TimeCapsuleComment, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT cc.id, cc.content, cc.time_capsule_id, cc.user_id, cc.created_at, cc.updated_at,
		       u.id, u.name, u.email, u.image
		FROM time_capsule_comments cc
		JOIN users u ON u.id = cc.user_id
		WHERE cc.time_capsule_id=$1
		ORDER BY cc.created_at ASC`, capsuleID)
	if err != nil {
		return nil, wrap("list capsule comments", err)
	}
	cs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TimeCapsuleComment, error) {
		var (
			c models.TimeCapsuleComment
			u models.UserSummary
		)
		err := row.Scan(&c.ID, &c.Content, &c.TimeCapsuleID, &c.UserID, &c.CreatedAt, &c.UpdatedAt,
			&u.ID, &u.Name, &u.Email, &u.Image)
		c.User = &u
		return c, err
	})
	return cs, wrap("list capsule comments", err)
}

func (p *Postgres) AddCapsuleComment(ctx context.Context, c *models.TimeCapsuleComment) error {
	c.ID = uuid.New()
	err := p.tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO time_capsule_comments (id, content, time_capsule_id, user_id)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at`,
			c.ID, c.Content, c.TimeCapsuleID, c.UserID,
		).Scan(&c.CreatedAt, &c.UpdatedAt)
	})
	return wrap("add capsule comment", err)
}
