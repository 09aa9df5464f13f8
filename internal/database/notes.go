package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const noteSelect = `
	SELECT n.id, n.title, n.content, n.is_temporary, n.expires_at, n.rating,
	       n.author_id, n.connection_id, n.created_at, n.updated_at,
	       u.id, u.name, u.email, u.image
	FROM notes n
	JOIN users u ON u.id = n.author_id`

func scanNote(row pgx.Row) (*models.Note, error) {
	var (
		n models.Note
		a models.UserSummary
	)
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.IsTemporary, &n.ExpiresAt, &n.Rating,
		&n.AuthorID, &n.ConnectionID, &n.CreatedAt, &n.UpdatedAt,
		&a.ID, &a.Name, &a.Email, &a.Image)
	if err != nil {
		return nil, err
	}
	n.Author = &a
	return &n, nil
}

// ListNotes returns the connection's notes, skipping temporary ones that expired before now.
func (p *Postgres) ListNotes(ctx context.Context, connectionID uuid.UUID, now time.Time) ([]*models.Note, error) {
	rows, err := p.DB.Query(ctx, noteSelect+`
		WHERE n.connection_id=$1
		  AND NOT (n.is_temporary AND n.expires_at IS NOT NULL AND n.expires_at <= $2)
		ORDER BY n.created_at DESC`, connectionID, now)
	if err != nil {
		return nil, wrap("list notes", err)
	}
	ns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Note, error) {
		return scanNote(row)
	})
	return ns, wrap("list notes", err)
}

func (p *Postgres) GetNote(ctx context.Context, connectionID, id uuid.UUID) (*models.Note, error) {
	n, err := scanNote(p.DB.QueryRow(ctx, noteSelect+` WHERE n.id=$1 AND n.connection_id=$2`, id, connectionID))
	return n, wrap("get note", err)
}

func (p *Postgres) CreateNote(ctx context.Context, n *models.Note) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		n.ID = uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO notes (id, title, content, is_temporary, expires_at, author_id, connection_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			n.ID, n.Title, n.Content, n.IsTemporary, n.ExpiresAt, n.AuthorID, n.ConnectionID,
		).Scan(&n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, n.ConnectionID, tree.ActionNote)
		return err
	})
	return res, wrap("create note", err)
}

func (p *Postgres) DeleteNote(ctx context.Context, connectionID, id uuid.UUID) error {
	tag, err := p.DB.Exec(ctx, `DELETE FROM notes WHERE id=$1 AND connection_id=$2`, id, connectionID)
	if err == nil {
		err = expectRow(tag)
	}
	return wrap("delete note", err)
}

func (p *Postgres) RateNote(ctx context.Context, connectionID, id uuid.UUID, rating int) (*models.Note, error) {
	tag, err := p.DB.Exec(ctx,
		`UPDATE notes SET rating=$1, updated_at=NOW() WHERE id=$2 AND connection_id=$3`, rating, id, connectionID)
	if err == nil {
		err = expectRow(tag)
	}
	if err != nil {
		return nil, wrap("rate note", err)
	}
	return p.GetNote(ctx, connectionID, id)
}

// DeleteExpiredNotes purges temporary notes whose expiry is at or before now.
func (p *Postgres) DeleteExpiredNotes(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.DB.Exec(ctx,
		`DELETE FROM notes WHERE is_temporary AND expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, wrap("delete expired notes", err)
	}
	return tag.RowsAffected(), nil
}
