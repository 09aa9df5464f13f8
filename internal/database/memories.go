package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const memoryColumns = `id, title, description, image_url, date, user_id, connection_id, created_at, updated_at`

func scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.ImageURL, &m.Date, &m.UserID, &m.ConnectionID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) ListMemories(ctx context.Context, connectionID uuid.UUID) ([]*models.Memory, error) {
	rows, err := p.DB.Query(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE connection_id=$1 ORDER BY date DESC`, connectionID)
	if err != nil {
		return nil, wrap("list memories", err)
	}
	ms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Memory, error) {
		return scanMemory(row)
	})
	return ms, wrap("list memories", err)
}

func (p *Postgres) GetMemory(ctx context.Context, connectionID, id uuid.UUID) (*models.Memory, error) {
	m, err := scanMemory(p.DB.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id=$1 AND connection_id=$2`, id, connectionID))
	return m, wrap("get memory", err)
}

// CreateMemory inserts m and waters the tree in the same transaction.
func (p *Postgres) CreateMemory(ctx context.Context, m *models.Memory) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		m.ID = uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO memories (id, title, description, image_url, date, user_id, connection_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			m.ID, m.Title, m.Description, m.ImageURL, m.Date, m.UserID, m.ConnectionID,
		).Scan(&m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, m.ConnectionID, tree.ActionMemory)
		return err
	})
	return res, wrap("create memory", err)
}

// DeleteMemory removes the row and returns its image URL, if any.
func (p *Postgres) DeleteMemory(ctx context.Context, connectionID, id uuid.UUID) (*string, error) {
	var image *string
	err := p.DB.QueryRow(ctx,
		`DELETE FROM memories WHERE id=$1 AND connection_id=$2 RETURNING image_url`, id, connectionID,
	).Scan(&image)
	return image, wrap("delete memory", err)
}
