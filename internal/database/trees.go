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

const treeColumns = `id, connection_id, growth_level, growth_xp, last_watered, created_at, updated_at`

func scanTree(row pgx.Row) (*models.Tree, error) {
	var t models.Tree
	err := row.Scan(&t.ID, &t.ConnectionID, &t.GrowthLevel, &t.GrowthXP, &t.LastWatered, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) GetTree(ctx context.Context, connectionID uuid.UUID) (*models.Tree, error) {
	t, err := scanTree(p.DB.QueryRow(ctx,
		`SELECT `+treeColumns+` FROM trees WHERE connection_id=$1`, connectionID))
	return t, wrap("get tree", err)
}

// awardTx locks the connection's tree and applies action. A connection
// without a tree is left alone and yields a nil result.
func awardTx(ctx context.Context, tx pgx.Tx, connectionID uuid.UUID, action tree.Action) (*tree.Result, error) {
	t, err := scanTree(tx.QueryRow(ctx,
		`SELECT `+treeColumns+` FROM trees WHERE connection_id=$1 FOR UPDATE`, connectionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res := tree.Water(t, action)
	if err := saveTree(ctx, tx, t); err != nil {
		return nil, err
	}
	return &res, nil
}

func saveTree(ctx context.Context, tx pgx.Tx, t *models.Tree) error {
	t.LastWatered = time.Now()
	return tx.QueryRow(ctx, `
		UPDATE trees
		SET growth_xp=$1, growth_level=$2, last_watered=$3, updated_at=NOW()
		WHERE id=$4
		RETURNING updated_at`,
		t.GrowthXP, t.GrowthLevel, t.LastWatered, t.ID,
	).Scan(&t.UpdatedAt)
}

// AwardXP applies action to the connection's tree if it has one.
func (p *Postgres) AwardXP(ctx context.Context, connectionID uuid.UUID, action tree.Action) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = awardTx(ctx, tx, connectionID, action)
		return err
	})
	return res, wrap("award xp", err)
}

// WaterTree is AwardXP that plants a tree first when the connection has none.
func (p *Postgres) WaterTree(ctx context.Context, connectionID uuid.UUID, action tree.Action) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trees (id, connection_id, growth_level, growth_xp, last_watered)
			VALUES ($1, $2, $3, 0, NOW())
			ON CONFLICT (connection_id) DO NOTHING`,
			uuid.New(), connectionID, tree.StartLevel,
		)
		if err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, connectionID, action)
		return err
	})
	return res, wrap("water tree", err)
}
