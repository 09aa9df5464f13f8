package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordUpload remembers who stored the file at url.
func (p *Postgres) RecordUpload(ctx context.Context, url string, userID uuid.UUID) error {
	_, err := p.DB.Exec(ctx, `INSERT INTO uploads (url, user_id) VALUES ($1, $2)`, url, userID)
	return wrap("record upload", err)
}

// ReleaseUpload forgets url if one of owners uploaded it and reports whether
// it did. Callers only unlink the file when it was released.
func (p *Postgres) ReleaseUpload(ctx context.Context, url string, owners []uuid.UUID) (bool, error) {
	ids := make([]string, 0, len(owners))
	for _, id := range owners {
		ids = append(ids, id.String())
	}
	var released string
	err := p.DB.QueryRow(ctx,
		`DELETE FROM uploads WHERE url=$1 AND user_id = ANY($2::uuid[]) RETURNING url`, url, ids,
	).Scan(&released)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("release upload", err)
	}
	return true, nil
}
