package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
)

// CreateNotifications fans n out to recipients, or to every user when
// recipients is nil. Unknown ids are skipped.
func (p *Postgres) CreateNotifications(ctx context.Context, n models.Notification, recipients []uuid.UUID) (int64, error) {
	var ids []string
	if recipients != nil {
		ids = make([]string, 0, len(recipients))
		for _, id := range recipients {
			ids = append(ids, id.String())
		}
	}

	var data any
	if len(n.Data) > 0 {
		data = string(n.Data)
	}

	var created int64
	err := p.tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO notifications (id, title, body, type, data, user_id, sent_at)
			SELECT gen_random_uuid(), $1, $2, $3, $4::jsonb, u.id, NOW()
			FROM users u
			WHERE $5::uuid[] IS NULL OR u.id = ANY($5::uuid[])`,
			n.Title, n.Body, n.Type, data, ids)
		if err != nil {
			return err
		}
		created = tag.RowsAffected()
		return nil
	})
	return created, wrap("create notifications", err)
}

func (p *Postgres) ListNotifications(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT id, title, body, type, is_read, data, user_id, created_at, sent_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, wrap("list notifications", err)
	}
	ns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Notification, error) {
		var (
			n    models.Notification
			data []byte
		)
		err := row.Scan(&n.ID, &n.Title, &n.Body, &n.Type, &n.IsRead, &data, &n.UserID, &n.CreatedAt, &n.SentAt)
		n.Data = data
		return &n, err
	})
	return ns, wrap("list notifications", err)
}

func (p *Postgres) MarkNotificationRead(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := p.DB.Exec(ctx, `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, id, userID)
	if err == nil {
		err = expectRow(tag)
	}
	return wrap("mark notification read", err)
}
