package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
)

// ListMessages returns the conversation oldest first, then marks the
// partner's unread messages as read for reader.
func (p *Postgres) ListMessages(ctx context.Context, connectionID, reader uuid.UUID) ([]*models.ChatMessage, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT m.id, m.content, m.is_read, m.user_id, m.connection_id, m.created_at, m.updated_at,
		       u.id, u.name, u.email, u.image
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.connection_id=$1
		ORDER BY m.created_at ASC`, connectionID)
	if err != nil {
		return nil, wrap("list messages", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.ChatMessage, error) {
		var (
			m models.ChatMessage
			u models.UserSummary
		)
		err := row.Scan(&m.ID, &m.Content, &m.IsRead, &m.UserID, &m.ConnectionID, &m.CreatedAt, &m.UpdatedAt,
			&u.ID, &u.Name, &u.Email, &u.Image)
		m.User = &u
		return &m, err
	})
	if err != nil {
		return nil, wrap("list messages", err)
	}

	_, err = p.DB.Exec(ctx, `
		UPDATE chat_messages SET is_read=TRUE, updated_at=NOW()
		WHERE connection_id=$1 AND user_id<>$2 AND NOT is_read`, connectionID, reader)
	if err != nil {
		return nil, wrap("mark messages read", err)
	}
	return msgs, nil
}

func (p *Postgres) CreateMessage(ctx context.Context, m *models.ChatMessage) error {
	m.ID = uuid.New()
	err := p.tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO chat_messages (id, content, user_id, connection_id)
			VALUES ($1, $2, $3, $4)
			RETURNING is_read, created_at, updated_at`,
			m.ID, m.Content, m.UserID, m.ConnectionID,
		).Scan(&m.IsRead, &m.CreatedAt, &m.UpdatedAt)
	})
	return wrap("create message", err)
}
