package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const surpriseColumns = `s.id, s.image_url, s.message, s.is_seen_by_author, s.is_seen_by_partner,
	       s.user_id, s.connection_id, s.created_at`

func scanSurprise(row pgx.Row) (*models.Surprise, error) {
	var s models.Surprise
	err := row.Scan(&s.ID, &s.ImageURL, &s.Message, &s.IsSeenByAuthor, &s.IsSeenByPartner,
		&s.UserID, &s.ConnectionID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListUnseenSurprises returns what viewer has not seen yet in the connection, newest first.
func (p *Postgres) ListUnseenSurprises(ctx context.Context, connectionID, viewer uuid.UUID) ([]*models.Surprise, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT `+surpriseColumns+`, u.id, u.name, u.email, u.image
		FROM surprises s
		JOIN users u ON u.id = s.user_id
		WHERE s.connection_id=$1
		  AND ((s.user_id=$2 AND NOT s.is_seen_by_author)
		    OR (s.user_id<>$2 AND NOT s.is_seen_by_partner))
		ORDER BY s.created_at DESC`, connectionID, viewer)
	if err != nil {
		return nil, wrap("list surprises", err)
	}
	ss, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Surprise, error) {
		var (
			s models.Surprise
			u models.UserSummary
		)
		err := row.Scan(&s.ID, &s.ImageURL, &s.Message, &s.IsSeenByAuthor, &s.IsSeenByPartner,
			&s.UserID, &s.ConnectionID, &s.CreatedAt, &u.ID, &u.Name, &u.Email, &u.Image)
		s.User = &u
		return &s, err
	})
	return ss, wrap("list surprises", err)
}

func (p *Postgres) GetSurprise(ctx context.Context, id uuid.UUID) (*models.Surprise, error) {
	s, err := scanSurprise(p.DB.QueryRow(ctx, `SELECT `+surpriseColumns+` FROM surprises s WHERE s.id=$1`, id))
	return s, wrap("get surprise", err)
}

// CreateSurprise inserts s unless its author still has a surprise in the
// connection that is Pending (see models.Surprise.Pending), in which case
// ErrPendingSurprise is returned.
func (p *Postgres) CreateSurprise(ctx context.Context, s *models.Surprise) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM connections WHERE id=$1 FOR UPDATE`, s.ConnectionID); err != nil {
			return err
		}

		var pending bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM surprises
				WHERE connection_id=$1 AND user_id=$2
				  AND (NOT is_seen_by_author OR NOT is_seen_by_partner)
			)`, s.ConnectionID, s.UserID).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingSurprise
		}

		s.ID = uuid.New()
		s.IsSeenByAuthor = true
		s.IsSeenByPartner = false
		err = tx.QueryRow(ctx, `
			INSERT INTO surprises (id, image_url, message, is_seen_by_author, is_seen_by_partner, user_id, connection_id)
			VALUES ($1, $2, $3, TRUE, FALSE, $4, $5)
			RETURNING created_at`,
			s.ID, s.ImageURL, s.Message, s.UserID, s.ConnectionID,
		).Scan(&s.CreatedAt)
		if err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, s.ConnectionID, tree.ActionSurprise)
		return err
	})
	return res, wrap("create surprise", err)
}

// MarkSurpriseSeen records that viewer saw the surprise. When both sides have
// seen it the row is deleted and deleted is true.
func (p *Postgres) MarkSurpriseSeen(ctx context.Context, id, viewer uuid.UUID) (s *models.Surprise, deleted bool, err error) {
	err = p.tx(ctx, func(tx pgx.Tx) error {
		var err error
		s, err = scanSurprise(tx.QueryRow(ctx,
			`SELECT `+surpriseColumns+` FROM surprises s WHERE s.id=$1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if s.MarkSeen(viewer) {
			deleted = true
			_, err = tx.Exec(ctx, `DELETE FROM surprises WHERE id=$1`, id)
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE surprises SET is_seen_by_author=$1, is_seen_by_partner=$2 WHERE id=$3`,
			s.IsSeenByAuthor, s.IsSeenByPartner, id)
		return err
	})
	if err != nil {
		return nil, false, wrap("mark surprise seen", err)
	}
	return s, deleted, nil
}
