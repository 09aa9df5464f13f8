package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/lovetree/lovetree/internal/tree"
)

const specialDaySelect = `
	SELECT d.id, d.title, d.description, d.date, d.is_recurring, d.is_confirmed,
	       d.confirmed_at, d.confirmed_by_id, d.user_id, d.connection_id, d.created_at, d.updated_at,
	       u.id, u.name, u.email, u.image
	FROM special_days d
	JOIN users u ON u.id = d.user_id`

func scanSpecialDay(row pgx.Row) (*models.SpecialDay, error) {
	var (
		d models.SpecialDay
		u models.UserSummary
	)
	err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Date, &d.IsRecurring, &d.IsConfirmed,
		&d.ConfirmedAt, &d.ConfirmedByID, &d.UserID, &d.ConnectionID, &d.CreatedAt, &d.UpdatedAt,
		&u.ID, &u.Name, &u.Email, &u.Image)
	if err != nil {
		return nil, err
	}
	d.User = &u
	return &d, nil
}

func (p *Postgres) ListSpecialDays(ctx context.Context, connectionID uuid.UUID) ([]*models.SpecialDay, error) {
	rows, err := p.DB.Query(ctx, specialDaySelect+` WHERE d.connection_id=$1 ORDER BY d.date ASC`, connectionID)
	if err != nil {
		return nil, wrap("list special days", err)
	}
	ds, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.SpecialDay, error) {
		return scanSpecialDay(row)
	})
	return ds, wrap("list special days", err)
}

func (p *Postgres) GetSpecialDay(ctx context.Context, connectionID, id uuid.UUID) (*models.SpecialDay, error) {
	d, err := scanSpecialDay(p.DB.QueryRow(ctx,
		specialDaySelect+` WHERE d.id=$1 AND d.connection_id=$2`, id, connectionID))
	return d, wrap("get special day", err)
}

func (p *Postgres) CreateSpecialDay(ctx context.Context, d *models.SpecialDay) (*tree.Result, error) {
	var res *tree.Result
	err := p.tx(ctx, func(tx pgx.Tx) error {
		d.ID = uuid.New()
		err := tx.QueryRow(ctx, `
			INSERT INTO special_days (id, title, description, date, is_recurring, user_id, connection_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at`,
			d.ID, d.Title, d.Description, d.Date, d.IsRecurring, d.UserID, d.ConnectionID,
		).Scan(&d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return err
		}
		res, err = awardTx(ctx, tx, d.ConnectionID, tree.ActionSpecialDay)
		return err
	})
	return res, wrap("create special day", err)
}

// ConfirmSpecialDay marks the day confirmed by userID. ErrAlreadyDone is
// returned when another confirmation won the race.
func (p *Postgres) ConfirmSpecialDay(ctx context.Context, connectionID, id, userID uuid.UUID) (*models.SpecialDay, error) {
	tag, err := p.DB.Exec(ctx, `
		UPDATE special_days
		SET is_confirmed=TRUE, confirmed_by_id=$1, confirmed_at=NOW(), updated_at=NOW()
		WHERE id=$2 AND connection_id=$3 AND NOT is_confirmed`, userID, id, connectionID)
	if err != nil {
		return nil, wrap("confirm special day", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyDone
	}
	return p.GetSpecialDay(ctx, connectionID, id)
}

func (p *Postgres) DeleteSpecialDay(ctx context.Context, connectionID, id uuid.UUID) error {
	tag, err := p.DB.Exec(ctx, `DELETE FROM special_days WHERE id=$1 AND connection_id=$2`, id, connectionID)
	if err == nil {
		err = expectRow(tag)
	}
	return wrap("delete special day", err)
}

// Reminder is a special day due on a given date with the users to notify.
type Reminder struct {
	Day        *models.SpecialDay
	Recipients []uuid.UUID
}

// SpecialDaysOn returns the days falling on day's calendar date in paired
// connections. Recurring days match on month and day.
func (p *Postgres) SpecialDaysOn(ctx context.Context, day time.Time) ([]Reminder, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT d.id, d.title, d.description, d.date, d.is_recurring, d.is_confirmed,
		       d.user_id, d.connection_id, c.user_id, c.paired_with_id
		FROM special_days d
		JOIN connections c ON c.id = d.connection_id
		WHERE c.paired_with_id IS NOT NULL
		  AND (d.is_recurring OR d.date BETWEEN $1 AND $2)`,
		day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	if err != nil {
		return nil, wrap("special days on", err)
	}

	all, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Reminder, error) {
		var (
			d             models.SpecialDay
			owner, paired uuid.UUID
		)
		err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Date, &d.IsRecurring, &d.IsConfirmed,
			&d.UserID, &d.ConnectionID, &owner, &paired)
		return Reminder{Day: &d, Recipients: []uuid.UUID{owner, paired}}, err
	})
	if err != nil {
		return nil, wrap("special days on", err)
	}

	var due []Reminder
	for _, r := range all {
		if r.Day.OccursOn(day) {
			due = append(due, r)
		}
	}
	return due, nil
}
