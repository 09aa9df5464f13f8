// Package scheduler runs the service's periodic jobs on a cron.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/metrics"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	ReminderSpec    = "0 8 * * *"
	ExpireNotesSpec = "@every 10m"
	PruneSpec       = "@every 1h"

	limiterMaxIdle = time.Hour
	jobTimeout     = 2 * time.Minute
)

type Store interface {
	SpecialDaysOn(ctx context.Context, day time.Time) ([]database.Reminder, error)
	CreateNotifications(ctx context.Context, n models.Notification, recipients []uuid.UUID) (int64, error)
	DeleteExpiredNotes(ctx context.Context, now time.Time) (int64, error)
}

// Pruner is the rate limiter's idle-entry cleanup.
type Pruner interface {
	Cleanup(maxIdle time.Duration) int
	Len() int
}

type Scheduler struct {
	cron    *cron.Cron
	store   Store
	limiter Pruner
	logger  *logrus.Logger
	now     func() time.Time
}

// New builds a scheduler; limiter may be nil.
func New(store Store, limiter Pruner, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		store:   store,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the jobs and starts the cron in the background.
func (s *Scheduler) Start() error {
	jobs := []struct {
		spec string
		name string
		fn   func(context.Context) error
	}{
		{ReminderSpec, "special-day-reminders", s.SendSpecialDayReminders},
		{ExpireNotesSpec, "expire-notes", s.ExpireNotes},
		{PruneSpec, "prune-limiter", s.PruneLimiter},
	}
	for _, j := range jobs {
		if _, err := s.cron.AddFunc(j.spec, s.wrap(j.name, j.fn)); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) wrap(name string, fn func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		err := fn(ctx)
		metrics.RecordJob(name, time.Since(start), err == nil)
		if err != nil {
			s.logger.WithError(err).WithField("job", name).Error("scheduled job failed")
		}
	}
}

// SendSpecialDayReminders notifies both members of every special day falling today.
func (s *Scheduler) SendSpecialDayReminders(ctx context.Context) error {
	today := s.now()
	due, err := s.store.SpecialDaysOn(ctx, today)
	if err != nil {
		return err
	}

	sent := 0
	for _, r := range due {
		data, err := json.Marshal(map[string]string{
			"specialDayId": r.Day.ID.String(),
			"connectionId": r.Day.ConnectionID.String(),
		})
		if err != nil {
			return err
		}
		n := models.Notification{
			Title: r.Day.Title,
			Body:  fmt.Sprintf("Today is %s!", r.Day.Title),
			Type:  models.NotificationSpecialDay,
			Data:  data,
		}
		if _, err := s.store.CreateNotifications(ctx, n, r.Recipients); err != nil {
			return fmt.Errorf("notify special day %s: %w", r.Day.ID, err)
		}
		sent++
	}

	s.logger.WithField("days", sent).Info("special day reminders sent")
	return nil
}

func (s *Scheduler) ExpireNotes(ctx context.Context) error {
	n, err := s.store.DeleteExpiredNotes(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("expired temporary notes removed")
	}
	return nil
}

func (s *Scheduler) PruneLimiter(context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if n := s.limiter.Cleanup(limiterMaxIdle); n > 0 {
		s.logger.WithFields(logrus.Fields{"count": n, "remaining": s.limiter.Len()}).Debug("pruned idle rate limiters")
	}
	return nil
}
