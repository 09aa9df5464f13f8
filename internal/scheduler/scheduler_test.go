package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lovetree/lovetree/internal/database"
	"github.com/lovetree/lovetree/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	n          models.Notification
	recipients []uuid.UUID
}

type fakeStore struct {
	reminders  []database.Reminder
	daysErr    error
	notified   []sent
	expiredAt  time.Time
	expiredCnt int64
}

func (f *fakeStore) SpecialDaysOn(_ context.Context, _ time.Time) ([]database.Reminder, error) {
	return f.reminders, f.daysErr
}

func (f *fakeStore) CreateNotifications(_ context.Context, n models.Notification, recipients []uuid.UUID) (int64, error) {
	f.notified = append(f.notified, sent{n, recipients})
	return int64(len(recipients)), nil
}

func (f *fakeStore) DeleteExpiredNotes(_ context.Context, now time.Time) (int64, error) {
	f.expiredAt = now
	return f.expiredCnt, nil
}

type fakePruner struct{ maxIdle time.Duration }

func (p *fakePruner) Cleanup(maxIdle time.Duration) int {
	p.maxIdle = maxIdle
	return 3
}

func (p *fakePruner) Len() int { return 1 }

func newTestScheduler(store Store, pruner Pruner, now time.Time) *Scheduler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := New(store, pruner, logger)
	s.now = func() time.Time { return now }
	return s
}

func TestSendSpecialDayReminders(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	day := &models.SpecialDay{ID: uuid.New(), ConnectionID: uuid.New(), Title: "Anniversary"}
	store := &fakeStore{reminders: []database.Reminder{{Day: day, Recipients: []uuid.UUID{a, b}}}}
	s := newTestScheduler(store, nil, time.Date(2024, 2, 14, 8, 0, 0, 0, time.UTC))

	require.NoError(t, s.SendSpecialDayReminders(context.Background()))
	require.Len(t, store.notified, 1)

	got := store.notified[0]
	assert.Equal(t, models.NotificationSpecialDay, got.n.Type)
	assert.Equal(t, "Anniversary", got.n.Title)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, got.recipients)

	var data map[string]string
	require.NoError(t, json.Unmarshal(got.n.Data, &data))
	assert.Equal(t, day.ID.String(), data["specialDayId"])
}

func TestSendSpecialDayRemindersPropagatesErrors(t *testing.T) {
	store := &fakeStore{daysErr: errors.New("db down")}
	s := newTestScheduler(store, nil, time.Now())
	assert.Error(t, s.SendSpecialDayReminders(context.Background()))
	assert.Empty(t, store.notified)
}

func TestExpireNotesUsesClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeStore{expiredCnt: 2}
	s := newTestScheduler(store, nil, now)

	require.NoError(t, s.ExpireNotes(context.Background()))
	assert.Equal(t, now, store.expiredAt)
}

func TestPruneLimiter(t *testing.T) {
	p := &fakePruner{}
	s := newTestScheduler(&fakeStore{}, p, time.Now())
	require.NoError(t, s.PruneLimiter(context.Background()))
	assert.Equal(t, limiterMaxIdle, p.maxIdle)

	// without a limiter the job is a no-op
	assert.NoError(t, newTestScheduler(&fakeStore{}, nil, time.Now()).PruneLimiter(context.Background()))
}

func TestStartRegistersJobs(t *testing.T) {
	s := newTestScheduler(&fakeStore{}, nil, time.Now())
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 3)
}
