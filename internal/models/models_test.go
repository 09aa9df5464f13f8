package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysLeft(t *testing.T) {
	loc := time.FixedZone("TRT", 3*3600)
	now := time.Date(2024, 3, 10, 23, 59, 0, 0, loc)

	assert.Equal(t, 0, DaysLeft(now, time.Date(2024, 3, 10, 0, 0, 1, 0, loc)))
	assert.Equal(t, 1, DaysLeft(now, time.Date(2024, 3, 11, 0, 0, 0, 0, loc)))
	assert.Equal(t, -1, DaysLeft(now, time.Date(2024, 3, 9, 23, 0, 0, 0, loc)))
	// 22:00 UTC on the 10th is already the 11th in now's zone.
	assert.Equal(t, 1, DaysLeft(now, time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)))
	assert.Equal(t, 365, DaysLeft(now, time.Date(2025, 3, 10, 12, 0, 0, 0, loc)))
}

func TestSpecialDayAnnotate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	d := &SpecialDay{Date: now.Add(2 * time.Hour)}
	d.Annotate(now)
	assert.True(t, d.IsToday)
	assert.False(t, d.IsPast)

	d = &SpecialDay{Date: now.AddDate(0, 0, -3)}
	d.Annotate(now)
	assert.Equal(t, -3, d.DaysLeft)
	assert.True(t, d.IsPast)
}

func TestSpecialDayOccursOn(t *testing.T) {
	anniversary := &SpecialDay{Date: time.Date(2020, 2, 14, 0, 0, 0, 0, time.UTC), IsRecurring: true}
	assert.True(t, anniversary.OccursOn(time.Date(2024, 2, 14, 8, 0, 0, 0, time.UTC)))
	assert.False(t, anniversary.OccursOn(time.Date(2024, 2, 15, 8, 0, 0, 0, time.UTC)))

	once := &SpecialDay{Date: time.Date(2020, 2, 14, 0, 0, 0, 0, time.UTC)}
	assert.False(t, once.OccursOn(time.Date(2024, 2, 14, 8, 0, 0, 0, time.UTC)))
	assert.True(t, once.OccursOn(time.Date(2020, 2, 14, 8, 0, 0, 0, time.UTC)))
}

func TestTimeCapsuleConceal(t *testing.T) {
	now := time.Now()
	secret := "open me later"

	c := &TimeCapsule{Content: &secret, OpenDate: now.Add(24 * time.Hour)}
	c.Conceal(now)
	assert.Nil(t, c.Content)
	require.NotNil(t, c.HiddenUntil)
	assert.True(t, c.HiddenUntil.Equal(c.OpenDate))

	c = &TimeCapsule{Content: &secret, OpenDate: now.Add(-time.Hour)}
	c.Conceal(now)
	require.NotNil(t, c.Content)
	assert.Nil(t, c.HiddenUntil)

	// Opened early by the owner counts as revealed.
	c = &TimeCapsule{Content: &secret, OpenDate: now.Add(time.Hour), IsOpened: true}
	c.Conceal(now)
	assert.NotNil(t, c.Content)
}

func TestSurpriseMarkSeen(t *testing.T) {
	author, partner := uuid.New(), uuid.New()
	s := &Surprise{UserID: author, IsSeenByAuthor: true}

	assert.True(t, s.Pending())
	assert.True(t, s.SeenBy(author))
	assert.False(t, s.SeenBy(partner))

	assert.True(t, s.MarkSeen(partner))
	assert.False(t, s.Pending())
}

func TestConnectionMembership(t *testing.T) {
	owner, partner, stranger := uuid.New(), uuid.New(), uuid.New()
	c := &Connection{UserID: owner}

	assert.True(t, c.HasMember(owner))
	assert.False(t, c.HasMember(partner))
	assert.Nil(t, c.Partner(owner))
	assert.Equal(t, []uuid.UUID{owner}, c.Members())

	c.PairedWithID = &partner
	assert.True(t, c.HasMember(partner))
	assert.False(t, c.HasMember(stranger))
	assert.Equal(t, partner, *c.Partner(owner))
	assert.Equal(t, owner, *c.Partner(partner))
	assert.Equal(t, []uuid.UUID{owner, partner}, c.Members())
}
