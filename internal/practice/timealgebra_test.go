package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sangha-backend/internal/models"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func closed(start, end time.Time) models.Session {
	return models.Session{Discipline: "meditation", Intention: "peace", StartTime: start, EndTime: &end}
}

func open(start time.Time) models.Session {
	return models.Session{Discipline: "meditation", Intention: "peace", StartTime: start}
}

func TestDurationMinutes(t *testing.T) {
	tests := []struct {
		name     string
		session  models.Session
		expected int64
	}{
		{"end equals start", closed(now.Add(-time.Hour), now.Add(-time.Hour)), 0},
		{"floors to whole minutes", closed(now.Add(-10*time.Minute), now.Add(-10*time.Minute).Add(5*time.Minute+50*time.Second)), 5},
		{"closed session", closed(now.Add(-2*time.Hour), now.Add(-time.Hour)), 60},
		{"open session runs until now", open(now.Add(-15 * time.Minute)), 15},
		{"open at threshold is not abandoned", open(now.Add(-AbandonThreshold)), 180},
		{"abandoned session", open(now.Add(-AbandonThreshold - time.Second)), 0},
		{"long closed session still counts", closed(now.Add(-10*time.Hour), now.Add(-5*time.Hour)), 300},
		{"end before start", closed(now, now.Add(-time.Minute)), 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DurationMinutes(tc.session, now))
		})
	}
}

func TestOverlaps(t *testing.T) {
	rangeStart := now.Add(-time.Hour)
	rangeEnd := now.Add(time.Hour)

	tests := []struct {
		name     string
		session  models.Session
		expected bool
	}{
		{"ends exactly at range start", closed(now.Add(-2*time.Hour), rangeStart), false},
		{"starts exactly at range end", closed(rangeEnd, rangeEnd.Add(time.Hour)), false},
		{"ends one second into range", closed(now.Add(-2*time.Hour), rangeStart.Add(time.Second)), true},
		{"contained in range", closed(now.Add(-30*time.Minute), now.Add(-10*time.Minute)), true},
		{"covers the range", closed(now.Add(-3*time.Hour), now.Add(3*time.Hour)), true},
		{"entirely before range", closed(now.Add(-5*time.Hour), now.Add(-4*time.Hour)), false},
		{"open session started before range end", open(now.Add(-30 * time.Minute)), true},
		{"abandoned session", open(now.Add(-4 * time.Hour)), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Overlaps(tc.session, rangeStart, rangeEnd, now))
		})
	}
}

func TestOverlaps_OpenSessionBeforeRangeStart(t *testing.T) {
	s := open(now.Add(-10 * time.Minute))

	assert.False(t, Overlaps(s, now, now.Add(time.Hour), now), "open session ends at now, touching the range start")
	assert.True(t, Overlaps(s, now.Add(-time.Minute), now.Add(time.Hour), now))
}

func TestIsOngoing(t *testing.T) {
	assert.True(t, IsOngoing(open(now.Add(-time.Minute)), now))
	assert.False(t, IsOngoing(open(now.Add(-4*time.Hour)), now))
	assert.False(t, IsOngoing(closed(now.Add(-time.Hour), now), now))
}

func TestStartedAtOrAfter(t *testing.T) {
	circleStart := now.Add(-time.Hour)

	assert.True(t, StartedAtOrAfter(closed(circleStart, now), circleStart, now))
	assert.True(t, StartedAtOrAfter(open(circleStart.Add(time.Minute)), circleStart, now))
	assert.False(t, StartedAtOrAfter(closed(circleStart.Add(-time.Second), now), circleStart, now))
	assert.False(t, StartedAtOrAfter(open(now.Add(-4*time.Hour)), now.Add(-5*time.Hour), now))
}

func TestHasOngoingSession(t *testing.T) {
	p := models.NewPractitioner("abc", now)
	assert.False(t, HasOngoingSession(p, now))

	p.Sessions = append(p.Sessions, closed(now.Add(-time.Hour), now.Add(-time.Minute)))
	assert.False(t, HasOngoingSession(p, now))

	p.Sessions = append(p.Sessions, open(now.Add(-time.Minute)))
	assert.True(t, HasOngoingSession(p, now))
}
