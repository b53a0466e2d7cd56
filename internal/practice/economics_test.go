package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sangha-backend/internal/models"
)

func testCircle() models.Circle {
	return models.Circle{
		ID:                        "circle-1",
		Name:                      "Morning sit",
		StartTime:                 now.Add(-time.Hour),
		EndTime:                   now.Add(time.Hour),
		MinimumSpiritContribution: 12,
	}
}

func inCircle(circle models.Circle, start time.Time) models.Session {
	c := circle
	return models.Session{Discipline: "meditation", Intention: "peace", StartTime: start, Circle: &c}
}

// creatorPopulation builds a creator whose own circle session started before the
// circle and n participants who joined after it started.
func creatorPopulation(n int) (*models.Practitioner, []models.Practitioner) {
	circle := testCircle()
	creator := models.NewPractitioner("creator", now.Add(-24*time.Hour))
	creator.Circles = []models.Circle{circle}
	creator.Sessions = []models.Session{inCircle(circle, circle.StartTime.Add(-5*time.Minute))}

	population := []models.Practitioner{*creator}
	for i := 0; i < n; i++ {
		p := models.NewPractitioner(string(rune('a'+i)), now.Add(-24*time.Hour))
		p.Sessions = []models.Session{inCircle(circle, circle.StartTime.Add(time.Duration(i+1)*time.Minute))}
		population = append(population, *p)
	}
	return creator, population
}

func TestCalculateEndSession_CreatorFullShare(t *testing.T) {
	creator, population := creatorPopulation(3)

	result := CalculateEndSession(creator, population, 7, 100, now)

	assert.True(t, result.Creator)
	assert.Equal(t, int64(36), result.CirclePoints)
	assert.Equal(t, int64(7), result.ContributionPoints)
	assert.Equal(t, "creator", result.PractitionerID)
	require.NotNil(t, result.Circle)
	assert.Equal(t, "circle-1", result.Circle.ID)
}

func TestCalculateEndSession_RoundsHalfUp(t *testing.T) {
	creator, population := creatorPopulation(3)

	result := CalculateEndSession(creator, population, 0, 90, now)

	assert.Equal(t, int64(32), result.CirclePoints)
}

func TestCalculateEndSession_CountsCreatorsOwnQualifyingSession(t *testing.T) {
	creator, population := creatorPopulation(3)
	circle := testCircle()
	population[0].Sessions = []models.Session{inCircle(circle, circle.StartTime)}
	creator.Sessions = population[0].Sessions

	result := CalculateEndSession(creator, population, 0, 100, now)

	assert.Equal(t, int64(48), result.CirclePoints)
}

func TestCalculateEndSession_NonCreator(t *testing.T) {
	_, population := creatorPopulation(3)
	participant := population[1]

	result := CalculateEndSession(&participant, population, 5, 100, now)

	assert.False(t, result.Creator)
	assert.Zero(t, result.CirclePoints)
	assert.NotNil(t, result.Circle)
}

func TestCalculateEndSession_NoCircle(t *testing.T) {
	p := models.NewPractitioner("solo", now)
	p.Sessions = []models.Session{open(now.Add(-time.Minute))}

	result := CalculateEndSession(p, []models.Practitioner{*p}, 5, 100, now)

	assert.False(t, result.Creator)
	assert.Zero(t, result.CirclePoints)
	assert.Nil(t, result.Circle)
}

func TestCalculateEndSession_NoSessions(t *testing.T) {
	p := models.NewPractitioner("fresh", now)

	result := CalculateEndSession(p, nil, 5, 100, now)

	assert.False(t, result.Creator)
	assert.Zero(t, result.CirclePoints)
}

func TestSessionsInCircle_CountsPractitionersOnce(t *testing.T) {
	circle := testCircle()
	p := models.NewPractitioner("twice", now)
	p.Sessions = []models.Session{
		inCircle(circle, circle.StartTime.Add(time.Minute)),
		inCircle(circle, circle.StartTime.Add(2*time.Minute)),
	}
	other := models.Circle{ID: "circle-2", StartTime: circle.StartTime, EndTime: circle.EndTime}
	q := models.NewPractitioner("elsewhere", now)
	q.Sessions = []models.Session{inCircle(other, circle.StartTime.Add(time.Minute))}

	assert.Equal(t, 1, SessionsInCircle([]models.Practitioner{*p, *q}, circle, now))
}

func TestCircleBonus(t *testing.T) {
	tests := []struct {
		name     string
		sessions int
		minimum  int64
		percent  int64
		expected int64
	}{
		{"full share", 3, 12, 100, 36},
		{"rounds down below half", 3, 12, 90, 32},
		{"rounds half up", 1, 1, 50, 1},
		{"rounds up above half", 1, 5, 13, 1},
		{"no sessions", 0, 12, 100, 0},
		{"zero percent", 3, 12, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CircleBonus(tc.sessions, tc.minimum, tc.percent))
		})
	}
}

func TestCanCreateCircle(t *testing.T) {
	assert.True(t, CanCreateCircle(entries(50), 50))
	assert.False(t, CanCreateCircle(entries(50, -1), 50))
}

func TestVirtualRegistrationCost(t *testing.T) {
	assert.Equal(t, int64(30), VirtualRegistrationCost(3, 10))
	assert.Zero(t, VirtualRegistrationCost(0, 10))
	assert.Zero(t, VirtualRegistrationCost(-2, 10))
}

func TestCompanionReport(t *testing.T) {
	me := models.NewPractitioner("me", now)
	me.Sessions = []models.Session{open(now.Add(-5 * time.Minute))}

	a := models.NewPractitioner("a", now)
	a.Sessions = []models.Session{{Intention: "peace", StartTime: now.Add(-10 * time.Minute)}}
	b := models.NewPractitioner("b", now)
	b.Sessions = []models.Session{{Intention: "love", StartTime: now.Add(-20 * time.Minute)}}
	c := models.NewPractitioner("c", now)
	c.Sessions = []models.Session{{Intention: "peace", StartTime: now.Add(-5 * time.Hour)}}
	d := models.NewPractitioner("d", now)

	report := CompanionReport([]models.Practitioner{*me, *a, *b, *c, *d}, "me", now)

	assert.Equal(t, 2, report.CompanionCount)
	assert.Equal(t, 2, report.SessionCount)
	assert.Equal(t, int64(30), report.SessionSumMinutes)
	assert.Equal(t, map[string]int{"peace": 1, "love": 1}, report.Intentions)
}

func TestCompanionWindowReport(t *testing.T) {
	ended := now.Add(-2 * time.Hour)
	a := models.NewPractitioner("a", now)
	a.Sessions = []models.Session{
		{Intention: "peace", StartTime: now.Add(-150 * time.Minute), EndTime: &ended},
		{Intention: "peace", StartTime: now.Add(-10 * time.Minute)},
	}
	old := now.Add(-25 * time.Hour)
	oldEnd := old.Add(30 * time.Minute)
	b := models.NewPractitioner("b", now)
	b.Sessions = []models.Session{{Intention: "love", StartTime: old, EndTime: &oldEnd}}
	c := models.NewPractitioner("c", now)

	report := CompanionWindowReport([]models.Practitioner{*a, *b, *c}, now.Add(-24*time.Hour), now, now)

	assert.Equal(t, 1, report.CompanionCount)
	assert.Equal(t, 2, report.SessionCount)
	assert.Equal(t, int64(40), report.SessionSumMinutes)
	assert.Equal(t, map[string]int{"peace": 2}, report.Intentions)
}
