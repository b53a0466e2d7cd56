package practice

import (
	"time"

	"sangha-backend/internal/models"
)

// EndSession is the outcome of ending a practitioner's latest session.
type EndSession struct {
	PractitionerID     string         `json:"practitioner_id"`
	ContributionPoints int64          `json:"contribution_points"`
	CirclePoints       int64          `json:"circle_points"`
	Creator            bool           `json:"creator"`
	Circle             *models.Circle `json:"circle,omitempty"`
}

// CalculateEndSession works out whether the practitioner created the circle of
// their latest session and, if so, the bonus owed for the sessions it attracted.
// The whole population is scanned, the creator included.
func CalculateEndSession(
	p *models.Practitioner,
	population []models.Practitioner,
	contributionPoints int64,
	sharePercent int64,
	now time.Time,
) EndSession {
	result := EndSession{
		PractitionerID:     p.ID,
		ContributionPoints: contributionPoints,
	}

	latest := p.LatestSession()
	if latest == nil || latest.Circle == nil {
		return result
	}

	circle := latest.Circle.Clone()
	result.Circle = &circle
	result.Creator = p.CreatorOf(circle.ID)
	if !result.Creator {
		return result
	}

	count := SessionsInCircle(population, circle, now)
	result.CirclePoints = CircleBonus(count, circle.MinimumSpiritContribution, sharePercent)
	return result
}

// SessionsInCircle counts practitioners holding at least one session in circle
// that started at or after the circle's start.
func SessionsInCircle(population []models.Practitioner, circle models.Circle, now time.Time) int {
	count := 0
	for i := range population {
		for _, s := range population[i].Sessions {
			if s.CircleID() == circle.ID && StartedAtOrAfter(s, circle.StartTime, now) {
				count++
				break
			}
		}
	}
	return count
}

// CircleBonus is round-half-up(sessions * minimum * percent / 100).
func CircleBonus(sessions int, minimumContribution, sharePercent int64) int64 {
	product := int64(sessions) * minimumContribution * sharePercent
	if product <= 0 {
		return 0
	}
	return (product + 50) / 100
}

// CanCreateCircle is the eligibility gate for creating circles.
func CanCreateCircle(entries []models.SpiritBankLogEntry, minimum int64) bool {
	return Balance(entries) >= minimum
}

// VirtualRegistrationCost is what a creator pays for count proxy attendees.
func VirtualRegistrationCost(count int, perVirtual int64) int64 {
	if count <= 0 {
		return 0
	}
	return int64(count) * perVirtual
}

// CompanionReport summarises the other practitioners' ongoing latest sessions.
func CompanionReport(population []models.Practitioner, practitionerID string, now time.Time) models.CompanionReport {
	report := models.CompanionReport{Intentions: map[string]int{}}
	for i := range population {
		p := &population[i]
		if p.ID == practitionerID || !HasOngoingSession(p, now) {
			continue
		}
		latest := p.LatestSession()
		report.CompanionCount++
		report.SessionCount++
		report.SessionSumMinutes += DurationMinutes(*latest, now)
		report.Intentions[latest.Intention]++
	}
	return report
}

// CompanionWindowReport summarises every session of every practitioner that
// overlaps [start, end). CompanionCount is the number of distinct practitioners.
func CompanionWindowReport(population []models.Practitioner, start, end, now time.Time) models.CompanionReport {
	report := models.CompanionReport{Intentions: map[string]int{}}
	for i := range population {
		matched := false
		for _, s := range population[i].Sessions {
			if !Overlaps(s, start, end, now) {
				continue
			}
			matched = true
			report.SessionCount++
			report.SessionSumMinutes += DurationMinutes(s, now)
			report.Intentions[s.Intention]++
		}
		if matched {
			report.CompanionCount++
		}
	}
	return report
}
