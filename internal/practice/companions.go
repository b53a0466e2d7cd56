package practice

import (
	"slices"
	"time"

	"sangha-backend/internal/models"
)

// MatchWindow is how far back a companion session may have been active to be matched.
const MatchWindow = 15 * time.Minute

// CompanionSessionReport summarises the other practitioners whose sessions
// overlap [start, end). Each practitioner contributes their latest overlapping session.
func CompanionSessionReport(population []models.Practitioner, practitionerID string, start, end, now time.Time) models.CompanionReport {
	report := models.CompanionReport{Intentions: map[string]int{}}
	for i := range population {
		if population[i].ID == practitionerID {
			continue
		}
		s := latestOverlapping(&population[i], start, end, now)
		if s == nil {
			continue
		}
		report.CompanionCount++
		report.SessionCount++
		report.SessionSumMinutes += DurationMinutes(*s, now)
		report.Intentions[s.Intention]++
	}
	return report
}

// SessionWindow is the interval of s, running to now while s is open.
func SessionWindow(s models.Session, now time.Time) (time.Time, time.Time) {
	return s.StartTime, effectiveEnd(s, now)
}

// MatchCompanions scores the sessions of practitioners active within the last
// MatchWindow against viewer's latest session, best matches first.
func MatchCompanions(population []models.Practitioner, viewer models.Session, viewerID string, now time.Time) []models.CompanionMatch {
	matches := make([]models.CompanionMatch, 0)
	for i := range population {
		if population[i].ID == viewerID {
			continue
		}
		s := latestOverlapping(&population[i], now.Add(-MatchWindow), now, now)
		if s == nil {
			continue
		}
		m := models.CompanionMatch{
			Geolocation: s.Geolocation,
			Discipline:  s.Discipline,
			Intention:   s.Intention,
			StartTime:   s.StartTime,
			EndTime:     s.EndTime,
		}
		if s.Intention == viewer.Intention {
			m.MatchPoints++
		}
		if s.Discipline == viewer.Discipline {
			m.MatchPoints++
		}
		matches = append(matches, m)
	}
	slices.SortStableFunc(matches, func(a, b models.CompanionMatch) int {
		return b.MatchPoints - a.MatchPoints
	})
	return matches
}

func latestOverlapping(p *models.Practitioner, start, end, now time.Time) *models.Session {
	for i := len(p.Sessions) - 1; i >= 0; i-- {
		if Overlaps(p.Sessions[i], start, end, now) {
			return &p.Sessions[i]
		}
	}
	return nil
}
