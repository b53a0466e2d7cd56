package practice

import (
	"time"

	"sangha-backend/internal/models"
)

// AbandonThreshold is how long a session may stay open before it is treated as abandoned.
const AbandonThreshold = 180 * time.Minute

// IsAbandoned reports whether s is still open and started more than AbandonThreshold before now.
func IsAbandoned(s models.Session, now time.Time) bool {
	return s.EndTime == nil && now.Sub(s.StartTime) > AbandonThreshold
}

// IsOngoing reports whether s is open and not abandoned.
func IsOngoing(s models.Session, now time.Time) bool {
	return s.EndTime == nil && !IsAbandoned(s, now)
}

// DurationMinutes returns the session length floored to whole minutes.
// Abandoned sessions count as zero.
func DurationMinutes(s models.Session, now time.Time) int64 {
	if IsAbandoned(s, now) {
		return 0
	}
	d := effectiveEnd(s, now).Sub(s.StartTime)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Minute)
}

// Overlaps reports whether s intersects the half-open range [rangeStart, rangeEnd).
// An open session is considered to run until now.
func Overlaps(s models.Session, rangeStart, rangeEnd, now time.Time) bool {
	if IsAbandoned(s, now) {
		return false
	}
	return s.StartTime.Before(rangeEnd) && effectiveEnd(s, now).After(rangeStart)
}

// StartedAtOrAfter reports whether a non-abandoned s started at or after t.
func StartedAtOrAfter(s models.Session, t, now time.Time) bool {
	if IsAbandoned(s, now) {
		return false
	}
	return !s.StartTime.Before(t)
}

// HasOngoingSession reports whether the practitioner's latest session is ongoing.
func HasOngoingSession(p *models.Practitioner, now time.Time) bool {
	latest := p.LatestSession()
	return latest != nil && IsOngoing(*latest, now)
}

func effectiveEnd(s models.Session, now time.Time) time.Time {
	if s.EndTime != nil {
		return *s.EndTime
	}
	return now
}
