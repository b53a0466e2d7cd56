package models

import (
	"time"
)

type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Session is a timed unit of practice. EndTime is nil while the session is open.
type Session struct {
	Index       int          `json:"index"`
	Geolocation *Geolocation `json:"geolocation,omitempty"`
	Discipline  string       `json:"discipline"`
	Practice    string       `json:"practice,omitempty"`
	Intention   string       `json:"intention"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	Circle      *Circle      `json:"circle,omitempty"`
}

func (s Session) Clone() Session {
	c := s
	if s.Geolocation != nil {
		g := *s.Geolocation
		c.Geolocation = &g
	}
	if s.EndTime != nil {
		e := *s.EndTime
		c.EndTime = &e
	}
	if s.Circle != nil {
		circle := s.Circle.Clone()
		c.Circle = &circle
	}
	return c
}

// CircleID returns the id of the referenced circle, or "" when the session is not in a circle.
func (s Session) CircleID() string {
	if s.Circle == nil {
		return ""
	}
	return s.Circle.ID
}

type StartSessionRequest struct {
	Geolocation *Geolocation `json:"geolocation"`
	Discipline  string       `json:"discipline"`
	Practice    string       `json:"practice"`
	Intention   string       `json:"intention"`
}

type EndSessionRequest struct {
	Points   int64  `json:"points"`
	Feedback *int64 `json:"feedback"`
}

type CompanionReport struct {
	CompanionCount    int            `json:"companion_count"`
	SessionCount      int            `json:"session_count"`
	SessionSumMinutes int64          `json:"session_sum_minutes"`
	Intentions        map[string]int `json:"intentions"`
}

// CompanionMatch is an ongoing companion session scored against the viewer's
// latest session: one point for the same intention, one for the same discipline.
type CompanionMatch struct {
	MatchPoints int          `json:"match_points"`
	Geolocation *Geolocation `json:"geolocation,omitempty"`
	Discipline  string       `json:"discipline"`
	Intention   string       `json:"intention"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
}
