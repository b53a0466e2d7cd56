package models

import (
	"time"
)

// SpiritBankStartPoints is granted to every new practitioner as the first ledger entry.
const SpiritBankStartPoints int64 = 50

type Practitioner struct {
	ID                string               `json:"id"`
	Created           time.Time            `json:"created"`
	Sessions          []Session            `json:"sessions"`
	Circles           []Circle             `json:"circles"`
	RegisteredCircles []string             `json:"registered_circles"`
	SpiritBankLog     []SpiritBankLogEntry `json:"spirit_bank_log"`
	FullName          *string              `json:"full_name"`
	Email             *string              `json:"email"`
	Description       *string              `json:"description"`
}

// NewPractitioner returns a practitioner whose ledger holds exactly the START grant.
func NewPractitioner(id string, now time.Time) *Practitioner {
	return &Practitioner{
		ID:                id,
		Created:           now,
		Sessions:          []Session{},
		Circles:           []Circle{},
		RegisteredCircles: []string{},
		SpiritBankLog: []SpiritBankLogEntry{
			{Created: now, Type: SpiritBankStart, Points: SpiritBankStartPoints},
		},
	}
}

// Involved reports whether all "get involved" fields are set.
func (p *Practitioner) Involved() bool {
	return p.FullName != nil && p.Email != nil && p.Description != nil
}

// LatestSession returns the last started session, or nil when there is none.
func (p *Practitioner) LatestSession() *Session {
	if len(p.Sessions) == 0 {
		return nil
	}
	return &p.Sessions[len(p.Sessions)-1]
}

// CreatorOf reports whether circleID is one of the circles this practitioner created.
func (p *Practitioner) CreatorOf(circleID string) bool {
	return p.CreatedCircle(circleID) != nil
}

func (p *Practitioner) CreatedCircle(circleID string) *Circle {
	if circleID == "" {
		return nil
	}
	for i := range p.Circles {
		if p.Circles[i].ID == circleID {
			return &p.Circles[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can keep a snapshot that later
// mutations of the stored record cannot reach.
func (p *Practitioner) Clone() *Practitioner {
	c := *p
	c.Sessions = make([]Session, len(p.Sessions))
	for i := range p.Sessions {
		c.Sessions[i] = p.Sessions[i].Clone()
	}
	c.Circles = make([]Circle, len(p.Circles))
	for i := range p.Circles {
		c.Circles[i] = p.Circles[i].Clone()
	}
	c.RegisteredCircles = append([]string{}, p.RegisteredCircles...)
	c.SpiritBankLog = append([]SpiritBankLogEntry{}, p.SpiritBankLog...)
	c.FullName = cloneString(p.FullName)
	c.Email = cloneString(p.Email)
	c.Description = cloneString(p.Description)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type PractitionerReport struct {
	ID               string    `json:"id"`
	Created          time.Time `json:"created"`
	SpiritBankPoints int64     `json:"spirit_bank_points"`
	Involved         bool      `json:"involved"`
	SessionCount     int       `json:"session_count"`
	TotalMinutes     int64     `json:"total_minutes"`
	FullName         *string   `json:"full_name,omitempty"`
	Email            *string   `json:"email,omitempty"`
}

type InvolvedRequest struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Description string `json:"description"`
}

type CreatePractitionerRequest struct {
	ID string `json:"id"`
}
