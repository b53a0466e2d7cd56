package models

import (
	"time"
)

type Intention struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

type Practice struct {
	Title string `json:"title"`
}

type Discipline struct {
	Title     string     `json:"title"`
	Practices []Practice `json:"practices,omitempty"`
}

// Circle is a scheduled group practice. It is active in [StartTime, EndTime).
type Circle struct {
	ID                        string       `json:"id"`
	Name                      string       `json:"name"`
	Description               string       `json:"description"`
	Geolocation               *Geolocation `json:"geolocation,omitempty"`
	StartTime                 time.Time    `json:"start_time"`
	EndTime                   time.Time    `json:"end_time"`
	Intentions                []Intention  `json:"intentions"`
	Disciplines               []Discipline `json:"disciplines"`
	MinimumSpiritContribution int64        `json:"minimum_spirit_contribution"`
	Language                  string       `json:"language"`
	VirtualRegistered         int          `json:"virtual_registered"`
	Feedback                  []int64      `json:"feedback"`
}

func (c Circle) Active(now time.Time) bool {
	return !now.Before(c.StartTime) && now.Before(c.EndTime)
}

func (c Circle) HasDiscipline(title string) bool {
	for _, d := range c.Disciplines {
		if d.Title == title {
			return true
		}
	}
	return false
}

func (c Circle) HasIntention(title string) bool {
	for _, i := range c.Intentions {
		if i.Title == title {
			return true
		}
	}
	return false
}

func (c Circle) Clone() Circle {
	cp := c
	if c.Geolocation != nil {
		g := *c.Geolocation
		cp.Geolocation = &g
	}
	cp.Intentions = append([]Intention(nil), c.Intentions...)
	cp.Disciplines = append([]Discipline(nil), c.Disciplines...)
	cp.Feedback = append([]int64(nil), c.Feedback...)
	return cp
}

type CreateCircleRequest struct {
	Name                      string       `json:"name"`
	Description               string       `json:"description"`
	Geolocation               *Geolocation `json:"geolocation"`
	StartTime                 time.Time    `json:"start_time"`
	EndTime                   time.Time    `json:"end_time"`
	Intentions                []Intention  `json:"intentions"`
	Disciplines               []Discipline `json:"disciplines"`
	MinimumSpiritContribution int64        `json:"minimum_spirit_contribution"`
	Language                  string       `json:"language"`
	VirtualRegistered         int          `json:"virtual_registered"`
}

type CircleReport struct {
	Name                  string `json:"name"`
	Description           string `json:"description"`
	NumberOfPractitioners int    `json:"number_of_practitioners"`
	GeneratedPoints       int64  `json:"generated_points"`
}
