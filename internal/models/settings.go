package models

// Settings is the catalog of intentions and disciplines offered to practitioners.
type Settings struct {
	Intentions  []Intention  `json:"intentions"`
	Disciplines []Discipline `json:"disciplines"`
}

func (s *Settings) HasIntention(title string) bool {
	for _, i := range s.Intentions {
		if i.Title == title {
			return true
		}
	}
	return false
}

func (s *Settings) Clone() *Settings {
	c := &Settings{
		Intentions:  append([]Intention{}, s.Intentions...),
		Disciplines: make([]Discipline, len(s.Disciplines)),
	}
	for i, d := range s.Disciplines {
		c.Disciplines[i] = Discipline{Title: d.Title, Practices: append([]Practice(nil), d.Practices...)}
	}
	return c
}

// DefaultSettings is stored the first time the catalog is read.
func DefaultSettings() *Settings {
	return &Settings{
		Intentions: []Intention{
			{Title: "WELLBEING", Description: "Restoration of the optimal state of the receiver at any level: physical, emotional, mental, energetic or spiritual."},
			{Title: "HARMONY", Description: "The aspiration towards peace, inner and outer, from personal to international."},
			{Title: "FREEDOM", Description: "Freedom to think, express, move and act, and freedom from suffering, oppression and addiction."},
			{Title: "EMPOWERMENT", Description: "Feeling capable and confident, free to say yes and to say no."},
			{Title: "RESOLUTION", Description: "Positive completion of conflicts, misunderstandings and inner struggles."},
			{Title: "EMPATHY", Description: "Joys grow and burdens lighten through sharing."},
			{Title: "ABUNDANCE", Description: "A deep sense of sufficiency, inward or outward."},
			{Title: "LOVE", Description: "Romantic, familial or unconditional; heartfelt appreciation over judgement."},
			{Title: "CELEBRATION", Description: "Achievements and milestones of any size, shared with others."},
			{Title: "TRANSFORMATION", Description: "Meeting change well, and helping one another do so."},
		},
		Disciplines: []Discipline{
			{Title: "Meditation", Practices: []Practice{{Title: "Mindfulness"}, {Title: "Transcendental"}}},
			{Title: "Yoga", Practices: []Practice{{Title: "Tantra"}, {Title: "Hatha"}}},
		},
	}
}
