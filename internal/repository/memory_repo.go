package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sangha-backend/internal/models"
)

// MemoryPractitionerRepo keeps practitioners in process. It backs development
// runs without DATABASE_URL and the service tests. Every read returns a copy.
type MemoryPractitionerRepo struct {
	mu            sync.RWMutex
	practitioners map[string]*models.Practitioner
}

func NewMemoryPractitionerRepo() *MemoryPractitionerRepo {
	return &MemoryPractitionerRepo{practitioners: make(map[string]*models.Practitioner)}
}

func (r *MemoryPractitionerRepo) Insert(ctx context.Context, p *models.Practitioner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.practitioners[p.ID]; exists {
		return fmt.Errorf("practitioner %s already exists", p.ID)
	}
	r.practitioners[p.ID] = p.Clone()
	return nil
}

func (r *MemoryPractitionerRepo) GetByID(ctx context.Context, id string) (*models.Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.practitioners[id]
	if !ok {
		return nil, fmt.Errorf("practitioner %s: %w", id, ErrNotFound)
	}
	return p.Clone(), nil
}

func (r *MemoryPractitionerRepo) GetAll(ctx context.Context) ([]models.Practitioner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	practitioners := make([]models.Practitioner, 0, len(r.practitioners))
	for _, p := range r.practitioners {
		practitioners = append(practitioners, *p.Clone())
	}
	sort.Slice(practitioners, func(i, j int) bool {
		if practitioners[i].Created.Equal(practitioners[j].Created) {
			return practitioners[i].ID < practitioners[j].ID
		}
		return practitioners[i].Created.Before(practitioners[j].Created)
	})
	return practitioners, nil
}

func (r *MemoryPractitionerRepo) GetByEmail(ctx context.Context, email string) (*models.Practitioner, error) {
	all, _ := r.GetAll(ctx)
	for i := range all {
		if all[i].Email != nil && *all[i].Email == email {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("practitioner with email %s: %w", email, ErrNotFound)
}

func (r *MemoryPractitionerRepo) UpdateInvolved(ctx context.Context, id, fullName, email, description string) error {
	return r.update(id, func(p *models.Practitioner) error {
		p.FullName, p.Email, p.Description = &fullName, &email, &description
		return nil
	})
}

func (r *MemoryPractitionerRepo) AppendSession(ctx context.Context, id string, s models.Session) error {
	return r.update(id, func(p *models.Practitioner) error {
		p.Sessions = append(p.Sessions, s.Clone())
		return nil
	})
}

func (r *MemoryPractitionerRepo) AppendCircle(ctx context.Context, id string, c models.Circle) error {
	return r.update(id, func(p *models.Practitioner) error {
		p.Circles = append(p.Circles, c.Clone())
		return nil
	})
}

func (r *MemoryPractitionerRepo) AddRegisteredCircle(ctx context.Context, id, circleID string) error {
	return r.update(id, func(p *models.Practitioner) error {
		for _, registered := range p.RegisteredCircles {
			if registered == circleID {
				return nil
			}
		}
		p.RegisteredCircles = append(p.RegisteredCircles, circleID)
		return nil
	})
}

func (r *MemoryPractitionerRepo) CloseLatestSession(ctx context.Context, id string, end time.Time) error {
	return r.update(id, func(p *models.Practitioner) error {
		latest := p.LatestSession()
		if latest == nil || latest.EndTime != nil {
			return fmt.Errorf("open session for practitioner %s: %w", id, ErrNotFound)
		}
		latest.EndTime = &end
		return nil
	})
}

func (r *MemoryPractitionerRepo) CloseCircle(ctx context.Context, id, circleID string, end time.Time) error {
	return r.update(id, func(p *models.Practitioner) error {
		c := p.CreatedCircle(circleID)
		if c == nil {
			return fmt.Errorf("circle %s: %w", circleID, ErrNotFound)
		}
		c.EndTime = end
		return nil
	})
}

func (r *MemoryPractitionerRepo) AddCircleFeedback(ctx context.Context, id, circleID string, points int64) error {
	return r.update(id, func(p *models.Practitioner) error {
		c := p.CreatedCircle(circleID)
		if c == nil {
			return fmt.Errorf("circle %s: %w", circleID, ErrNotFound)
		}
		c.Feedback = append(c.Feedback, points)
		return nil
	})
}

func (r *MemoryPractitionerRepo) AppendSpiritBankEntry(ctx context.Context, id string, entry models.SpiritBankLogEntry) (int64, error) {
	var balance int64
	err := r.update(id, func(p *models.Practitioner) error {
		p.SpiritBankLog = append(p.SpiritBankLog, entry)
		for _, e := range p.SpiritBankLog {
			balance += e.Points
		}
		return nil
	})
	return balance, err
}

func (r *MemoryPractitionerRepo) update(id string, fn func(p *models.Practitioner) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.practitioners[id]
	if !ok {
		return fmt.Errorf("practitioner %s: %w", id, ErrNotFound)
	}
	return fn(p)
}
