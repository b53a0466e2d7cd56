package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"sangha-backend/internal/models"
	"sangha-backend/internal/repository"
)

// SettingsStore persists the intention and discipline catalog.
type SettingsStore interface {
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, s *models.Settings) error
}

type SettingsService struct {
	store SettingsStore
	mu    sync.Mutex
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the catalog, storing the defaults on first use.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// AddIntention appends an intention to the catalog. Titles are unique ignoring case.
func (s *SettingsService) AddIntention(ctx context.Context, intention models.Intention) (*models.Settings, error) {
	intention.Title = strings.TrimSpace(intention.Title)
	if intention.Title == "" {
		return nil, &ValidationError{Fields: map[string]string{"title": "Title is required"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, existing := range settings.Intentions {
		if strings.EqualFold(existing.Title, intention.Title) {
			return nil, &ConflictError{Message: "Intention already exists"}
		}
	}

	settings.Intentions = append(settings.Intentions, intention)
	if err := s.store.Save(ctx, settings); err != nil {
		return nil, err
	}

	logrus.WithField("intention", intention.Title).Info("intention added")
	return settings, nil
}

func (s *SettingsService) load(ctx context.Context) (*models.Settings, error) {
	settings, err := s.store.Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	settings = models.DefaultSettings()
	if err := s.store.Save(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}
