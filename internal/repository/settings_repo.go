package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sangha-backend/internal/models"
)

// SettingsRepo stores the catalog in the single row of the settings table.
type SettingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{pool: pool}
}

func (r *SettingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	var intentions, disciplines []byte
	err := r.pool.QueryRow(ctx, "SELECT intentions, disciplines FROM settings WHERE id = 1").Scan(&intentions, &disciplines)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("settings: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	s := &models.Settings{}
	if err := json.Unmarshal(intentions, &s.Intentions); err != nil {
		return nil, fmt.Errorf("decode intentions: %w", err)
	}
	if err := json.Unmarshal(disciplines, &s.Disciplines); err != nil {
		return nil, fmt.Errorf("decode disciplines: %w", err)
	}
	return s, nil
}

func (r *SettingsRepo) Save(ctx context.Context, s *models.Settings) error {
	intentions, err := json.Marshal(s.Intentions)
	if err != nil {
		return err
	}
	disciplines, err := json.Marshal(s.Disciplines)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (id, intentions, disciplines, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET intentions = EXCLUDED.intentions, disciplines = EXCLUDED.disciplines, updated_at = NOW()`,
		intentions, disciplines,
	)
	return err
}

type MemorySettingsRepo struct {
	mu       sync.RWMutex
	settings *models.Settings
}

func NewMemorySettingsRepo() *MemorySettingsRepo {
	return &MemorySettingsRepo{}
}

func (r *MemorySettingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.settings == nil {
		return nil, fmt.Errorf("settings: %w", ErrNotFound)
	}
	return r.settings.Clone(), nil
}

func (r *MemorySettingsRepo) Save(ctx context.Context, s *models.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings = s.Clone()
	return nil
}
