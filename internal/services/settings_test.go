package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sangha-backend/internal/models"
	"sangha-backend/internal/repository"
)

func TestSettings_GetSeedsDefaults(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemorySettingsRepo()
	svc := NewSettingsService(store)

	settings, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, settings.Intentions, 10)
	assert.True(t, settings.HasIntention("LOVE"))
	require.Len(t, settings.Disciplines, 2)
	assert.Equal(t, "Meditation", settings.Disciplines[0].Title)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, stored.Intentions, 10)
}

func TestSettings_AddIntention(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(repository.NewMemorySettingsRepo())

	settings, err := svc.AddIntention(ctx, models.Intention{Title: " GRATITUDE ", Description: "Thankfulness"})
	require.NoError(t, err)
	assert.Len(t, settings.Intentions, 11)
	assert.True(t, settings.HasIntention("GRATITUDE"))

	again, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.True(t, again.HasIntention("GRATITUDE"))
}

func TestSettings_AddIntentionRejectsDuplicatesAndBlankTitles(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(repository.NewMemorySettingsRepo())

	_, err := svc.AddIntention(ctx, models.Intention{Title: "love"})
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = svc.AddIntention(ctx, models.Intention{Title: "  "})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields, "title")
}
