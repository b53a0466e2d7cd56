package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sangha-backend/internal/models"
	"sangha-backend/internal/repository"
)

func TestEncodeSpiritBankJob(t *testing.T) {
	entry := models.SpiritBankLogEntry{Created: t0, Type: models.SpiritBankAddVirtualToCircle, Points: -30}

	payload, err := EncodeSpiritBankJob("creator", entry)
	require.NoError(t, err)

	var job models.SpiritBankJob
	require.NoError(t, json.Unmarshal([]byte(payload), &job))
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, "creator", job.PractitionerID)
	assert.Equal(t, entry.Type, job.Entry.Type)
	assert.Equal(t, int64(-30), job.Entry.Points)
	assert.True(t, entry.Created.Equal(job.Entry.Created))
}

func TestEncodeSpiritBankJob_UniqueIDs(t *testing.T) {
	first, err := EncodeSpiritBankJob("p", models.SpiritBankLogEntry{})
	require.NoError(t, err)
	second, err := EncodeSpiritBankJob("p", models.SpiritBankLogEntry{})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDirectLedgerWriter(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryPractitionerRepo()
	require.NoError(t, repo.Insert(ctx, models.NewPractitioner("p1", t0)))
	writer := NewDirectLedgerWriter(repo)

	err := writer.WriteEntry(ctx, "p1", models.SpiritBankLogEntry{Created: t0, Type: models.SpiritBankAddVirtualToCircle, Points: -20})
	require.NoError(t, err)

	p, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p.SpiritBankLog, 2)
	assert.Equal(t, int64(-20), p.SpiritBankLog[1].Points)

	err = writer.WriteEntry(ctx, "ghost", models.SpiritBankLogEntry{Points: 1})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
