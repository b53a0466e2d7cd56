package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"sangha-backend/internal/models"
)

// SpiritBankQueueName is the redis list holding deferred ledger appends.
const SpiritBankQueueName = "queue:spirit-bank"

// LedgerAppender is the directory capability that applies a ledger entry.
type LedgerAppender interface {
	AppendSpiritBankEntry(ctx context.Context, id string, entry models.SpiritBankLogEntry) (int64, error)
}

// SpiritBankQueue defers ledger appends to the worker pool.
type SpiritBankQueue struct {
	redis *redis.Client
}

func NewSpiritBankQueue(redisClient *redis.Client) *SpiritBankQueue {
	return &SpiritBankQueue{redis: redisClient}
}

func (q *SpiritBankQueue) WriteEntry(ctx context.Context, practitionerID string, entry models.SpiritBankLogEntry) error {
	payload, err := EncodeSpiritBankJob(practitionerID, entry)
	if err != nil {
		return err
	}
	if err := q.redis.LPush(ctx, SpiritBankQueueName, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue spirit bank entry: %w", err)
	}
	return nil
}

// EncodeSpiritBankJob wraps an entry in a job with a fresh id.
func EncodeSpiritBankJob(practitionerID string, entry models.SpiritBankLogEntry) (string, error) {
	job := models.SpiritBankJob{ID: uuid.New(), PractitionerID: practitionerID, Entry: entry}
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to encode spirit bank job: %w", err)
	}
	return string(payload), nil
}

// DirectLedgerWriter applies entries immediately. Used when no redis is configured.
type DirectLedgerWriter struct {
	store LedgerAppender
}

func NewDirectLedgerWriter(store LedgerAppender) *DirectLedgerWriter {
	return &DirectLedgerWriter{store: store}
}

func (w *DirectLedgerWriter) WriteEntry(ctx context.Context, practitionerID string, entry models.SpiritBankLogEntry) error {
	balance, err := w.store.AppendSpiritBankEntry(ctx, practitionerID, entry)
	if err != nil {
		return fmt.Errorf("failed to append spirit bank entry: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"practitioner_id": practitionerID,
		"type":            entry.Type,
		"points":          entry.Points,
		"balance":         balance,
	}).Debug("spirit bank entry applied")
	return nil
}
