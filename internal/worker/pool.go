package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"sangha-backend/internal/metrics"
	"sangha-backend/internal/models"
	"sangha-backend/internal/repository"
	"sangha-backend/internal/services"
)

const (
	popTimeout = 5 * time.Second
	lockTTL    = 10 * time.Minute
	maxRetries = 3
)

// Pool drains the spirit bank queue into the practitioner directory.
type Pool struct {
	redis       *redis.Client
	ledger      services.LedgerAppender
	workerCount int
	backoff     func(attempt int) time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(redisClient *redis.Client, ledger services.LedgerAppender, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		redis:       redisClient,
		ledger:      ledger,
		workerCount: workerCount,
		backoff:     exponentialBackoff,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	logrus.WithField("workers", p.workerCount).Info("spirit bank workers started")
}

// Stop cancels pending pops and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := logrus.WithField("worker", id)

	for {
		if p.ctx.Err() != nil {
			log.Debug("worker shutting down")
			return
		}

		result, err := p.redis.BLPop(p.ctx, popTimeout, services.SpiritBankQueueName).Result()
		if err != nil {
			continue // Timeout, cancellation or transient error
		}
		if len(result) < 2 {
			continue
		}

		p.process(p.ctx, result[1])
	}
}

// process applies one popped payload. A job id is applied at most once while
// its lock lives; the lock outlives a successful job so a redelivered copy is skipped.
func (p *Pool) process(ctx context.Context, payload string) {
	job, err := decodeJob(payload)
	if err != nil {
		logrus.WithError(err).Warn("dropping spirit bank job")
		return
	}
	log := logrus.WithFields(logrus.Fields{
		"job_id":          job.ID,
		"practitioner_id": job.PractitionerID,
	})

	lockKey := fmt.Sprintf("spirit_bank_lock:%s", job.ID)
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		log.WithError(err).Error("failed to lock spirit bank job, re-queueing")
		p.requeue(payload, "", p.backoff(1))
		return
	}
	if !locked {
		log.Debug("spirit bank job already applied, skipping")
		return
	}

	applyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	balance, err := p.apply(applyCtx, job)
	cancel()

	metrics.RecordSpiritBankJob(err == nil)
	if err != nil {
		p.handleFailure(job, lockKey, err)
		return
	}

	log.WithFields(logrus.Fields{
		"type":    job.Entry.Type,
		"balance": balance,
	}).Info("spirit bank entry applied")
}

func (p *Pool) apply(ctx context.Context, job models.SpiritBankJob) (int64, error) {
	return p.ledger.AppendSpiritBankEntry(ctx, job.PractitionerID, job.Entry)
}

func (p *Pool) handleFailure(job models.SpiritBankJob, lockKey string, err error) {
	log := logrus.WithError(err).WithFields(logrus.Fields{
		"job_id":          job.ID,
		"practitioner_id": job.PractitionerID,
	})

	if !retryable(err) || job.Attempts+1 >= maxRetries {
		log.Error("spirit bank job failed permanently")
		return
	}

	job.Attempts++
	payload, marshalErr := json.Marshal(job)
	if marshalErr != nil {
		log.WithField("marshal_error", marshalErr).Error("failed to re-queue spirit bank job")
		return
	}

	log.WithField("attempt", job.Attempts).Warn("spirit bank job failed, retrying")
	p.requeue(string(payload), lockKey, p.backoff(job.Attempts))
}

// requeue pushes payload back after delay, releasing lockKey first when set.
func (p *Pool) requeue(payload, lockKey string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if lockKey != "" {
			p.redis.Del(ctx, lockKey)
		}
		if err := p.redis.LPush(ctx, services.SpiritBankQueueName, payload).Err(); err != nil {
			logrus.WithError(err).Error("failed to re-queue spirit bank job, entry lost")
		}
	})
}

func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func decodeJob(payload string) (models.SpiritBankJob, error) {
	var job models.SpiritBankJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return job, fmt.Errorf("failed to parse job: %w", err)
	}
	if job.ID == uuid.Nil || job.PractitionerID == "" {
		return job, fmt.Errorf("job is missing id or practitioner")
	}
	return job, nil
}

// retryable is false for jobs that can never succeed.
func retryable(err error) bool {
	return !errors.Is(err, repository.ErrNotFound)
}
