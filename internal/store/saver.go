package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tessaro/memopipe/internal/models"
)

// Saver wraps a Store with validation, the encrypted-channel guard and the
// retry / pending-queue policy. Callers only ever see two outcomes: the
// memory was recorded (possibly queued), or it was rejected with a
// validation error.
type Saver struct {
	store      Store
	queue      *PendingQueue
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewSaver creates a saver. maxRetries counts attempts after the first;
// backoff doubles between attempts.
func NewSaver(st Store, queue *PendingQueue, maxRetries int, backoff time.Duration, logger *slog.Logger) *Saver {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Saver{
		store:      st,
		queue:      queue,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Save validates and persists a memory. Invariant violations are fatal for
// the single memory and surface as *models.ValidationError. Transient write
// failures are retried with backoff; on exhaustion the memory goes to the
// pending-write queue and the result reports Queued=true.
func (s *Saver) Save(ctx context.Context, memory models.Memory) (models.SaveResult, error) {
	if err := memory.Validate(); err != nil {
		return models.SaveResult{}, err
	}
	if memory.Category.RequiresEncryption() && !s.store.EncryptedCapable() {
		return models.SaveResult{}, &models.ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("%s content requires an encrypted-capable store channel", memory.Category),
		}
	}

	var lastErr error
	delay := s.backoff
	for attempt := 0; ; attempt++ {
		lastErr = s.store.Write(ctx, memory)
		if lastErr == nil {
			return models.SaveResult{MemoryID: memory.ID, Stored: true}, nil
		}
		s.logger.Warn("saver: write failed", "memory_id", memory.ID, "attempt", attempt+1, "error", lastErr)
		if attempt >= s.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(delay):
			delay *= 2
			continue
		}
		break
	}

	if s.queue == nil {
		return models.SaveResult{}, fmt.Errorf("saver: write failed with no pending queue configured: %w", lastErr)
	}
	if err := s.queue.Append(memory); err != nil {
		return models.SaveResult{}, fmt.Errorf("saver: write failed and queueing failed: %w (write error: %v)", err, lastErr)
	}
	s.logger.Warn("saver: retries exhausted, memory queued for replay", "memory_id", memory.ID, "error", lastErr)
	return models.SaveResult{MemoryID: memory.ID, Queued: true}, nil
}
