package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tessaro/memopipe/internal/models"
)

// PendingQueue is a JSONL log of memories whose writes exhausted their
// retries. Queued memories are replayed later; a memory that reaches the
// queue is never lost.
type PendingQueue struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewPendingQueue creates a pending-write queue backed by the file at path.
// The file is created lazily on first append.
func NewPendingQueue(path string, logger *slog.Logger) *PendingQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PendingQueue{path: path, logger: logger}
}

// Append adds a memory to the end of the queue.
func (q *PendingQueue) Append(memory models.Memory) error {
	raw, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("pending queue: encoding memory %s: %w", memory.ID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("pending queue: opening %s: %w", q.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("pending queue: appending memory %s: %w", memory.ID, err)
	}
	return f.Sync()
}

// Len returns the number of queued memories. Undecodable lines count too:
// they still occupy the queue until a replay reports them.
func (q *PendingQueue) Len() (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lines, err := q.readLines()
	if err != nil {
		return 0, err
	}
	return int64(len(lines)), nil
}

// Replay attempts to write every queued memory to the store. Memories that
// fail again stay queued; the file is rewritten with only the survivors.
// Returns the number of memories successfully replayed.
func (q *PendingQueue) Replay(ctx context.Context, st Store) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lines, err := q.readLines()
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, nil
	}

	replayed := 0
	var remaining []string
	for _, line := range lines {
		var mem models.Memory
		if err := json.Unmarshal([]byte(line), &mem); err != nil {
			q.logger.Warn("pending queue: dropping undecodable entry", "error", err)
			continue
		}
		if err := st.Write(ctx, mem); err != nil {
			q.logger.Warn("pending queue: replay write failed, keeping queued", "memory_id", mem.ID, "error", err)
			remaining = append(remaining, line)
			continue
		}
		replayed++
	}

	if err := q.rewrite(remaining); err != nil {
		return replayed, err
	}
	return replayed, nil
}

func (q *PendingQueue) readLines() ([]string, error) {
	f, err := os.Open(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending queue: opening %s: %w", q.path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pending queue: reading %s: %w", q.path, err)
	}
	return lines, nil
}

func (q *PendingQueue) rewrite(lines []string) error {
	if len(lines) == 0 {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("pending queue: removing drained queue: %w", err)
		}
		return nil
	}

	tmp := q.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("pending queue: creating %s: %w", tmp, err)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(f, line); err != nil {
			f.Close()
			return fmt.Errorf("pending queue: rewriting queue: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pending queue: closing %s: %w", tmp, err)
	}
	return os.Rename(tmp, q.path)
}
