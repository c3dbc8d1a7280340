// Package store persists memories into category-partitioned storage with
// idempotent overwrite-by-id semantics, and wraps writes in the retry /
// pending-queue machinery that guarantees a memory is never silently dropped.
package store

import (
	"context"
	"errors"

	"github.com/tessaro/memopipe/internal/models"
)

// ErrNotFound is returned by Get when the requested memory does not exist.
var ErrNotFound = errors.New("memory not found")

// Store defines category-partitioned memory persistence. A partition is one
// (category, contact) pair. Write must be idempotent under retry with the
// same memory id: overwrite-by-id, never duplicate-append.
type Store interface {
	// Write inserts or overwrites a memory in its partition.
	Write(ctx context.Context, memory models.Memory) error

	// ReadPartition returns the memories in one (category, contact)
	// partition. Tombstoned (archived) memories are skipped unless
	// includeArchived is set.
	ReadPartition(ctx context.Context, category models.Category, contactID string, includeArchived bool) ([]models.Memory, error)

	// Get retrieves a single memory by id regardless of partition.
	Get(ctx context.Context, id string) (*models.Memory, error)

	// SetVisibility updates a memory's visibility flag. Archiving a memory
	// this way is the only supported form of deletion.
	SetVisibility(ctx context.Context, id string, v models.Visibility) error

	// Stats returns collection statistics.
	Stats(ctx context.Context) (*models.PartitionStats, error)

	// EncryptedCapable reports whether the underlying channel is marked as
	// encrypted-capable. Confidential-and-above memories may only be
	// written when this is true; actual ciphering is the security layer's
	// job, not the store's.
	EncryptedCapable() bool

	// Close cleans up resources.
	Close() error
}
