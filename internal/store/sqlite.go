package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tessaro/memopipe/internal/models"
)

// schema is the category-partitioned memory table. The full record lives in
// the JSON document column; the extracted columns exist for partition reads
// and stats without decoding every document.
const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	contact_id TEXT NOT NULL,
	visibility TEXT NOT NULL,
	importance INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	document   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_partition ON memories(category, contact_id);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	encrypted bool
	logger    *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
// encryptedCapable declares whether the host treats the underlying volume as
// safe for confidential-and-above content.
func NewSQLiteStore(path string, encryptedCapable bool, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}
	// SQLite handles one writer at a time; more connections just contend.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: creating schema: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		logger.Warn("sqlite: enabling WAL failed", "error", err)
	}

	return &SQLiteStore{db: db, encrypted: encryptedCapable, logger: logger}, nil
}

// Write inserts or overwrites a memory by id (last write wins).
func (s *SQLiteStore) Write(ctx context.Context, memory models.Memory) error {
	doc, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("sqlite: encoding memory %s: %w", memory.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, category, contact_id, visibility, importance, created_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category   = excluded.category,
			contact_id = excluded.contact_id,
			visibility = excluded.visibility,
			importance = excluded.importance,
			created_at = excluded.created_at,
			document   = excluded.document`,
		memory.ID, string(memory.Category), memory.Provenance.ContactID,
		string(memory.Visibility), memory.Importance,
		memory.Timestamp.UTC().Format(time.RFC3339Nano), string(doc))
	if err != nil {
		return fmt.Errorf("sqlite: writing memory %s: %w", memory.ID, err)
	}
	return nil
}

// ReadPartition returns one (category, contact) partition, oldest first.
func (s *SQLiteStore) ReadPartition(ctx context.Context, category models.Category, contactID string, includeArchived bool) ([]models.Memory, error) {
	query := `SELECT document FROM memories WHERE category = ? AND contact_id = ?`
	args := []any{string(category), contactID}
	if !includeArchived {
		query += ` AND visibility != ?`
		args = append(args, string(models.VisibilityArchived))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading partition %s/%s: %w", category, contactID, err)
	}
	defer rows.Close()

	var out []models.Memory
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: scanning row: %w", err)
		}
		var mem models.Memory
		if err := json.Unmarshal([]byte(doc), &mem); err != nil {
			// A corrupt document must not hide the rest of the partition.
			s.logger.Warn("sqlite: skipping undecodable memory document", "error", err)
			continue
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// Get retrieves a single memory by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Memory, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM memories WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading memory %s: %w", id, err)
	}
	var mem models.Memory
	if err := json.Unmarshal([]byte(doc), &mem); err != nil {
		return nil, fmt.Errorf("sqlite: decoding memory %s: %w", id, err)
	}
	return &mem, nil
}

// SetVisibility updates both the indexed column and the stored document.
func (s *SQLiteStore) SetVisibility(ctx context.Context, id string, v models.Visibility) error {
	mem, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mem.Visibility = v
	return s.Write(ctx, *mem)
}

// Stats returns collection statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.PartitionStats, error) {
	stats := &models.PartitionStats{ByCategory: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT category, visibility, COUNT(*) FROM memories GROUP BY category, visibility`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category, visibility string
		var count int64
		if err := rows.Scan(&category, &visibility, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning stats row: %w", err)
		}
		stats.TotalMemories += count
		stats.ByCategory[category] += count
		if visibility == string(models.VisibilityArchived) {
			stats.Tombstoned += count
		}
	}
	return stats, rows.Err()
}

// EncryptedCapable reports the flag the store was created with.
func (s *SQLiteStore) EncryptedCapable() bool { return s.encrypted }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
