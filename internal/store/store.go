package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no blob or backup exists for a key or ID.
var ErrNotFound = errors.New("store: not found")

// Blob is one versioned state document stored under a fixed key.
type Blob struct {
	Key       string
	Version   int
	Shape     string // "legacy" or "normalized"
	Payload   []byte
	UpdatedAt time.Time
}

// Backup is a raw payload preserved before it could be overwritten.
type Backup struct {
	ID        int64
	Key       string
	Reason    string
	Payload   []byte
	CreatedAt time.Time
}

// Store provides access to the pillars database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps a reader (export) from blocking the debounced writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	// Another pillars process (watch) may hold the file briefly.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		key         TEXT PRIMARY KEY,
		version     INTEGER NOT NULL DEFAULT 1,
		payload     BLOB NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backups (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		key         TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		payload     BLOB NOT NULL,
		created_at  DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Databases created before the shape discriminator existed hold legacy blobs.
	s.addColumnIfMissing("blobs", "shape", "TEXT NOT NULL DEFAULT 'legacy'")

	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
func (s *Store) addColumnIfMissing(table, column, colDef string) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return
		}
		if name == column {
			return
		}
	}

	s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + colDef)
}

// Load returns the payload stored under key. It satisfies the persistence
// backend contract.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.GetBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	return b.Payload, nil
}

// Save overwrites the blob stored under key.
func (s *Store) Save(ctx context.Context, key string, version int, shape string, payload []byte) error {
	return s.PutBlob(ctx, Blob{Key: key, Version: version, Shape: shape, Payload: payload})
}

// GetBlob returns the blob stored under key, or ErrNotFound.
func (s *Store) GetBlob(ctx context.Context, key string) (*Blob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, version, shape, payload, updated_at FROM blobs WHERE key = ?`, key,
	)
	var b Blob
	err := row.Scan(&b.Key, &b.Version, &b.Shape, &b.Payload, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return &b, nil
}

// PutBlob inserts or replaces the blob for b.Key. The write is a single
// overwrite, never incremental.
func (s *Store) PutBlob(ctx context.Context, b Blob) error {
	now := time.Now().UTC()
	if b.Shape == "" {
		b.Shape = "legacy"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (key, version, shape, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   version = excluded.version,
		   shape = excluded.shape,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		b.Key, b.Version, b.Shape, b.Payload, now,
	)
	if err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

// Backup preserves a raw payload and returns the backup ID.
func (s *Store) Backup(ctx context.Context, key, reason string, payload []byte) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO backups (key, reason, payload, created_at) VALUES (?, ?, ?, ?)`,
		key, reason, payload, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert backup: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ListBackups returns the backups for key, newest first. Payloads are
// not loaded; use GetBackup for that.
func (s *Store) ListBackups(ctx context.Context, key string) ([]Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, reason, created_at FROM backups WHERE key = ? ORDER BY id DESC`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []Backup
	for rows.Next() {
		var b Backup
		if err := rows.Scan(&b.ID, &b.Key, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

// GetBackup returns a single backup including its payload.
func (s *Store) GetBackup(ctx context.Context, id int64) (*Backup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, key, reason, payload, created_at FROM backups WHERE id = ?`, id,
	)
	var b Backup
	err := row.Scan(&b.ID, &b.Key, &b.Reason, &b.Payload, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return &b, nil
}
