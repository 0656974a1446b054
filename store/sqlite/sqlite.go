/*
Package sqlite provides a SQLite-backed implementation of the
scd.Store interface.

PURPOSE:
  Durable storage for forecast version history. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLE:
  forecast_versions: every past and current version of every key.

INDEXES:
  idx_versions_key_valid_from:   UNIQUE(business_key, valid_from) -
                                 two versions can never open at the
                                 same instant for the same key.
  idx_versions_single_current:   UNIQUE(business_key) WHERE is_current -
                                 the database itself refuses a second
                                 current row per key.
  idx_versions_key_current:      (business_key, is_current) - makes
                                 GetCurrent an index lookup.

CONCURRENCY:
  ExpireAndInsert runs as one transaction whose expire step is a
  conditional UPDATE (WHERE surrogate_id = ? AND is_current = 1). A
  zero affected-row count means another writer already transitioned
  the row; the transaction rolls back and ErrConcurrentModification is
  returned. This is optimistic concurrency: readers never lock, and
  staleness is detected at commit time, not assumed away.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery
  The connection pool is capped at one connection; SQLite serializes
  writers anyway, and a single pooled connection keeps ":memory:"
  databases coherent in tests.

USAGE:
  store, err := sqlite.New("./data/forecast.db", forecast.NewCodec())
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - scd/store.go: Interface definition and atomicity contract
  - scd/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/forecast-engine/scd"
)

// Store implements scd.Store using SQLite.
type Store struct {
	db    *sql.DB
	codec scd.PayloadCodec
	mu    sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, codec scd.PayloadCodec) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, codec: codec}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Version history: one row per version, closed rows immutable
	CREATE TABLE IF NOT EXISTS forecast_versions (
		surrogate_id TEXT PRIMARY KEY,
		business_key TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT,
		is_current INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Guards two versions opening at the identical instant
	CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_key_valid_from
		ON forecast_versions(business_key, valid_from);

	-- CRITICAL: the single-current invariant, enforced by the database
	CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_single_current
		ON forecast_versions(business_key)
		WHERE is_current = 1;

	-- Hot path: GetCurrent lookup
	CREATE INDEX IF NOT EXISTS idx_versions_key_current
		ON forecast_versions(business_key, is_current);
	`

	_, err := s.db.Exec(schema)
	return err
}

const versionColumns = `surrogate_id, business_key, payload_json, valid_from, valid_to, is_current`

// =============================================================================
// READS
// =============================================================================

// GetCurrent returns the current version for the key, or (nil, nil) if
// the key has never been seen.
func (s *Store) GetCurrent(ctx context.Context, key scd.BusinessKey) (*scd.VersionedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+versionColumns+`
		FROM forecast_versions
		WHERE business_key = ? AND is_current = 1
	`, string(key))

	rec, err := s.scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get current", err)
	}
	return &rec, nil
}

// History returns all versions for the key ordered by ValidFrom.
func (s *Store) History(ctx context.Context, key scd.BusinessKey) ([]scd.VersionedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryVersions(ctx, `
		SELECT `+versionColumns+`
		FROM forecast_versions
		WHERE business_key = ?
		ORDER BY valid_from ASC
	`, string(key))
}

// Current returns the current version of every known key.
func (s *Store) Current(ctx context.Context) ([]scd.VersionedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryVersions(ctx, `
		SELECT `+versionColumns+`
		FROM forecast_versions
		WHERE is_current = 1
		ORDER BY business_key ASC
	`)
}

// =============================================================================
// MUTATIONS - The only two write paths, both atomic
// =============================================================================

// InsertInitial opens the first version for a previously-unseen key.
func (s *Store) InsertInitial(ctx context.Context, key scd.BusinessKey, payload scd.Payload, at time.Time) (scd.VersionedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, payloadJSON, err := s.newVersion(key, payload, at)
	if err != nil {
		return scd.VersionedRecord{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forecast_versions
		(surrogate_id, business_key, payload_json, valid_from, valid_to, is_current, created_at)
		VALUES (?, ?, ?, ?, NULL, 1, ?)
	`,
		string(rec.SurrogateID),
		string(key),
		payloadJSON,
		formatTime(at),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// A concurrent first-insert won the race; the caller
			// re-reads and takes the expire-and-insert path.
			return scd.VersionedRecord{}, scd.ErrDuplicateKey
		}
		return scd.VersionedRecord{}, unavailable("insert initial", err)
	}

	return rec, nil
}

// ExpireAndInsert atomically closes the named version and opens a new
// current one. The expire step re-checks currency in the same
// statement that writes, so a lost update is impossible.
func (s *Store) ExpireAndInsert(ctx context.Context, key scd.BusinessKey, expiring scd.SurrogateID, payload scd.Payload, at time.Time) (scd.VersionedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, payloadJSON, err := s.newVersion(key, payload, at)
	if err != nil {
		return scd.VersionedRecord{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scd.VersionedRecord{}, unavailable("begin expire-and-insert", err)
	}
	defer tx.Rollback()

	// Conditional expire: only succeeds if the row is still current
	// and the new version opens strictly later than it did.
	res, err := tx.ExecContext(ctx, `
		UPDATE forecast_versions
		SET valid_to = ?, is_current = 0
		WHERE surrogate_id = ? AND is_current = 1 AND valid_from < ?
	`, formatTime(at), string(expiring), formatTime(at))
	if err != nil {
		return scd.VersionedRecord{}, unavailable("expire version", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return scd.VersionedRecord{}, unavailable("expire version", err)
	}
	if affected == 0 {
		// Another writer already transitioned this row.
		return scd.VersionedRecord{}, scd.ErrConcurrentModification
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO forecast_versions
		(surrogate_id, business_key, payload_json, valid_from, valid_to, is_current, created_at)
		VALUES (?, ?, ?, ?, NULL, 1, ?)
	`,
		string(rec.SurrogateID),
		string(key),
		payloadJSON,
		formatTime(at),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Same-instant competitor on (business_key, valid_from):
			// treat like any other lost race and let the engine
			// re-read.
			return scd.VersionedRecord{}, scd.ErrConcurrentModification
		}
		return scd.VersionedRecord{}, unavailable("insert version", err)
	}

	if err := tx.Commit(); err != nil {
		return scd.VersionedRecord{}, unavailable("commit expire-and-insert", err)
	}

	return rec, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) newVersion(key scd.BusinessKey, payload scd.Payload, at time.Time) (scd.VersionedRecord, string, error) {
	data, err := s.codec.MarshalPayload(payload)
	if err != nil {
		return scd.VersionedRecord{}, "", fmt.Errorf("marshal payload: %w", err)
	}
	rec := scd.VersionedRecord{
		SurrogateID: scd.SurrogateID(uuid.NewString()),
		BusinessKey: key,
		Payload:     payload,
		ValidFrom:   at.UTC(),
		IsCurrent:   true,
	}
	return rec, string(data), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(row rowScanner) (scd.VersionedRecord, error) {
	var (
		surrogateID string
		businessKey string
		payloadJSON string
		validFrom   string
		validTo     sql.NullString
		isCurrent   bool
	)

	if err := row.Scan(&surrogateID, &businessKey, &payloadJSON, &validFrom, &validTo, &isCurrent); err != nil {
		return scd.VersionedRecord{}, err
	}

	payload, err := s.codec.UnmarshalPayload([]byte(payloadJSON))
	if err != nil {
		return scd.VersionedRecord{}, err
	}

	from, err := time.Parse(time.RFC3339Nano, validFrom)
	if err != nil {
		return scd.VersionedRecord{}, fmt.Errorf("parse valid_from: %w", err)
	}

	rec := scd.VersionedRecord{
		SurrogateID: scd.SurrogateID(surrogateID),
		BusinessKey: scd.BusinessKey(businessKey),
		Payload:     payload,
		ValidFrom:   from,
		IsCurrent:   isCurrent,
	}

	if validTo.Valid {
		to, err := time.Parse(time.RFC3339Nano, validTo.String)
		if err != nil {
			return scd.VersionedRecord{}, fmt.Errorf("parse valid_to: %w", err)
		}
		rec.ValidTo = &to
	}

	return rec, nil
}

func (s *Store) queryVersions(ctx context.Context, query string, args ...any) ([]scd.VersionedRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query versions", err)
	}
	defer rows.Close()

	var result []scd.VersionedRecord
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query versions", err)
	}
	return result, nil
}

// timeLayout is fixed-width (no trimmed fractional zeros) so stored
// timestamps compare correctly as strings in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, scd.ErrStoreUnavailable, err)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
