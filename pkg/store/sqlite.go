package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridetrace/pkg/db"
	"ridetrace/pkg/model"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	RecordingStore
	MirrorStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Recordings ---

func (s *SQLiteStore) SaveRecording(ctx context.Context, info *model.RecordingInfo) error {
	query := `INSERT OR REPLACE INTO recordings (
		name, ride_type, started_at, samples, duration_sec, max_altitude, venue_cell, size_bytes, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		info.Name, string(info.RideType), info.StartedAt, info.Samples,
		info.Duration, info.MaxAltitude, info.VenueCell, info.SizeBytes, time.Now(),
	)
	return err
}

func (s *SQLiteStore) GetRecording(ctx context.Context, name string) (*model.RecordingInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, ride_type, started_at, samples, duration_sec, max_altitude, venue_cell, size_bytes
		 FROM recordings WHERE name = ?`, name)

	var info model.RecordingInfo
	var startedAt sql.NullTime

	err := row.Scan(
		&info.Name, &info.RideType, &startedAt, &info.Samples,
		&info.Duration, &info.MaxAltitude, &info.VenueCell, &info.SizeBytes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}

	if startedAt.Valid {
		info.StartedAt = startedAt.Time
	}
	return &info, nil
}

// sortColumns whitelists the ListRecordings sort keys. Anything else
// falls back to the date column.
var sortColumns = map[string]string{
	"date": "started_at",
	"name": "name",
	"size": "size_bytes",
}

func (s *SQLiteStore) ListRecordings(ctx context.Context, sortKey, order string) ([]*model.RecordingInfo, error) {
	col, ok := sortColumns[strings.ToLower(sortKey)]
	if !ok {
		col = "started_at"
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}

	query := fmt.Sprintf(`SELECT name, ride_type, started_at, samples, duration_sec, max_altitude, venue_cell, size_bytes
		FROM recordings ORDER BY %s %s, name %s`, col, dir, dir)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.RecordingInfo
	for rows.Next() {
		var info model.RecordingInfo
		var startedAt sql.NullTime
		err := rows.Scan(
			&info.Name, &info.RideType, &startedAt, &info.Samples,
			&info.Duration, &info.MaxAltitude, &info.VenueCell, &info.SizeBytes,
		)
		if err != nil {
			return nil, err
		}
		if startedAt.Valid {
			info.StartedAt = startedAt.Time
		}
		results = append(results, &info)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) DeleteRecording(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM recordings WHERE name = ?", name)
	return err
}

// --- Mirrors ---

func (s *SQLiteStore) SaveMirror(ctx context.Context, info *model.MirrorInfo) error {
	mirroredAt := info.MirroredAt
	if mirroredAt.IsZero() {
		mirroredAt = time.Now()
	}

	query := `INSERT OR REPLACE INTO mirrors (name, digest, size_bytes, mirrored_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, info.Name, info.Digest, info.SizeBytes, mirroredAt)
	return err
}

func (s *SQLiteStore) GetMirror(ctx context.Context, name string) (*model.MirrorInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, digest, size_bytes, mirrored_at FROM mirrors WHERE name = ?`, name)

	var info model.MirrorInfo
	var mirroredAt sql.NullTime

	err := row.Scan(&info.Name, &info.Digest, &info.SizeBytes, &mirroredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if mirroredAt.Valid {
		info.MirroredAt = mirroredAt.Time
	}
	return &info, nil
}

func (s *SQLiteStore) ListMirrors(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, digest FROM mirrors")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mirrored := make(map[string]string)
	for rows.Next() {
		var name, digest string
		if err := rows.Scan(&name, &digest); err != nil {
			return nil, err
		}
		mirrored[name] = digest
	}
	return mirrored, rows.Err()
}

func (s *SQLiteStore) DeleteMirror(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM mirrors WHERE name = ?", name)
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
