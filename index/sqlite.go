package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/justapithecus/petframes/types"
)

// SQLite is an Index backed by a SQLite database file.
//
// The pool is limited to one connection so every statement, and in
// particular every mutation, is serialized.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the index database at path and applies
// migrations. Use ":memory:" for a throwaway index.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, wrap("open", fmt.Errorf("create index directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("open", fmt.Errorf("open sqlite db: %w", err))
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, wrap("open", fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	s := &SQLite{db: db, path: path}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, wrap("migrate", err)
	}
	return s, nil
}

// Path returns the database location.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert implements Index.
func (s *SQLite) Insert(ctx context.Context, rec types.FrameRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO frames (
            character_type, phase, clip, frame_index, path, byte_size, total_frames, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CharacterType,
		rec.Phase,
		rec.Clip,
		rec.FrameIndex,
		rec.Path,
		rec.ByteSize,
		rec.TotalFramesInClip,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return wrap("insert", err)
}

// DeleteAll implements Index.
func (s *SQLite) DeleteAll(ctx context.Context, characterType, phase, clip string) error {
	_, err := s.db.ExecContext(
		ctx,
		"DELETE FROM frames WHERE character_type = ? AND phase = ? AND clip = ?",
		characterType, phase, clip,
	)
	return wrap("delete", err)
}

// DeleteEverything implements Index.
func (s *SQLite) DeleteEverything(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM frames")
	return wrap("delete_everything", err)
}

// Query implements Index.
func (s *SQLite) Query(ctx context.Context, characterType, phase, clip string) ([]types.FrameRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT character_type, phase, clip, frame_index, path, byte_size, total_frames
        FROM frames
        WHERE character_type = ? AND phase = ? AND clip = ?
        ORDER BY frame_index ASC`,
		characterType, phase, clip,
	)
	if err != nil {
		return nil, wrap("query", err)
	}
	defer func() { _ = rows.Close() }()

	var records []types.FrameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrap("query", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("query", err)
	}
	return records, nil
}

// QuerySingle implements Index.
func (s *SQLite) QuerySingle(ctx context.Context, characterType, phase, clip string, frameIndex int) (*types.FrameRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT character_type, phase, clip, frame_index, path, byte_size, total_frames
        FROM frames
        WHERE character_type = ? AND phase = ? AND clip = ? AND frame_index = ?`,
		characterType, phase, clip, frameIndex,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("query_single", err)
	}
	return &rec, nil
}

// Count implements Index.
func (s *SQLite) Count(ctx context.Context, characterType, phase, clip string) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM frames WHERE character_type = ? AND phase = ? AND clip = ?",
		characterType, phase, clip,
	).Scan(&count)
	if err != nil {
		return 0, wrap("count", err)
	}
	return count, nil
}

// Summary implements Index.
func (s *SQLite) Summary(ctx context.Context) ([]ClipSummary, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT character_type, phase, clip, COUNT(1), COALESCE(SUM(byte_size), 0)
        FROM frames
        GROUP BY character_type, phase, clip
        ORDER BY character_type, phase, clip`,
	)
	if err != nil {
		return nil, wrap("summary", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ClipSummary
	for rows.Next() {
		var cs ClipSummary
		if err := rows.Scan(&cs.CharacterType, &cs.Phase, &cs.Clip, &cs.Frames, &cs.Bytes); err != nil {
			return nil, wrap("summary", err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("summary", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (types.FrameRecord, error) {
	var rec types.FrameRecord
	err := row.Scan(
		&rec.CharacterType,
		&rec.Phase,
		&rec.Clip,
		&rec.FrameIndex,
		&rec.Path,
		&rec.ByteSize,
		&rec.TotalFramesInClip,
	)
	return rec, err
}

// Verify SQLite implements Index.
var _ Index = (*SQLite)(nil)
