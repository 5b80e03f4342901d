// Package store persists extraction attempts in SQLite so runs can be
// inspected and successful documents reused.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/thywilljoshua/docladder/internal/adaptive"
	"github.com/thywilljoshua/docladder/internal/confidence"
	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/pipeline"
)

var ErrNotFound = errors.New("store: not found")

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_hash TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	success     INTEGER NOT NULL,
	score       REAL,
	level       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	pages       TEXT NOT NULL DEFAULT '[]',
	document    BLOB,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_source_strategy ON attempts (source_hash, strategy, id);
CREATE INDEX IF NOT EXISTS attempts_run ON attempts (run_id);
`

// AttemptRecord is one stored attempt. Document holds the extracted
// document as JSON and is empty for failed attempts.
type AttemptRecord struct {
	ID         int64
	RunID      string
	Source     string
	SourceHash string
	Strategy   string
	Success    bool
	Score      *float64
	Level      string
	Duration   time.Duration
	Error      string
	Pages      []int
	Document   []byte
	CreatedAt  time.Time
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	hashes map[string]string
}

var (
	_ adaptive.Recorder = (*Store)(nil)
	_ adaptive.Cache    = (*Store)(nil)
)

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("store.open", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory:
	// databases alive between calls.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}
	return &Store{db: db, logger: logger, hashes: map[string]string{}}, nil
}

func (s *Store) Close() error {
	s.logger.Debug("store.close")
	return s.db.Close()
}

// RecordAttempt stores a, keyed by the content hash of source.
func (s *Store) RecordAttempt(ctx context.Context, runID, source string, a adaptive.Attempt) error {
	rec := AttemptRecord{
		RunID:      runID,
		Source:     source,
		SourceHash: s.hash(source),
		Strategy:   a.Strategy.String(),
		Success:    a.Success,
		Duration:   a.Duration,
		Pages:      a.Pages,
	}
	if a.Confidence != nil {
		v := confidence.Round(a.Confidence.Overall, 3)
		rec.Score = &v
		rec.Level = string(a.Confidence.Level())
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
	}
	if a.Document != nil {
		b, err := json.Marshal(a.Document)
		if err != nil {
			return fmt.Errorf("store: encode document: %w", err)
		}
		rec.Document = b
	}
	_, err := s.Record(ctx, rec)
	return err
}

// Record inserts rec and returns its id. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, rec AttemptRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	pages := rec.Pages
	if pages == nil {
		pages = []int{}
	}
	pj, err := json.Marshal(pages)
	if err != nil {
		return 0, fmt.Errorf("store: encode pages: %w", err)
	}
	var score sql.NullFloat64
	if rec.Score != nil {
		score = sql.NullFloat64{Float64: *rec.Score, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, source, source_hash, strategy, success, score, level, duration_ms, error, pages, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Source, rec.SourceHash, rec.Strategy, rec.Success, score, rec.Level,
		rec.Duration.Milliseconds(), rec.Error, string(pj), rec.Document,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert attempt: %w", err)
	}
	s.logger.Debug("store.attempt.recorded", "id", id, "run_id", rec.RunID, "strategy", rec.Strategy, "success", rec.Success)
	return id, nil
}

// List returns the most recent attempts first, without their documents.
// A limit of 0 or less returns every attempt.
func (s *Store) List(ctx context.Context, limit int) ([]AttemptRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, source, source_hash, strategy, success, score, level, duration_ms, error, pages, created_at
		FROM attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var (
			rec     AttemptRecord
			score   sql.NullFloat64
			ms      int64
			pages   string
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Source, &rec.SourceHash, &rec.Strategy, &rec.Success,
			&score, &rec.Level, &ms, &rec.Error, &pages, &created); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		if score.Valid {
			v := score.Float64
			rec.Score = &v
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		if err := json.Unmarshal([]byte(pages), &rec.Pages); err != nil {
			return nil, fmt.Errorf("store: decode pages of attempt %d: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("store: decode time of attempt %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CachedDocument returns the latest whole-document extraction of source's
// current content by tag. The content is hashed on every call so an edited
// file never matches its old documents.
func (s *Store) CachedDocument(ctx context.Context, source string, tag pipeline.Tag) (*document.Document, error) {
	h, err := HashFile(source)
	if err != nil {
		return nil, fmt.Errorf("store: hash %s: %w", source, err)
	}
	return s.LatestDocument(ctx, h, tag.String())
}

// LatestDocument returns the most recent successful document extracted
// from content with sourceHash by strategy, or ErrNotFound. Page-scoped
// attempts hold partial documents and are never returned.
func (s *Store) LatestDocument(ctx context.Context, sourceHash, strategy string) (*document.Document, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM attempts
		WHERE source_hash = ? AND strategy = ? AND success = 1 AND document IS NOT NULL AND pages = '[]'
		ORDER BY id DESC LIMIT 1`, sourceHash, strategy).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest document: %w", err)
	}
	var doc document.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return &doc, nil
}

// hash memoizes HashFile per source. Unreadable sources hash their path so
// attempts on missing files are still recorded.
func (s *Store) hash(source string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hashes[source]; ok {
		return h
	}
	h, err := HashFile(source)
	if err != nil {
		s.logger.Warn("store.hash.failed", "source", source, "error", err)
		sum := sha256.Sum256([]byte(source))
		h = hex.EncodeToString(sum[:])
	}
	s.hashes[source] = h
	return h
}

// HashFile returns the hex SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
