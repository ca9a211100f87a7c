// Package audit persists extraction runs to a local SQLite database so
// past runs can be listed and re-read through the API without keeping
// anything in memory.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexsuite/lexocr/internal/extract"
)

// ErrNotFound is returned when a run id has no record.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	path          TEXT NOT NULL,
	mime          TEXT NOT NULL,
	total_pages   INTEGER NOT NULL,
	used_ai       INTEGER NOT NULL DEFAULT 0,
	confidence    REAL NOT NULL DEFAULT 1.0,
	final_text    TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	completed_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	page        INTEGER NOT NULL,
	engine_used TEXT NOT NULL,
	confidence  REAL NOT NULL,
	duration_ms INTEGER NOT NULL,
	warning     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, page)
);

CREATE TABLE IF NOT EXISTS cleanup_steps (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq    INTEGER NOT NULL,
	step   TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS refine_changes (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	paragraph        INTEGER NOT NULL,
	severity         TEXT NOT NULL DEFAULT '',
	char_diff_ratio  REAL NOT NULL,
	word_delta       INTEGER NOT NULL,
	punct_delta      INTEGER NOT NULL,
	applied          INTEGER NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, paragraph)
);
`

// Store is a SQLite-backed audit log of extraction runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent runs.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	MIME        string    `json:"mime"`
	TotalPages  int       `json:"total_pages"`
	UsedAI      bool      `json:"used_ai"`
	Confidence  float64   `json:"confidence"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Run is a fully hydrated stored run.
type Run struct {
	RunSummary
	FinalText    string               `json:"final_text"`
	Pages        []extract.PageRecord `json:"pages"`
	CleanupSteps []string             `json:"cleanup_steps"`
	Changes      []StoredChange       `json:"changes"`
}

// StoredChange mirrors a refine change record as persisted.
type StoredChange struct {
	Paragraph       int     `json:"paragraph"`
	Severity        string  `json:"severity,omitempty"`
	CharDiffRatio   float64 `json:"char_diff_ratio"`
	WordDelta       int     `json:"word_delta"`
	PunctDelta      int     `json:"punct_delta"`
	Applied         bool    `json:"applied"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
}

// RecordRun persists one completed run in a single transaction.
func (s *Store) RecordRun(ctx context.Context, res *extract.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback()

	usedAI := false
	confidence := 1.0
	if res.Refinement != nil {
		usedAI = res.Refinement.UsedAI
		confidence = res.Refinement.Confidence
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, path, mime, total_pages, used_ai, confidence, final_text, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Path, res.MIME, res.TotalPages, usedAI, confidence, res.FinalText,
		res.StartedAt.UTC().Format(time.RFC3339Nano),
		res.CompletedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, p := range res.Pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pages (run_id, page, engine_used, confidence, duration_ms, warning)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			res.RunID, p.Page, p.EngineUsed, p.Confidence, p.DurationMs, p.Warning,
		); err != nil {
			return fmt.Errorf("insert page %d: %w", p.Page, err)
		}
	}

	for i, step := range res.Cleanup.Corrections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cleanup_steps (run_id, seq, step) VALUES (?, ?, ?)`,
			res.RunID, i, step,
		); err != nil {
			return fmt.Errorf("insert cleanup step: %w", err)
		}
	}

	if res.Refinement != nil {
		for _, c := range res.Refinement.Changes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO refine_changes (run_id, paragraph, severity, char_diff_ratio, word_delta, punct_delta, applied, rejection_reason)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				res.RunID, c.Paragraph, c.Severity, c.CharDiffRatio, c.WordDelta, c.PunctDelta, c.Applied, c.RejectionReason,
			); err != nil {
				return fmt.Errorf("insert refine change: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit tx: %w", err)
	}
	return nil
}

// GetRun loads one stored run with its pages and change records.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	run := &Run{}
	var started, completed string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, mime, total_pages, used_ai, confidence, final_text, started_at, completed_at
		 FROM runs WHERE id = ?`, runID,
	).Scan(&run.ID, &run.Path, &run.MIME, &run.TotalPages, &run.UsedAI,
		&run.Confidence, &run.FinalText, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	run.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)

	rows, err := s.db.QueryContext(ctx,
		`SELECT page, engine_used, confidence, duration_ms, warning
		 FROM pages WHERE run_id = ? ORDER BY page`, runID)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p extract.PageRecord
		if err := rows.Scan(&p.Page, &p.EngineUsed, &p.Confidence, &p.DurationMs, &p.Warning); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		run.Pages = append(run.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stepRows, err := s.db.QueryContext(ctx,
		`SELECT step FROM cleanup_steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load cleanup steps: %w", err)
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var step string
		if err := stepRows.Scan(&step); err != nil {
			return nil, err
		}
		run.CleanupSteps = append(run.CleanupSteps, step)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}

	changeRows, err := s.db.QueryContext(ctx,
		`SELECT paragraph, severity, char_diff_ratio, word_delta, punct_delta, applied, rejection_reason
		 FROM refine_changes WHERE run_id = ? ORDER BY paragraph`, runID)
	if err != nil {
		return nil, fmt.Errorf("load refine changes: %w", err)
	}
	defer changeRows.Close()
	for changeRows.Next() {
		var c StoredChange
		if err := changeRows.Scan(&c.Paragraph, &c.Severity, &c.CharDiffRatio,
			&c.WordDelta, &c.PunctDelta, &c.Applied, &c.RejectionReason); err != nil {
			return nil, err
		}
		run.Changes = append(run.Changes, c)
	}
	return run, changeRows.Err()
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, mime, total_pages, used_ai, confidence, started_at, completed_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started, completed string
		if err := rows.Scan(&rs.ID, &rs.Path, &rs.MIME, &rs.TotalPages,
			&rs.UsedAI, &rs.Confidence, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rs.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		out = append(out, rs)
	}
	return out, rows.Err()
}
