// Package sqlite persists run history and findings in a local SQLite
// database.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bkyoung/secscan/internal/usecase/workflow"
)

// Store implements the workflow.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// RunRecord is one persisted run, returned by the history queries.
type RunRecord struct {
	RunID            string
	Provider         string
	Root             string
	StartedAt        time.Time
	FinishedAt       time.Time
	FilesScanned     int
	ChunksTotal      int
	ChunksFailed     int
	FindingsReported int
	Incomplete       bool
}

// FindingRecord is one persisted finding.
type FindingRecord struct {
	FindingID   string
	RunID       string
	Category    string
	File        string
	LineStart   int
	LineEnd     int
	Description string
	Confidence  int
	Triaged     bool
	Exploitable bool
	TriageNote  string
}

// NewStore opens or creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		files_scanned INTEGER NOT NULL,
		chunks_total INTEGER NOT NULL,
		chunks_failed INTEGER NOT NULL,
		findings_reported INTEGER NOT NULL,
		incomplete INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS findings (
		finding_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		category TEXT NOT NULL,
		file TEXT NOT NULL,
		line_start INTEGER NOT NULL,
		line_end INTEGER NOT NULL,
		description TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		triaged INTEGER NOT NULL DEFAULT 0,
		exploitable INTEGER NOT NULL DEFAULT 0,
		triage_note TEXT,
		PRIMARY KEY (run_id, finding_id),
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	CREATE INDEX IF NOT EXISTS idx_findings_file ON findings(file);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// generateRunID creates a time-ordered run ID.
// Format: run-<timestamp>-<hash>, e.g. run-20251021T143052Z-a3f9c2.
func generateRunID(startedAt time.Time, root string) string {
	ts := startedAt.UTC().Format("20060102T150405Z")
	input := fmt.Sprintf("%s|%d", root, startedAt.UnixNano())
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("run-%s-%s", ts, hex.EncodeToString(hash[:3]))
}

// SaveRun stores one finished report, run metadata and findings together
// in a single transaction.
func (s *Store) SaveRun(ctx context.Context, report workflow.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := generateRunID(report.StartedAt, report.Root)

	incomplete := 0
	if report.Summary.Incomplete {
		incomplete = 1
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, provider, root, started_at, finished_at, files_scanned, chunks_total, chunks_failed, findings_reported, incomplete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		report.Provider,
		report.Root,
		report.StartedAt.Unix(),
		report.FinishedAt.Unix(),
		report.Summary.FilesScanned,
		report.Summary.ChunksTotal,
		report.Summary.ChunksFailed,
		len(report.Findings),
		incomplete,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO findings (finding_id, run_id, category, file, line_start, line_end, description, confidence, triaged, exploitable, triage_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare findings statement: %w", err)
	}
	defer stmt.Close()

	for _, finding := range report.Findings {
		triaged, exploitable := 0, 0
		note := ""
		if finding.Triage != nil {
			triaged = 1
			note = finding.Triage.Explanation
			if finding.Triage.Exploitable {
				exploitable = 1
			}
		}
		if _, err := stmt.ExecContext(ctx,
			finding.ID,
			runID,
			finding.Category,
			finding.File,
			finding.LineStart,
			finding.LineEnd,
			finding.Description,
			finding.Confidence,
			triaged,
			exploitable,
			note,
		); err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListRuns retrieves the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, provider, root, started_at, finished_at, files_scanned, chunks_total, chunks_failed, findings_reported, incomplete
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var startedAt, finishedAt int64
		var incomplete int

		if err := rows.Scan(
			&run.RunID,
			&run.Provider,
			&run.Root,
			&startedAt,
			&finishedAt,
			&run.FilesScanned,
			&run.ChunksTotal,
			&run.ChunksFailed,
			&run.FindingsReported,
			&incomplete,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		run.StartedAt = time.Unix(startedAt, 0)
		run.FinishedAt = time.Unix(finishedAt, 0)
		run.Incomplete = incomplete == 1
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetFindingsByRun retrieves the persisted findings for one run, ordered by
// file and start line.
func (s *Store) GetFindingsByRun(ctx context.Context, runID string) ([]FindingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT finding_id, run_id, category, file, line_start, line_end, description, confidence, triaged, exploitable, triage_note
		FROM findings
		WHERE run_id = ?
		ORDER BY file ASC, line_start ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get findings by run: %w", err)
	}
	defer rows.Close()

	var findings []FindingRecord
	for rows.Next() {
		var finding FindingRecord
		var triaged, exploitable int
		var note sql.NullString

		if err := rows.Scan(
			&finding.FindingID,
			&finding.RunID,
			&finding.Category,
			&finding.File,
			&finding.LineStart,
			&finding.LineEnd,
			&finding.Description,
			&finding.Confidence,
			&triaged,
			&exploitable,
			&note,
		); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}

		finding.Triaged = triaged == 1
		finding.Exploitable = exploitable == 1
		finding.TriageNote = note.String
		findings = append(findings, finding)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return findings, nil
}

// FileHistory retrieves past findings touching a file across all runs,
// newest run first.
func (s *Store) FileHistory(ctx context.Context, file string, limit int) ([]FindingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.finding_id, f.run_id, f.category, f.file, f.line_start, f.line_end, f.description, f.confidence, f.triaged, f.exploitable, f.triage_note
		FROM findings f
		JOIN runs r ON r.run_id = f.run_id
		WHERE f.file = ?
		ORDER BY r.started_at DESC, f.line_start ASC
		LIMIT ?
	`, file, limit)
	if err != nil {
		return nil, fmt.Errorf("file history: %w", err)
	}
	defer rows.Close()

	var findings []FindingRecord
	for rows.Next() {
		var finding FindingRecord
		var triaged, exploitable int
		var note sql.NullString

		if err := rows.Scan(
			&finding.FindingID,
			&finding.RunID,
			&finding.Category,
			&finding.File,
			&finding.LineStart,
			&finding.LineEnd,
			&finding.Description,
			&finding.Confidence,
			&triaged,
			&exploitable,
			&note,
		); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}

		finding.Triaged = triaged == 1
		finding.Exploitable = exploitable == 1
		finding.TriageNote = note.String
		findings = append(findings, finding)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return findings, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ workflow.Store = (*Store)(nil)
