// Package store persists analysis runs in a single SQLite database.
//
// A run is one analyzed session: its documents, issues, deduplicated
// transactions with provenance and the coverage rows computed for it. The
// full session report is kept alongside the relational rows so GetRun can
// return it unchanged.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/util"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location
const DefaultDBPath = "~/.medbilldozer/history.db"

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of the run history
type RunSummary struct {
	ID                    string
	CreatedAt             time.Time
	Documents             int
	IssueCount            int
	TotalMaxSavings       float64
	HighConfidenceSavings float64
	Confidence            string
}

// IssueRecord is a stored issue with the run it belongs to
type IssueRecord struct {
	RunID string
	model.Issue
}

// Store is the run history interface
type Store interface {
	SaveSession(ctx context.Context, s *model.Session) (string, error)
	GetRun(ctx context.Context, id string) (*model.Session, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	IssuesForDocument(ctx context.Context, documentID string) ([]IssueRecord, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

// SQLiteStore implements Store on modernc.org/sqlite
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                      TEXT PRIMARY KEY,
	created_at              DATETIME NOT NULL,
	documents               INTEGER NOT NULL,
	issue_count             INTEGER NOT NULL,
	total_max_savings       REAL NOT NULL DEFAULT 0,
	high_confidence_savings REAL NOT NULL DEFAULT 0,
	confidence              TEXT NOT NULL DEFAULT '',
	report                  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

CREATE TABLE IF NOT EXISTS documents (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	document_id TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	doc_type    TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 0,
	provider    TEXT NOT NULL DEFAULT '',
	issue_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, document_id)
);

CREATE TABLE IF NOT EXISTS issues (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	document_id  TEXT NOT NULL DEFAULT '',
	issue_type   TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	evidence     TEXT NOT NULL DEFAULT '',
	code         TEXT NOT NULL DEFAULT '',
	service_date TEXT NOT NULL DEFAULT '',
	action       TEXT NOT NULL DEFAULT '',
	max_savings  REAL,
	confidence   REAL,
	source       TEXT NOT NULL DEFAULT '',
	provider     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_issues_document ON issues(document_id);

CREATE TABLE IF NOT EXISTS transactions (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	fingerprint    TEXT NOT NULL,
	patient_dob    TEXT NOT NULL DEFAULT '',
	provider       TEXT NOT NULL DEFAULT '',
	service_date   TEXT NOT NULL DEFAULT '',
	procedure_code TEXT NOT NULL DEFAULT '',
	units          TEXT NOT NULL DEFAULT '',
	billed_amount  TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL DEFAULT '',
	occurrences    INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (run_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS transaction_sources (
	run_id      TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	document_id TEXT NOT NULL,
	PRIMARY KEY (run_id, fingerprint, document_id),
	FOREIGN KEY (run_id, fingerprint) REFERENCES transactions(run_id, fingerprint) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS coverage_rows (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	service_date TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	notes        TEXT NOT NULL DEFAULT ''
);
`

// NewStore opens (and creates if needed) the database at path.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	path = util.ExpandHome(path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession stores a session as a new run and returns the run ID.
// Sessions without an ID get a fresh UUID.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *model.Session) (string, error) {
	if session == nil {
		return "", fmt.Errorf("nil session")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	report, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := session.Summary
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, documents, issue_count, total_max_savings, high_confidence_savings, confidence, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.CreatedAt.UTC(), len(session.Documents), sum.IssueCount,
		sum.TotalMaxSavings, sum.HighConfidenceSavings, sum.Confidence, string(report),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, d := range session.Documents {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (run_id, document_id, label, name, doc_type, confidence, provider, issue_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, d.ID, d.Label, d.Name, string(d.Type), d.Confidence, d.Provider, len(d.Issues),
		); err != nil {
			return "", fmt.Errorf("insert document %s: %w", d.ID, err)
		}
		if err := insertIssues(ctx, tx, session.ID, d.Issues); err != nil {
			return "", err
		}
	}
	if err := insertIssues(ctx, tx, session.ID, session.Issues); err != nil {
		return "", err
	}

	for _, e := range session.Transactions {
		t := e.Transaction
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (run_id, fingerprint, patient_dob, provider, service_date, procedure_code, units, billed_amount, kind, occurrences)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, t.ID, t.PatientDOB, t.Provider, t.DateOfService, t.ProcedureCode,
			t.Units, t.BilledAmount, string(t.Kind), e.Occurrences,
		); err != nil {
			return "", fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
		for _, src := range e.Sources {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO transaction_sources (run_id, fingerprint, document_id) VALUES (?, ?, ?)`,
				session.ID, t.ID, src,
			); err != nil {
				return "", fmt.Errorf("insert provenance %s: %w", t.ID, err)
			}
		}
	}

	for _, row := range session.Coverage {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO coverage_rows (run_id, service_date, description, status, notes) VALUES (?, ?, ?, ?, ?)`,
			session.ID, row.Date, row.Description, string(row.Status), row.Notes,
		); err != nil {
			return "", fmt.Errorf("insert coverage row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return session.ID, nil
}

func insertIssues(ctx context.Context, tx *sql.Tx, runID string, issues []model.Issue) error {
	for _, i := range issues {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issues (run_id, document_id, issue_type, summary, evidence, code, service_date, action, max_savings, confidence, source, provider)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i.DocumentID, string(i.Type), i.Summary, i.Evidence, i.Code, i.Date,
			i.RecommendedAction, nullFloat(i.MaxSavings), nullFloat(i.Confidence), string(i.Source), i.Provider,
		); err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
	}
	return nil
}

// GetRun returns the stored session report for a run
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Session, error) {
	var report string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE id = ?`, id).Scan(&report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(report), &session); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &session, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, documents, issue_count, total_max_savings, high_confidence_savings, confidence
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Documents, &r.IssueCount,
			&r.TotalMaxSavings, &r.HighConfidenceSavings, &r.Confidence); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IssuesForDocument returns every stored issue of one document across runs,
// oldest first
func (s *SQLiteStore) IssuesForDocument(ctx context.Context, documentID string) ([]IssueRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.run_id, i.document_id, i.issue_type, i.summary, i.evidence, i.code, i.service_date,
		        i.action, i.max_savings, i.confidence, i.source, i.provider
		 FROM issues i JOIN runs r ON r.id = i.run_id
		 WHERE i.document_id = ? ORDER BY r.created_at, i.id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []IssueRecord
	for rows.Next() {
		var (
			rec                 IssueRecord
			issueType, source   string
			maxSavings, confVal sql.NullFloat64
		)
		if err := rows.Scan(&rec.RunID, &rec.DocumentID, &issueType, &rec.Summary, &rec.Evidence,
			&rec.Code, &rec.Date, &rec.RecommendedAction, &maxSavings, &confVal, &source, &rec.Provider); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		rec.Type = model.IssueType(issueType)
		rec.Source = model.IssueSource(source)
		rec.MaxSavings = floatPtr(maxSavings)
		rec.Confidence = floatPtr(confVal)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored with it
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}
