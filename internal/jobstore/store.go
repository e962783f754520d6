package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"yt-mirror/internal/model"
)

const DatabaseFileName = "process.db"

var ErrInvalidJob = errors.New("invalid job")

const schema = `
CREATE TABLE IF NOT EXISTS process (
	youtubeId TEXT NOT NULL PRIMARY KEY,
	state TEXT NOT NULL,
	errorMessage TEXT
);
CREATE INDEX IF NOT EXISTS idx_process_state ON process(state);
`

// Store is the durable job table. It is meant to be driven by a single
// writer; the connection pool is capped at one connection.
type Store struct {
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory for %s: %w", p, err)
	}

	db, err := sql.Open("sqlite3", p+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", p, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema in %s: %w", p, err)
	}
	return &Store{db: db, path: p}, nil
}

func OpenInDir(dataDir string) (*Store, error) {
	return Open(filepath.Join(dataDir, DatabaseFileName))
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertMany stores the batch in one transaction. Rows whose id already
// exists are skipped, never overwritten. Any other failure rolls back the
// whole batch. It returns how many rows were actually inserted.
func (s *Store) InsertMany(ctx context.Context, jobs []model.Job) (int, error) {
	for _, j := range jobs {
		if strings.TrimSpace(j.ID) == "" {
			return 0, fmt.Errorf("%w: empty id", ErrInvalidJob)
		}
		if !j.State.Persisted() {
			return 0, fmt.Errorf("%w: state %q cannot be stored (id=%s)", ErrInvalidJob, j.State, j.ID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO process (youtubeId, state, errorMessage) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, j := range jobs {
		res, err := stmt.ExecContext(ctx, j.ID, string(j.State), nullableText(j.Error))
		if err != nil {
			return 0, fmt.Errorf("insert job %s: %w", j.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert job %s: %w", j.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert transaction: %w", err)
	}
	return inserted, nil
}

// ListByState returns every job currently in one of the given states.
func (s *Store) ListByState(ctx context.Context, states ...model.JobState) ([]model.Job, error) {
	if len(states) == 0 {
		return []model.Job{}, nil
	}
	placeholders := make([]string, 0, len(states))
	args := make([]any, 0, len(states))
	for _, st := range states {
		placeholders = append(placeholders, "?")
		args = append(args, string(st))
	}
	query := `SELECT youtubeId, state, errorMessage FROM process WHERE state IN (` + strings.Join(placeholders, ", ") + `) ORDER BY youtubeId`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs by state: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		var (
			id      string
			state   string
			errText sql.NullString
		)
		if err := rows.Scan(&id, &state, &errText); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		parsed, err := model.ParseJobState(state)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", id, err)
		}
		jobs = append(jobs, model.Job{ID: id, State: parsed, Error: errText.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs by state: %w", err)
	}
	return jobs, nil
}

// The mark operations are unconditional single-row updates. Updating an id
// that does not exist is not an error.

func (s *Store) MarkFinished(ctx context.Context, id string) error {
	return s.setState(ctx, id, model.StateFinished, "")
}

func (s *Store) MarkFailed(ctx context.Context, id, errText string) error {
	return s.setState(ctx, id, model.StateFailed, errText)
}

func (s *Store) MarkSkipped(ctx context.Context, id string) error {
	return s.setState(ctx, id, model.StateSkipped, "")
}

func (s *Store) setState(ctx context.Context, id string, state model.JobState, errText string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE process SET state = ?, errorMessage = ? WHERE youtubeId = ?`,
		string(state), nullableText(errText), id,
	); err != nil {
		return fmt.Errorf("mark job %s as %s: %w", id, state, err)
	}
	return nil
}

func (s *Store) Counts(ctx context.Context) (map[model.JobState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM process GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.JobState]int)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[model.JobState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return counts, nil
}

func nullableText(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
