package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates no run matches the requested identifier.
var ErrNotFound = errors.New("job run not found")

// Run is one finished worker job.
type Run struct {
	ID         string
	Kind       string
	Args       []string
	Status     string
	ExitCode   int
	Result     map[string]any
	Error      string
	Diagnostic string
	Workspace  string
	TimedOut   bool
	Killed     bool
	NoiseLines int
	Samples    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration reports how long the worker ran.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ListOptions filters List results. Zero values match everything.
type ListOptions struct {
	Kind   string
	Status string
	// Limit caps the number of rows; <= 0 means no cap.
	Limit int
}

const runColumns = "id, kind, args_json, status, exit_code, result_json, error_message, diagnostic, workspace, timed_out, killed, noise_lines, progress_samples, started_at, finished_at"

// Record inserts run, replacing any earlier row with the same ID.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("record job run: id is required")
	}
	if strings.TrimSpace(run.Kind) == "" {
		return errors.New("record job run: kind is required")
	}
	args := run.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	var resultJSON any
	if run.Result != nil {
		data, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		resultJSON = string(data)
	}

	_, err = s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO job_runs (`+runColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Kind,
		string(argsJSON),
		run.Status,
		run.ExitCode,
		resultJSON,
		nullableString(run.Error),
		nullableString(run.Diagnostic),
		nullableString(run.Workspace),
		boolToInt(run.TimedOut),
		boolToInt(run.Killed),
		run.NoiseLines,
		run.Samples,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job run: %w", err)
	}
	return nil
}

// Get returns the run with the given ID. A unique ID prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM job_runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id,
	)
	if err != nil {
		return nil, fmt.Errorf("query job run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case matches[0].ID == id || len(matches) == 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous job id prefix %q", id)
	}
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Run, error) {
	ctx = ensureContext(ctx)
	var (
		where []string
		args  []any
	)
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	query := `SELECT ` + runColumns + ` FROM job_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Clear deletes runs that finished before cutoff. A zero cutoff deletes every
// run. It returns the number of rows removed.
func (s *Store) Clear(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "DELETE FROM job_runs"
	var args []any
	if !cutoff.IsZero() {
		query += " WHERE finished_at < ?"
		args = append(args, formatTime(cutoff))
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear job runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		argsJSON    string
		resultJSON  sql.NullString
		errorMsg    sql.NullString
		diagnostic  sql.NullString
		workspace   sql.NullString
		timedOut    int
		killed      int
		startedRaw  string
		finishedRaw string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Kind,
		&argsJSON,
		&run.Status,
		&run.ExitCode,
		&resultJSON,
		&errorMsg,
		&diagnostic,
		&workspace,
		&timedOut,
		&killed,
		&run.NoiseLines,
		&run.Samples,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(argsJSON), &run.Args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &run.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	run.Error = errorMsg.String
	run.Diagnostic = diagnostic.String
	run.Workspace = workspace.String
	run.TimedOut = timedOut != 0
	run.Killed = killed != 0
	if t, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		run.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, finishedRaw); err == nil {
		run.FinishedAt = t
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// formatTime uses a fixed-width layout so lexical order matches time order.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
