package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/stanfront/pkg/preproc"
)

// SaveRun records a run of root with its history and opened sources in a
// single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, root string, searchPath []string, history preproc.History, sources []string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if searchPath == nil {
		searchPath = []string{}
	}
	sp, err := json.Marshal(searchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search path: %w", err)
	}

	run := &Run{
		ID:         generateID(),
		Root:       root,
		SearchPath: searchPath,
		LineCount:  history.LineCount(),
		Sources:    sources,
		CreatedAt:  time.Now().UTC(),
	}

	s.logger.Debug("saving run",
		slog.String("id", run.ID),
		slog.String("root", root),
		slog.Int("events", len(history)))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, root, search_path, line_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Root, string(sp), run.LineCount, run.CreatedAt.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	eventStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (run_id, seq, concat_line, line, action, path) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer func() { _ = eventStmt.Close() }()

	for i, e := range history {
		if _, err := eventStmt.ExecContext(ctx, run.ID, i, e.ConcatLine, e.Line, e.Action.String(), e.Path); err != nil {
			return nil, fmt.Errorf("failed to save event %d: %w", i, err)
		}
	}

	for i, p := range sources {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sources (run_id, seq, path) VALUES (?, ?, ?)`, run.ID, i, p,
		); err != nil {
			return nil, fmt.Errorf("failed to save source %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID, including its sources.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, root, search_path, line_count, created_at FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.Sources, err = s.loadSources(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestRun retrieves the most recent run of root.
func (s *SQLiteStore) LatestRun(ctx context.Context, root string) (*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, root, search_path, line_count, created_at FROM runs
		 WHERE root = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, root))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no run recorded for %s", ErrRunNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	if run.Sources, err = s.loadSources(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns recorded runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, root, search_path, line_count, created_at FROM runs
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LoadHistory returns the event history of a run, validated against the
// nesting rules before it is handed back.
func (s *SQLiteStore) LoadHistory(ctx context.Context, id string) (preproc.History, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT concat_line, line, action, path FROM events WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var h preproc.History
	for rows.Next() {
		var e preproc.Event
		var action string
		if err := rows.Scan(&e.ConcatLine, &e.Line, &action, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Action, err = preproc.ParseAction(action); err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
		h = append(h, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return h, nil
}

// DeleteRun removes a run; its events and sources cascade.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) loadSources(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM sources WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, p)
	}
	return sources, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var sp string
	var created int64
	if err := row.Scan(&run.ID, &run.Root, &sp, &run.LineCount, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sp), &run.SearchPath); err != nil {
		return nil, fmt.Errorf("failed to decode search path: %w", err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return run, nil
}
