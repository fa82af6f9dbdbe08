package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediaflow/internal/execution"
)

// InterruptedMessage is recorded on executions reclaimed after a crash.
const InterruptedMessage = "interrupted by daemon restart"

// CancelledMessage is appended to the log when an execution is cancelled.
const CancelledMessage = "Execution cancelled by user"

const executionColumns = "id, workflow_id, status, results_json, error_message, started_at, completed_at"

func scanExecution(row rowScanner) (*execution.Record, error) {
	var (
		rec          execution.Record
		statusRaw    string
		resultsRaw   sql.NullString
		errorMessage sql.NullString
		startedRaw   string
		completedRaw sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.WorkflowID, &statusRaw, &resultsRaw, &errorMessage, &startedRaw, &completedRaw); err != nil {
		return nil, err
	}
	status, err := execution.ParseStatus(statusRaw)
	if err != nil {
		return nil, err
	}
	rec.Status = status
	if resultsRaw.Valid && resultsRaw.String != "" {
		if err := json.Unmarshal([]byte(resultsRaw.String), &rec.Results); err != nil {
			return nil, fmt.Errorf("decode execution %d results: %w", rec.ID, err)
		}
	}
	rec.Results.Normalize()
	rec.ErrorMessage = errorMessage.String
	rec.StartedAt, _ = parseTimeString(startedRaw)
	rec.CompletedAt = parseNullTime(completedRaw)
	return &rec, nil
}

func encodeResults(results execution.Results) (string, error) {
	results.Normalize()
	raw, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	return string(raw), nil
}

func insertLogLines(ctx context.Context, tx *sql.Tx, id int64, lines []string) error {
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx, `INSERT INTO execution_logs (execution_id, line) VALUES (?, ?)`, id, line); err != nil {
			return fmt.Errorf("append execution log: %w", err)
		}
	}
	return nil
}

// CreateExecution inserts a running execution for workflowID with the given
// initial log lines.
func (s *Store) CreateExecution(ctx context.Context, workflowID int64, lines ...string) (*execution.Record, error) {
	results, err := encodeResults(execution.Results{})
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO executions (workflow_id, status, results_json, started_at) VALUES (?, ?, ?, ?)`,
			workflowID, execution.StatusRunning, results, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return insertLogLines(ctx, tx, id, lines)
	})
	if err != nil {
		return nil, err
	}
	return s.GetExecution(ctx, id)
}

// GetExecution returns the full record including its log.
func (s *Store) GetExecution(ctx context.Context, id int64) (*execution.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)
	rec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("execution %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	if rec.Log, err = s.executionLog(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) executionLog(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM execution_logs WHERE execution_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("read execution log: %w", err)
	}
	defer rows.Close()
	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ExecutionStatus reads only the status column.
func (s *Store) ExecutionStatus(ctx context.Context, id int64) (execution.Status, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM executions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("execution %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read execution status: %w", err)
	}
	return execution.ParseStatus(raw)
}

// SaveSnapshot appends new log lines and replaces the results document.
// The status column is left alone.
func (s *Store) SaveSnapshot(ctx context.Context, id int64, newLines []string, results execution.Results) error {
	encoded, err := encodeResults(results)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE executions SET results_json = ? WHERE id = ?`, encoded, id)
		if err != nil {
			return fmt.Errorf("save execution snapshot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("execution %d: %w", id, ErrNotFound)
		}
		return insertLogLines(ctx, tx, id, newLines)
	})
}

// FinalizeExecution moves a running execution to a terminal status. It
// reports false when the execution was no longer running, which happens when
// it was cancelled concurrently.
func (s *Store) FinalizeExecution(ctx context.Context, id int64, status execution.Status, errorMessage string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE executions SET status = ?, error_message = ?, completed_at = ? WHERE id = ? AND status = ?`,
		status, nullableString(errorMessage), formatTime(time.Now()), id, execution.StatusRunning,
	)
	if err != nil {
		return false, fmt.Errorf("finalize execution: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CancelExecution marks a running or paused execution cancelled and appends
// CancelledMessage to its log.
func (s *Store) CancelExecution(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE executions SET status = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)`,
			execution.StatusCancelled, formatTime(time.Now()), id, execution.StatusRunning, execution.StatusPaused,
		)
		if err != nil {
			return fmt.Errorf("cancel execution: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var status string
			err := tx.QueryRowContext(ctx, `SELECT status FROM executions WHERE id = ?`, id).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("execution %d: %w", id, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("cancel execution: %w", err)
			}
			return fmt.Errorf("execution %d is %s: %w", id, status, execution.ErrAlreadyFinished)
		}
		return insertLogLines(ctx, tx, id, []string{execution.FormatLogEntry(time.Now(), CancelledMessage)})
	})
}

// ListExecutions returns execution history newest first, without logs.
func (s *Store) ListExecutions(ctx context.Context, skip, limit int) ([]*execution.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	return s.queryExecutions(ctx,
		`SELECT `+executionColumns+` FROM executions ORDER BY id DESC LIMIT ? OFFSET ?`, limit, skip)
}

// ListWorkflowExecutions returns the executions of one workflow newest first, without logs.
func (s *Store) ListWorkflowExecutions(ctx context.Context, workflowID int64) ([]*execution.Record, error) {
	return s.queryExecutions(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE workflow_id = ? ORDER BY id DESC`, workflowID)
}

func (s *Store) queryExecutions(ctx context.Context, query string, args ...any) ([]*execution.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()
	var out []*execution.Record
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteExecution removes a finished execution and returns the deleted
// record so callers can clean up its artifacts.
func (s *Store) DeleteExecution(ctx context.Context, id int64) (*execution.Record, error) {
	rec, err := s.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == execution.StatusRunning {
		return nil, fmt.Errorf("delete execution %d: %w", id, execution.ErrRunning)
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM executions WHERE id = ? AND status != ?`, id, execution.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("delete execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("delete execution %d: %w", id, execution.ErrRunning)
	}
	return rec, nil
}

// ReclaimInterrupted fails executions left running by a previous process.
func (s *Store) ReclaimInterrupted(ctx context.Context) (int64, error) {
	var reclaimed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM executions WHERE status = ?`, execution.StatusRunning)
		if err != nil {
			return fmt.Errorf("find interrupted executions: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		now := time.Now()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE executions SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
				execution.StatusFailed, InterruptedMessage, formatTime(now), id,
			); err != nil {
				return fmt.Errorf("reclaim execution %d: %w", id, err)
			}
			if err := insertLogLines(ctx, tx, id, []string{execution.FormatLogEntry(now, "Execution "+InterruptedMessage)}); err != nil {
				return err
			}
		}
		reclaimed = int64(len(ids))
		return nil
	})
	return reclaimed, err
}

// ExecutionStats counts executions by status.
func (s *Store) ExecutionStats(ctx context.Context) (map[execution.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM executions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("execution stats: %w", err)
	}
	defer rows.Close()
	stats := make(map[execution.Status]int)
	for rows.Next() {
		var status execution.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
