package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediaflow/internal/graph"
)

// Workflow is a stored, named workflow definition.
type Workflow struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Definition  graph.Definition `json:"definition"`
	IsActive    bool             `json:"is_active"`
	Schedule    string           `json:"schedule,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

const workflowColumns = "id, name, description, definition, is_active, schedule, created_at, updated_at"

func scanWorkflow(row rowScanner) (*Workflow, error) {
	var (
		wf          Workflow
		description sql.NullString
		definition  string
		active      int
		schedule    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := row.Scan(&wf.ID, &wf.Name, &description, &definition, &active, &schedule, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	def, err := graph.Parse([]byte(definition))
	if err != nil {
		return nil, fmt.Errorf("decode workflow %d definition: %w", wf.ID, err)
	}
	wf.Definition = def
	wf.Description = description.String
	wf.IsActive = active != 0
	wf.Schedule = schedule.String
	wf.CreatedAt, _ = parseTimeString(createdRaw)
	wf.UpdatedAt, _ = parseTimeString(updatedRaw)
	return &wf, nil
}

// CreateWorkflow inserts wf and returns the stored copy.
func (s *Store) CreateWorkflow(ctx context.Context, wf Workflow) (*Workflow, error) {
	name := strings.TrimSpace(wf.Name)
	if name == "" {
		return nil, errors.New("create workflow: name is required")
	}
	if err := wf.Definition.Validate(); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	definition, err := wf.Definition.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode definition: %w", err)
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`INSERT INTO workflows (name, description, definition, is_active, schedule, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, nullableString(wf.Description), string(definition), boolToInt(wf.IsActive),
		nullableString(strings.TrimSpace(wf.Schedule)), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetWorkflow(ctx, id)
}

// GetWorkflow returns a workflow regardless of its active flag.
func (s *Store) GetWorkflow(ctx context.Context, id int64) (*Workflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = ?`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns active workflows ordered by id.
func (s *Store) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	return s.queryWorkflows(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE is_active = 1 ORDER BY id`)
}

// ScheduledWorkflows returns active workflows that carry a cron schedule.
func (s *Store) ScheduledWorkflows(ctx context.Context) ([]*Workflow, error) {
	return s.queryWorkflows(ctx,
		`SELECT `+workflowColumns+` FROM workflows WHERE is_active = 1 AND schedule IS NOT NULL AND schedule != '' ORDER BY id`)
}

func (s *Store) queryWorkflows(ctx context.Context, query string, args ...any) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	var out []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

// UpdateWorkflow replaces the mutable fields of an existing workflow.
func (s *Store) UpdateWorkflow(ctx context.Context, wf *Workflow) error {
	if strings.TrimSpace(wf.Name) == "" {
		return errors.New("update workflow: name is required")
	}
	if err := wf.Definition.Validate(); err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	definition, err := wf.Definition.Encode()
	if err != nil {
		return fmt.Errorf("encode definition: %w", err)
	}
	now := time.Now()
	res, err := s.execWithRetry(ctx,
		`UPDATE workflows SET name = ?, description = ?, definition = ?, is_active = ?, schedule = ?, updated_at = ?
         WHERE id = ?`,
		strings.TrimSpace(wf.Name), nullableString(wf.Description), string(definition), boolToInt(wf.IsActive),
		nullableString(strings.TrimSpace(wf.Schedule)), formatTime(now), wf.ID,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow %d: %w", wf.ID, ErrNotFound)
	}
	wf.UpdatedAt = now.UTC()
	return nil
}

// DeactivateWorkflow soft-deletes a workflow; its executions are kept.
func (s *Store) DeactivateWorkflow(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE workflows SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow %d: %w", id, ErrNotFound)
	}
	return nil
}
