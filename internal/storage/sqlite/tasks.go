package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/taskgraph"
	"github.com/meridianlabs/agentcore/internal/types"
)

const taskColumns = "id, agent_id, name, description, status, priority, input, output, metadata, created_at, updated_at, completed_at"

// CreateTask creates a new task in the pending state. Pending is the only
// admissible initial status; every other status is reached through
// TransitionTask so a task can never be born past the state machine.
func (s *Store) CreateTask(ctx context.Context, task *types.Task, actor string) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = types.TaskPending
	}
	if task.Status != types.TaskPending {
		return fmt.Errorf("validation failed: %w",
			&types.ValidationError{Field: "status", Reason: fmt.Sprintf("new tasks must be %s, got %s", types.TaskPending, task.Status)})
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	task.CreatedAt = ts
	task.UpdatedAt = ts

	input, err := docJSON(task.Input)
	if err != nil {
		return err
	}
	output, err := docJSON(task.Output)
	if err != nil {
		return err
	}
	metadata, err := docJSON(task.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, taskRefs(task)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO tasks (id, agent_id, name, description, status, priority,
			                   input, output, metadata, created_at, updated_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, task.ID, task.AgentID, task.Name, task.Description, task.Status, task.Priority,
			input, output, metadata, task.CreatedAt, task.UpdatedAt, task.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		return recordEvent(ctx, q, types.KindTask, task.ID, types.EventCreated, actor, nil, task)
	})
}

func scanTask(scan func(dest ...interface{}) error) (*types.Task, error) {
	var task types.Task
	var input, output, metadata sql.NullString
	var completedAt sql.NullTime
	if err := scan(&task.ID, &task.AgentID, &task.Name, &task.Description, &task.Status,
		&task.Priority, &input, &output, &metadata,
		&task.CreatedAt, &task.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}

	var err error
	if task.Input, err = scanDoc(input); err != nil {
		return nil, err
	}
	if task.Output, err = scanDoc(output); err != nil {
		return nil, err
	}
	if task.Metadata, err = scanDoc(metadata); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func getTask(ctx context.Context, q querier, id string) (*types.Task, error) {
	row := q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	return getTask(ctx, s.db, id)
}

func collectTasks(rows *sql.Rows) ([]*types.Task, error) {
	defer rows.Close()
	var tasks []*types.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// SearchTasks finds tasks matching the filter
func (s *Store) SearchTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.AgentID != nil {
		whereClauses = append(whereClauses, "agent_id = ?")
		args = append(args, *filter.AgentID)
	}
	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		whereClauses = append(whereClauses, "priority = ?")
		args = append(args, *filter.Priority)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM tasks
		%s
		ORDER BY priority DESC, created_at ASC
		%s
	`, taskColumns, whereSQL, limitSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	return collectTasks(rows)
}

// Allowed fields for task updates to prevent SQL injection. Status is
// excluded deliberately: status changes go through TransitionTask so the
// state machine is enforced.
var allowedTaskFields = map[string]bool{
	"name":        true,
	"description": true,
	"priority":    true,
	"input":       true,
	"output":      true,
	"metadata":    true,
}

// UpdateTask updates fields on a task
func (s *Store) UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	old, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return notFound(types.KindTask, id)
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{now()}

	for key, value := range updates {
		if !allowedTaskFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}
		switch key {
		case "name":
			if name, ok := value.(string); ok && (name == "" || len(name) > 500) {
				return fmt.Errorf("name must be 1-500 characters")
			}
		case "priority":
			if priority, ok := value.(int); ok && priority < 0 {
				return fmt.Errorf("priority cannot be negative (got %d)", priority)
			}
		case "input", "output", "metadata":
			if doc, ok := value.(types.Doc); ok {
				marshaled, err := docJSON(doc)
				if err != nil {
					return err
				}
				value = marshaled
			}
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, value)
	}
	args = append(args, id)

	return s.withTx(ctx, func(q querier) error {
		query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(setClauses, ", "))
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		return recordEvent(ctx, q, types.KindTask, id, types.EventUpdated, actor, old, updates)
	})
}

// DeleteTask deletes a task and every dependency edge touching it
func (s *Store) DeleteTask(ctx context.Context, id string, actor string) error {
	return s.withTx(ctx, func(q querier) error {
		reader := s.reader(q)
		ok, err := reader.Exists(ctx, types.KindTask, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(types.KindTask, id)
		}

		plan, err := s.engine.PlanDelete(ctx, reader, types.KindTask, id)
		if err != nil {
			return err
		}
		if err := applyDeletePlan(ctx, q, plan); err != nil {
			return err
		}
		return recordEvent(ctx, q, types.KindTask, id, types.EventDeleted, actor, nil, nil)
	})
}

// TransitionTask moves a task through the status state machine. Entering a
// terminal status stamps completed_at. The legality check and the write
// share one transaction, so concurrent transitions serialize.
func (s *Store) TransitionTask(ctx context.Context, id string, to types.TaskStatus, actor string) error {
	return s.withTx(ctx, func(q querier) error {
		task, err := getTask(ctx, q, id)
		if err != nil {
			return err
		}
		if task == nil {
			return notFound(types.KindTask, id)
		}

		from := task.Status
		if err := taskgraph.Transition(task, to, now()); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `
			UPDATE tasks SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?
		`, task.Status, task.UpdatedAt, task.CompletedAt, id)
		if err != nil {
			return fmt.Errorf("failed to transition task: %w", err)
		}

		fromStr := string(from)
		toStr := string(to)
		return recordEvent(ctx, q, types.KindTask, id, types.EventStatusChanged, actor, fromStr, toStr)
	})
}

// ReadyTasks returns an agent's tasks that are eligible to run: status
// pending or ready and every dependency succeeded. Computed fresh from the
// persisted relation on every call; nothing is cached across mutations.
func (s *Store) ReadyTasks(ctx context.Context, agentID string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM ready_tasks
		WHERE agent_id = ?
		ORDER BY priority DESC, created_at ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ready tasks: %w", err)
	}
	return collectTasks(rows)
}
