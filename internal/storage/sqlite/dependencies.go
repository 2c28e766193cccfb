package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/taskgraph"
	"github.com/meridianlabs/agentcore/internal/types"
)

// loadEdges reads the full dependency edge snapshot inside the caller's
// transaction. The graph is per-agent and small, so reading it whole keeps
// the cycle check simple and race-free.
func loadEdges(ctx context.Context, q querier) ([]taskgraph.Edge, error) {
	rows, err := q.QueryContext(ctx, "SELECT task_id, depends_on_task_id FROM task_dependencies")
	if err != nil {
		return nil, fmt.Errorf("failed to load dependency edges: %w", err)
	}
	defer rows.Close()

	var edges []taskgraph.Edge
	for rows.Next() {
		var e taskgraph.Edge
		if err := rows.Scan(&e.TaskID, &e.DependsOnTaskID); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// AddDependency adds the edge taskID → dependsOnID to the task DAG. The
// cycle check runs in the same IMMEDIATE transaction as the insert, so two
// concurrent inserts that each look acyclic cannot jointly form a cycle.
func (s *Store) AddDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	dep := &types.TaskDependency{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		DependsOnTaskID: dependsOnID,
	}
	if err := dep.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	dep.CreatedAt = now()

	return s.withTx(ctx, func(q querier) error {
		reader := s.reader(q)
		known := map[string]bool{}
		for _, id := range []string{taskID, dependsOnID} {
			ok, err := reader.Exists(ctx, types.KindTask, id)
			if err != nil {
				return err
			}
			known[id] = ok
		}

		edges, err := loadEdges(ctx, q)
		if err != nil {
			return err
		}
		if err := taskgraph.CheckEdge(edges, known, taskID, dependsOnID); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO task_dependencies (id, task_id, depends_on_task_id, created_at)
			VALUES (?, ?, ?, ?)
		`, dep.ID, dep.TaskID, dep.DependsOnTaskID, dep.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert dependency: %w", err)
		}
		return recordEvent(ctx, q, types.KindTask, taskID, types.EventDependencyAdded, actor, nil, dep)
	})
}

// RemoveDependency removes the edge taskID → dependsOnID
func (s *Store) RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error {
	return s.withTx(ctx, func(q querier) error {
		res, err := q.ExecContext(ctx, `
			DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?
		`, taskID, dependsOnID)
		if err != nil {
			return fmt.Errorf("failed to remove dependency: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(types.KindTaskDependency, taskID+" → "+dependsOnID)
		}
		return recordEvent(ctx, q, types.KindTask, taskID, types.EventDependencyRemoved, actor, dependsOnID, nil)
	})
}

// GetDependencies returns the tasks that taskID depends on
func (s *Store) GetDependencies(ctx context.Context, taskID string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedTaskColumns("t")+`
		FROM tasks t
		JOIN task_dependencies d ON t.id = d.depends_on_task_id
		WHERE d.task_id = ?
		ORDER BY t.created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dependencies: %w", err)
	}
	return collectTasks(rows)
}

// GetDependents returns the tasks that depend on taskID
func (s *Store) GetDependents(ctx context.Context, taskID string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedTaskColumns("t")+`
		FROM tasks t
		JOIN task_dependencies d ON t.id = d.task_id
		WHERE d.depends_on_task_id = ?
		ORDER BY t.created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dependents: %w", err)
	}
	return collectTasks(rows)
}

func prefixedTaskColumns(alias string) string {
	return alias + ".id, " + alias + ".agent_id, " + alias + ".name, " + alias + ".description, " +
		alias + ".status, " + alias + ".priority, " + alias + ".input, " + alias + ".output, " +
		alias + ".metadata, " + alias + ".created_at, " + alias + ".updated_at, " + alias + ".completed_at"
}
