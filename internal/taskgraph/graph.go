// Package taskgraph maintains the task dependency DAG: it rejects edges that
// would form a cycle, computes which tasks are eligible to run, and enforces
// the legality of status transitions. It never executes tasks; the external
// scheduler reads the ready set and drives transitions.
//
// All functions are pure over a snapshot of edges. Callers must read that
// snapshot inside the same transaction as the mutation it guards, so two
// concurrent edge inserts cannot individually look acyclic and jointly form
// a cycle.
package taskgraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridianlabs/agentcore/internal/types"
)

// Edge is one dependency: TaskID waits on DependsOnTaskID
type Edge struct {
	TaskID          string
	DependsOnTaskID string
}

// ErrSelfDependency is returned when a task is made to depend on itself
var ErrSelfDependency = errors.New("task cannot depend on itself")

// CycleError reports an edge rejected because it would close a cycle
type CycleError struct {
	TaskID          string
	DependsOnTaskID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency %s → %s would create a cycle", e.TaskID, e.DependsOnTaskID)
}

// UnknownTaskError reports an edge endpoint that does not exist
type UnknownTaskError struct {
	ID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task: %s", e.ID)
}

// TransitionError reports a status change not allowed by the state machine
type TransitionError struct {
	From types.TaskStatus
	To   types.TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s → %s", e.From, e.To)
}

// CheckEdge validates adding the edge taskID → dependsOnID against the
// current edge snapshot. known holds the ids of all existing tasks.
//
// The cycle check is a BFS over existing depends-on edges: the new edge
// closes a cycle iff taskID is already reachable from dependsOnID. O(V+E),
// acceptable because graphs are per-agent and small.
func CheckEdge(edges []Edge, known map[string]bool, taskID, dependsOnID string) error {
	if taskID == dependsOnID {
		return ErrSelfDependency
	}
	if !known[taskID] {
		return &UnknownTaskError{ID: taskID}
	}
	if !known[dependsOnID] {
		return &UnknownTaskError{ID: dependsOnID}
	}
	if reachable(edges, dependsOnID, taskID) {
		return &CycleError{TaskID: taskID, DependsOnTaskID: dependsOnID}
	}
	return nil
}

// reachable reports whether `to` can be reached from `from` by following
// depends-on edges
func reachable(edges []Edge, from, to string) bool {
	next := map[string][]string{}
	for _, e := range edges {
		next[e.TaskID] = append(next[e.TaskID], e.DependsOnTaskID)
	}

	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node == to {
			return true
		}
		for _, n := range next[node] {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false
}

// IsReady reports whether a task is eligible to run: its status is pending
// or ready and every dependency has succeeded. Pure function of the current
// task/edge state; recomputed on demand, never cached.
func IsReady(task *types.Task, depStatuses []types.TaskStatus) bool {
	if task.Status != types.TaskPending && task.Status != types.TaskReady {
		return false
	}
	for _, s := range depStatuses {
		if s != types.TaskSucceeded {
			return false
		}
	}
	return true
}

// Transition applies a status change to a task in place, enforcing the state
// machine. Entering a terminal status stamps CompletedAt; terminal statuses
// have no outgoing transitions so the stamp happens exactly once.
func Transition(task *types.Task, to types.TaskStatus, now time.Time) error {
	if !to.IsValid() {
		return &TransitionError{From: task.Status, To: to}
	}
	if !task.Status.CanTransitionTo(to) {
		return &TransitionError{From: task.Status, To: to}
	}
	task.Status = to
	task.UpdatedAt = now
	if to.IsTerminal() {
		stamped := now
		task.CompletedAt = &stamped
	}
	return nil
}
