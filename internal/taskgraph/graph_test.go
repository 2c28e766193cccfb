package taskgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/agentcore/internal/types"
)

func known(ids ...string) map[string]bool {
	m := map[string]bool{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestCheckEdgeSelfDependency(t *testing.T) {
	err := CheckEdge(nil, known("t1"), "t1", "t1")
	assert.ErrorIs(t, err, ErrSelfDependency)
}

func TestCheckEdgeUnknownTask(t *testing.T) {
	var unknown *UnknownTaskError

	err := CheckEdge(nil, known("t1"), "t1", "ghost")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.ID)

	err = CheckEdge(nil, known("t2"), "ghost", "t2")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.ID)
}

func TestCheckEdgeDetectsCycles(t *testing.T) {
	ids := known("t1", "t2", "t3", "t4")

	tests := []struct {
		name  string
		edges []Edge
		task  string
		dep   string
		cycle bool
	}{
		{
			name:  "first edge never cycles",
			edges: nil,
			task:  "t2", dep: "t1",
		},
		{
			name:  "direct back edge",
			edges: []Edge{{TaskID: "t2", DependsOnTaskID: "t1"}},
			task:  "t1", dep: "t2",
			cycle: true,
		},
		{
			name: "transitive cycle",
			edges: []Edge{
				{TaskID: "t2", DependsOnTaskID: "t1"},
				{TaskID: "t3", DependsOnTaskID: "t2"},
			},
			task: "t1", dep: "t3",
			cycle: true,
		},
		{
			name: "diamond is not a cycle",
			edges: []Edge{
				{TaskID: "t2", DependsOnTaskID: "t1"},
				{TaskID: "t3", DependsOnTaskID: "t1"},
				{TaskID: "t4", DependsOnTaskID: "t2"},
			},
			task: "t4", dep: "t3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEdge(tt.edges, ids, tt.task, tt.dep)
			if tt.cycle {
				var cerr *CycleError
				require.ErrorAs(t, err, &cerr)
				assert.Equal(t, tt.task, cerr.TaskID)
				assert.Equal(t, tt.dep, cerr.DependsOnTaskID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsReady(t *testing.T) {
	task := &types.Task{Status: types.TaskPending}

	assert.True(t, IsReady(task, nil))
	assert.True(t, IsReady(task, []types.TaskStatus{types.TaskSucceeded, types.TaskSucceeded}))
	assert.False(t, IsReady(task, []types.TaskStatus{types.TaskSucceeded, types.TaskRunning}))
	assert.False(t, IsReady(task, []types.TaskStatus{types.TaskFailed}))

	task.Status = types.TaskReady
	assert.True(t, IsReady(task, []types.TaskStatus{types.TaskSucceeded}))

	for _, s := range []types.TaskStatus{types.TaskRunning, types.TaskSucceeded, types.TaskFailed, types.TaskCancelled} {
		task.Status = s
		assert.False(t, IsReady(task, nil), "status %s should never be ready", s)
	}
}

func TestTransitionStampsCompletedAt(t *testing.T) {
	now := time.Now()
	task := &types.Task{Status: types.TaskRunning}

	require.NoError(t, Transition(task, types.TaskSucceeded, now))
	assert.Equal(t, types.TaskSucceeded, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, now, *task.CompletedAt)
	assert.Equal(t, now, task.UpdatedAt)
}

func TestTransitionRejectsIllegalEdges(t *testing.T) {
	task := &types.Task{Status: types.TaskPending}

	var terr *TransitionError
	err := Transition(task, types.TaskSucceeded, time.Now())
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, types.TaskPending, terr.From)
	assert.Equal(t, types.TaskSucceeded, terr.To)

	// Rejected transitions leave the task unchanged
	assert.Equal(t, types.TaskPending, task.Status)
	assert.Nil(t, task.CompletedAt)

	// Unknown target status is also illegal
	err = Transition(task, "archived", time.Now())
	require.ErrorAs(t, err, &terr)
}

func TestTransitionTerminalsAreFinal(t *testing.T) {
	now := time.Now()
	task := &types.Task{Status: types.TaskRunning}
	require.NoError(t, Transition(task, types.TaskFailed, now))
	first := *task.CompletedAt

	var terr *TransitionError
	for _, to := range []types.TaskStatus{types.TaskPending, types.TaskReady, types.TaskRunning, types.TaskSucceeded, types.TaskCancelled} {
		err := Transition(task, to, now.Add(time.Hour))
		require.ErrorAs(t, err, &terr, "failed → %s must be rejected", to)
	}
	assert.Equal(t, first, *task.CompletedAt, "completed_at stamped exactly once")
}

func TestTransitionCancelledFromEveryNonTerminal(t *testing.T) {
	for _, from := range []types.TaskStatus{types.TaskPending, types.TaskReady, types.TaskRunning} {
		task := &types.Task{Status: from}
		require.NoError(t, Transition(task, types.TaskCancelled, time.Now()), "%s → cancelled", from)
		assert.NotNil(t, task.CompletedAt)
	}
}
