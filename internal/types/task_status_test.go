package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatusTransitions(t *testing.T) {
	allowed := map[TaskStatus][]TaskStatus{
		TaskPending: {TaskReady, TaskCancelled},
		TaskReady:   {TaskRunning, TaskCancelled},
		TaskRunning: {TaskSucceeded, TaskFailed, TaskCancelled},
	}

	all := []TaskStatus{TaskPending, TaskReady, TaskRunning, TaskSucceeded, TaskFailed, TaskCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s → %s", from, to)
		}
	}
}

func TestTaskStatusTerminalsHaveNoTransitions(t *testing.T) {
	for _, s := range []TaskStatus{TaskSucceeded, TaskFailed, TaskCancelled} {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.Empty(t, s.ValidTransitions(), "%s should have no outgoing transitions", s)
	}
	for _, s := range []TaskStatus{TaskPending, TaskReady, TaskRunning} {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
		assert.NotEmpty(t, s.ValidTransitions())
	}
}

func TestTaskStatusIsValid(t *testing.T) {
	assert.True(t, TaskPending.IsValid())
	assert.True(t, TaskCancelled.IsValid())
	assert.False(t, TaskStatus("queued").IsValid())
	assert.False(t, TaskStatus("").IsValid())
}
