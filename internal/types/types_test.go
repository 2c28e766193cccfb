package types

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentValidate(t *testing.T) {
	valid := Agent{Name: "researcher", Kind: "llm", Status: AgentActive}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Agent)
		field  string
	}{
		{"missing name", func(a *Agent) { a.Name = "" }, "name"},
		{"name too long", func(a *Agent) { a.Name = strings.Repeat("x", 501) }, "name"},
		{"missing kind", func(a *Agent) { a.Kind = "" }, "kind"},
		{"bad status", func(a *Agent) { a.Status = "sleeping" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := valid
			tt.mutate(&agent)
			err := agent.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAgentStatusIsValid(t *testing.T) {
	for _, s := range []AgentStatus{AgentCreated, AgentActive, AgentPaused, AgentRetired} {
		assert.True(t, s.IsValid(), "status %s should be valid", s)
	}
	assert.False(t, AgentStatus("").IsValid())
	assert.False(t, AgentStatus("deleted").IsValid())
}

func TestTaskValidate(t *testing.T) {
	valid := Task{AgentID: "a1", Name: "index docs", Status: TaskPending, Priority: 2}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Task)
		field  string
	}{
		{"missing agent", func(tk *Task) { tk.AgentID = "" }, "agent_id"},
		{"missing name", func(tk *Task) { tk.Name = "" }, "name"},
		{"negative priority", func(tk *Task) { tk.Priority = -1 }, "priority"},
		{"bad status", func(tk *Task) { tk.Status = "paused" }, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			var verr *ValidationError
			require.ErrorAs(t, task.Validate(), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

// completed_at must be set if and only if the status is terminal
func TestTaskValidateCompletedAt(t *testing.T) {
	now := time.Now()

	task := Task{AgentID: "a1", Name: "t", Status: TaskRunning, CompletedAt: &now}
	var verr *ValidationError
	require.ErrorAs(t, task.Validate(), &verr)
	assert.Equal(t, "completed_at", verr.Field)

	task = Task{AgentID: "a1", Name: "t", Status: TaskSucceeded}
	require.ErrorAs(t, task.Validate(), &verr)
	assert.Equal(t, "completed_at", verr.Field)

	task = Task{AgentID: "a1", Name: "t", Status: TaskSucceeded, CompletedAt: &now}
	require.NoError(t, task.Validate())
}

func TestConversationValidate(t *testing.T) {
	conv := Conversation{AgentID: "a1", UserID: "u1", Status: ConversationActive}
	require.NoError(t, conv.Validate())

	conv.UserID = ""
	var verr *ValidationError
	require.ErrorAs(t, conv.Validate(), &verr)
	assert.Equal(t, "user_id", verr.Field)
}

func TestMessageValidate(t *testing.T) {
	msg := Message{ConversationID: "c1", Role: RoleUser, Content: "hello"}
	require.NoError(t, msg.Validate())

	msg.Role = "moderator"
	var verr *ValidationError
	require.ErrorAs(t, msg.Validate(), &verr)
	assert.Equal(t, "role", verr.Field)

	msg.Role = RoleAssistant
	msg.Content = ""
	require.ErrorAs(t, msg.Validate(), &verr)
	assert.Equal(t, "content", verr.Field)
}

func TestMemoryValidate(t *testing.T) {
	mem := Memory{AgentID: "a1", Kind: "episodic", Content: "saw a thing"}
	require.NoError(t, mem.Validate())

	mem.Kind = ""
	require.Error(t, mem.Validate())
}

func TestLearningModelVersionValidation(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{"1.2.3", true},
		{"v1.2.3", true},
		{"0.1.0", true},
		{"1.2.3-rc.1", true},
		{"1.2", false},
		{"1", false},
		{"latest", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			m := LearningModel{Name: "ranker", Kind: "dspy", Version: tt.version}
			err := m.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTrainingExampleValidate(t *testing.T) {
	ex := TrainingExample{
		ModelID: "m1",
		Input:   Doc{"prompt": "q"},
		Output:  Doc{"answer": "a"},
	}
	require.NoError(t, ex.Validate())

	ex.Input = nil
	var verr *ValidationError
	require.ErrorAs(t, ex.Validate(), &verr)
	assert.Equal(t, "input", verr.Field)

	ex.Input = Doc{"prompt": "q"}
	ex.Output = Doc{}
	require.ErrorAs(t, ex.Validate(), &verr)
	assert.Equal(t, "output", verr.Field)
}
