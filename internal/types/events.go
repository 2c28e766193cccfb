package types

import (
	"errors"
	"time"
)

// ErrNotFound is returned by mutations that target a row that does not exist
var ErrNotFound = errors.New("not found")

// Event represents an audit trail entry. Events are written in the same
// transaction as the mutation they record.
type Event struct {
	ID         int64     `json:"id"`
	EntityKind Kind      `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	EventType  EventType `json:"event_type"`
	Actor      string    `json:"actor"`
	OldValue   *string   `json:"old_value,omitempty"`
	NewValue   *string   `json:"new_value,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventDeleted           EventType = "deleted"
	EventStatusChanged     EventType = "status_changed"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
)

// TaskFilter is used to filter task queries
type TaskFilter struct {
	AgentID  *string
	Status   *TaskStatus
	Priority *int
	Limit    int
}

// Statistics provides aggregate metrics over the store
type Statistics struct {
	TotalAgents        int `json:"total_agents"`
	TotalTasks         int `json:"total_tasks"`
	PendingTasks       int `json:"pending_tasks"`
	RunningTasks       int `json:"running_tasks"`
	SucceededTasks     int `json:"succeeded_tasks"`
	FailedTasks        int `json:"failed_tasks"`
	ReadyTasks         int `json:"ready_tasks"`
	TotalConversations int `json:"total_conversations"`
	TotalMemories      int `json:"total_memories"`
}
