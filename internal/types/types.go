package types

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// Doc is an opaque structured document attached to entities (configuration,
// metadata, task input/output). The core stores it as JSON and enforces no
// internal shape; interpretation belongs to the owning feature.
type Doc map[string]interface{}

// ValidationError reports a field-level validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Kind identifies an entity family. Used by the integrity engine's relation
// registry and by the audit trail.
type Kind string

const (
	KindAgent           Kind = "agent"
	KindAgentCapability Kind = "agent_capability"
	KindTask            Kind = "task"
	KindTaskDependency  Kind = "task_dependency"
	KindConversation    Kind = "conversation"
	KindMessage         Kind = "message"
	KindMemory          Kind = "memory"
	KindKnowledgeBase   Kind = "knowledge_base"
	KindKnowledgeItem   Kind = "knowledge_item"
	KindLearningModel   Kind = "learning_model"
	KindTrainingExample Kind = "training_example"

	// KindUser is owned by the external auth collaborator. It appears in the
	// relation registry only so conversation links to it can be policed.
	KindUser Kind = "user"
)

// Agent represents an autonomous agent registered on the platform
type Agent struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Kind        string      `json:"kind"`
	Status      AgentStatus `json:"status"`
	Config      Doc         `json:"config,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Validate checks if the agent has valid field values
func (a *Agent) Validate() error {
	if a.Name == "" {
		return invalidf("name", "name is required")
	}
	if len(a.Name) > 500 {
		return invalidf("name", "name must be 500 characters or less (got %d)", len(a.Name))
	}
	if a.Kind == "" {
		return invalidf("kind", "kind is required")
	}
	if !a.Status.IsValid() {
		return invalidf("status", "unknown agent status %q", a.Status)
	}
	return nil
}

// AgentStatus represents the lifecycle state of an agent
type AgentStatus string

const (
	AgentCreated AgentStatus = "created"
	AgentActive  AgentStatus = "active"
	AgentPaused  AgentStatus = "paused"
	AgentRetired AgentStatus = "retired"
)

// IsValid checks if the agent status value is valid
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentCreated, AgentActive, AgentPaused, AgentRetired:
		return true
	}
	return false
}

// AgentCapability is a named ability owned by exactly one agent. Deleted
// together with its agent.
type AgentCapability struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Params      Doc    `json:"params,omitempty"`
}

// Validate checks if the capability has valid field values
func (c *AgentCapability) Validate() error {
	if c.AgentID == "" {
		return invalidf("agent_id", "agent_id is required")
	}
	if c.Name == "" {
		return invalidf("name", "name is required")
	}
	return nil
}

// Task represents a unit of work assigned to an agent. Status transitions
// follow the state machine in task_status.go; CompletedAt is stamped exactly
// once, when the task reaches a terminal status.
type Task struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agent_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    int        `json:"priority"`
	Input       Doc        `json:"input,omitempty"`
	Output      Doc        `json:"output,omitempty"`
	Metadata    Doc        `json:"metadata,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if t.AgentID == "" {
		return invalidf("agent_id", "agent_id is required")
	}
	if t.Name == "" {
		return invalidf("name", "name is required")
	}
	if len(t.Name) > 500 {
		return invalidf("name", "name must be 500 characters or less (got %d)", len(t.Name))
	}
	if t.Priority < 0 {
		return invalidf("priority", "priority cannot be negative (got %d)", t.Priority)
	}
	if !t.Status.IsValid() {
		return invalidf("status", "unknown task status %q", t.Status)
	}
	if t.Status.IsTerminal() != (t.CompletedAt != nil) {
		return invalidf("completed_at", "completed_at must be set if and only if status is terminal")
	}
	return nil
}

// TaskDependency is a directed edge in the task DAG: TaskID cannot run until
// DependsOnTaskID has succeeded.
type TaskDependency struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	DependsOnTaskID string    `json:"depends_on_task_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks if the dependency edge has valid field values
func (d *TaskDependency) Validate() error {
	if d.TaskID == "" {
		return invalidf("task_id", "task_id is required")
	}
	if d.DependsOnTaskID == "" {
		return invalidf("depends_on_task_id", "depends_on_task_id is required")
	}
	return nil
}

// Conversation is a chat session between a user and an agent. The agent and
// user links are weak: deleting either side is rejected while the
// conversation exists (restrict policy), the conversation is never cascaded.
type Conversation struct {
	ID        string             `json:"id"`
	AgentID   string             `json:"agent_id"`
	UserID    string             `json:"user_id"`
	Title     string             `json:"title,omitempty"`
	Status    ConversationStatus `json:"status"`
	Metadata  Doc                `json:"metadata,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Validate checks if the conversation has valid field values
func (c *Conversation) Validate() error {
	if c.AgentID == "" {
		return invalidf("agent_id", "agent_id is required")
	}
	if c.UserID == "" {
		return invalidf("user_id", "user_id is required")
	}
	if !c.Status.IsValid() {
		return invalidf("status", "unknown conversation status %q", c.Status)
	}
	return nil
}

// ConversationStatus represents the state of a conversation
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// IsValid checks if the conversation status value is valid
func (s ConversationStatus) IsValid() bool {
	return s == ConversationActive || s == ConversationArchived
}

// Message is one entry in a conversation's append-only log. Messages are
// immutable once created; ordering is created_at, then insertion order.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	Metadata       Doc         `json:"metadata,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Validate checks if the message has valid field values
func (m *Message) Validate() error {
	if m.ConversationID == "" {
		return invalidf("conversation_id", "conversation_id is required")
	}
	if !m.Role.IsValid() {
		return invalidf("role", "unknown message role %q", m.Role)
	}
	if m.Content == "" {
		return invalidf("content", "content is required")
	}
	return nil
}

// MessageRole identifies who produced a message
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// IsValid checks if the message role value is valid
func (r MessageRole) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Memory is a long-term recollection owned by an agent. The embedding is an
// opaque blob; similarity search over it belongs to a higher layer.
// LastAccessed is stamped on each read-for-recall.
type Memory struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id"`
	Kind         string     `json:"kind"`
	Content      string     `json:"content"`
	Embedding    []byte     `json:"embedding,omitempty"`
	Metadata     Doc        `json:"metadata,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

// Validate checks if the memory has valid field values
func (m *Memory) Validate() error {
	if m.AgentID == "" {
		return invalidf("agent_id", "agent_id is required")
	}
	if m.Kind == "" {
		return invalidf("kind", "kind is required")
	}
	if m.Content == "" {
		return invalidf("content", "content is required")
	}
	return nil
}

// KnowledgeBase is a top-level container for knowledge items
type KnowledgeBase struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Kind        string    `json:"kind"`
	Config      Doc       `json:"config,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks if the knowledge base has valid field values
func (k *KnowledgeBase) Validate() error {
	if k.Name == "" {
		return invalidf("name", "name is required")
	}
	if k.Kind == "" {
		return invalidf("kind", "kind is required")
	}
	return nil
}

// KnowledgeItem is a single entry in a knowledge base
type KnowledgeItem struct {
	ID              string    `json:"id"`
	KnowledgeBaseID string    `json:"knowledge_base_id"`
	Kind            string    `json:"kind"`
	Content         string    `json:"content"`
	Embedding       []byte    `json:"embedding,omitempty"`
	Metadata        Doc       `json:"metadata,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks if the knowledge item has valid field values
func (k *KnowledgeItem) Validate() error {
	if k.KnowledgeBaseID == "" {
		return invalidf("knowledge_base_id", "knowledge_base_id is required")
	}
	if k.Kind == "" {
		return invalidf("kind", "kind is required")
	}
	if k.Content == "" {
		return invalidf("content", "content is required")
	}
	return nil
}

// LearningModel is a trainable model's registration record
type LearningModel struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Kind          string     `json:"kind"`
	Version       string     `json:"version"`
	Config        Doc        `json:"config,omitempty"`
	Metrics       Doc        `json:"metrics,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastTrainedAt *time.Time `json:"last_trained_at,omitempty"`
}

// Validate checks if the learning model has valid field values.
// Version must be a valid semantic version ("1.2.3" or "v1.2.3").
func (m *LearningModel) Validate() error {
	if m.Name == "" {
		return invalidf("name", "name is required")
	}
	if m.Kind == "" {
		return invalidf("kind", "kind is required")
	}
	if m.Version == "" {
		return invalidf("version", "version is required")
	}
	v := "v" + strings.TrimPrefix(m.Version, "v")
	if !semver.IsValid(v) || semver.Canonical(v) != v {
		return invalidf("version", "%q is not a valid semantic version", m.Version)
	}
	return nil
}

// TrainingExample is one input/output pair recorded against a learning model
type TrainingExample struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"model_id"`
	Input     Doc       `json:"input"`
	Output    Doc       `json:"output"`
	Metadata  Doc       `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks if the training example has valid field values
func (e *TrainingExample) Validate() error {
	if e.ModelID == "" {
		return invalidf("model_id", "model_id is required")
	}
	if len(e.Input) == 0 {
		return invalidf("input", "input is required")
	}
	if len(e.Output) == 0 {
		return invalidf("output", "output is required")
	}
	return nil
}
