// Package storage defines the repository facade: the only surface other
// subsystems use to read and mutate platform state. Every composite
// operation (create, cascade delete, edge insert, transition) is atomic —
// validation, integrity checks, and graph checks run inside the same
// transaction as the writes they guard.
package storage

import (
	"context"

	"github.com/meridianlabs/agentcore/internal/relations"
	"github.com/meridianlabs/agentcore/internal/storage/sqlite"
	"github.com/meridianlabs/agentcore/internal/types"
)

// Store is the repository facade over the entity store, integrity engine,
// and task graph manager.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, agent *types.Agent, actor string) error
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
	ListAgents(ctx context.Context) ([]*types.Agent, error)
	UpdateAgent(ctx context.Context, id string, updates map[string]interface{}, actor string) error
	DeleteAgent(ctx context.Context, id string, actor string) error

	// Agent capabilities
	AddCapability(ctx context.Context, cap *types.AgentCapability) error
	GetCapabilities(ctx context.Context, agentID string) ([]*types.AgentCapability, error)
	RemoveCapability(ctx context.Context, id string) error

	// Tasks
	CreateTask(ctx context.Context, task *types.Task, actor string) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	SearchTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error)
	UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) error
	DeleteTask(ctx context.Context, id string, actor string) error
	TransitionTask(ctx context.Context, id string, to types.TaskStatus, actor string) error
	ReadyTasks(ctx context.Context, agentID string) ([]*types.Task, error)

	// Task dependencies
	AddDependency(ctx context.Context, taskID, dependsOnID, actor string) error
	RemoveDependency(ctx context.Context, taskID, dependsOnID, actor string) error
	GetDependencies(ctx context.Context, taskID string) ([]*types.Task, error)
	GetDependents(ctx context.Context, taskID string) ([]*types.Task, error)

	// Conversations and their append-only message log
	CreateConversation(ctx context.Context, conv *types.Conversation) error
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)
	ListConversations(ctx context.Context, agentID string) ([]*types.Conversation, error)
	UpdateConversation(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg *types.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*types.Message, error)

	// Memories
	CreateMemory(ctx context.Context, mem *types.Memory) error
	RecallMemories(ctx context.Context, agentID, kind string, limit int) ([]*types.Memory, error)
	DeleteMemory(ctx context.Context, id string) error

	// Knowledge bases
	CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error
	GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error)
	ListKnowledgeBases(ctx context.Context) ([]*types.KnowledgeBase, error)
	DeleteKnowledgeBase(ctx context.Context, id string) error
	AddKnowledgeItem(ctx context.Context, item *types.KnowledgeItem) error
	ListKnowledgeItems(ctx context.Context, knowledgeBaseID string) ([]*types.KnowledgeItem, error)
	DeleteKnowledgeItem(ctx context.Context, id string) error

	// Learning models
	CreateModel(ctx context.Context, model *types.LearningModel) error
	GetModel(ctx context.Context, id string) (*types.LearningModel, error)
	ListModels(ctx context.Context) ([]*types.LearningModel, error)
	DeleteModel(ctx context.Context, id string) error
	AddTrainingExample(ctx context.Context, ex *types.TrainingExample) error
	ListTrainingExamples(ctx context.Context, modelID string) ([]*types.TrainingExample, error)
	MarkModelTrained(ctx context.Context, id string, metrics types.Doc) error

	// Users are owned by the external auth collaborator; the store only
	// enforces the restrict policy on conversation links.
	CheckUserDeletable(ctx context.Context, userID string) error

	// Audit trail
	GetEvents(ctx context.Context, kind types.Kind, entityID string, limit int) ([]*types.Event, error)

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string

	// Users, when set, lets the store verify user existence on conversation
	// creation. Without it the check is delegated to the auth collaborator.
	Users relations.UserDirectory
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".agentcore/agentcore.db",
	}
}

// NewStore creates a new SQLite-backed store
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}

	var opts []sqlite.Option
	if cfg.Users != nil {
		opts = append(opts, sqlite.WithUserDirectory(cfg.Users))
	}
	return sqlite.New(cfg.Path, opts...)
}
