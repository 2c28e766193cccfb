package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/meridianlabs/agentcore/internal/relations"
	"github.com/meridianlabs/agentcore/internal/types"
)

// TestCreateTaskRejectsDanglingAgent verifies inserts with missing parents
// fail atomically
func TestCreateTaskRejectsDanglingAgent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	task := &types.Task{AgentID: "no-such-agent", Name: "orphan"}
	err := store.CreateTask(ctx, task, "test-actor")
	var dangling *relations.DanglingReference
	if !errors.As(err, &dangling) {
		t.Fatalf("Expected DanglingReference, got %v", err)
	}
	if dangling.Target != types.KindAgent {
		t.Errorf("Expected agent target, got %s", dangling.Target)
	}

	// Nothing was written
	got, err := store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Error("Expected no task row after rejected insert")
	}
}

// TestDeleteAgentCascades verifies deleting an agent removes its tasks,
// capabilities, memories, and dependency edges in one transaction
func TestDeleteAgentCascades(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	agent := createTestAgent(t, store, "doomed")

	t1 := createTestTask(t, store, agent.ID, "t1")
	t2 := createTestTask(t, store, agent.ID, "t2")
	if err := store.AddDependency(ctx, t2.ID, t1.ID, "test-actor"); err != nil {
		t.Fatalf("Failed to add dependency: %v", err)
	}

	cap := &types.AgentCapability{AgentID: agent.ID, Name: "search"}
	if err := store.AddCapability(ctx, cap); err != nil {
		t.Fatalf("Failed to add capability: %v", err)
	}
	mem := &types.Memory{AgentID: agent.ID, Kind: "fact", Content: "remember me"}
	if err := store.CreateMemory(ctx, mem); err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}

	if err := store.DeleteAgent(ctx, agent.ID, "test-actor"); err != nil {
		t.Fatalf("Failed to delete agent: %v", err)
	}

	if got, _ := store.GetAgent(ctx, agent.ID); got != nil {
		t.Error("Expected agent gone")
	}
	if got, _ := store.GetTask(ctx, t1.ID); got != nil {
		t.Error("Expected task t1 gone")
	}
	if got, _ := store.GetTask(ctx, t2.ID); got != nil {
		t.Error("Expected task t2 gone")
	}
	caps, err := store.GetCapabilities(ctx, agent.ID)
	if err != nil {
		t.Fatalf("Failed to get capabilities: %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("Expected capabilities gone, got %d", len(caps))
	}
	mems, err := store.RecallMemories(ctx, agent.ID, "", 10)
	if err != nil {
		t.Fatalf("Failed to recall memories: %v", err)
	}
	if len(mems) != 0 {
		t.Errorf("Expected memories gone, got %d", len(mems))
	}
}

// TestDeleteAgentRestrictedByConversations verifies live conversations pin
// their agent
func TestDeleteAgentRestrictedByConversations(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	agent := createTestAgent(t, store, "pinned")

	conv := &types.Conversation{AgentID: agent.ID, UserID: "user-1", Title: "chat"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	err := store.DeleteAgent(ctx, agent.ID, "test-actor")
	var conflict *relations.ReferentialConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected ReferentialConflict, got %v", err)
	}
	if conflict.Relation.Child != types.KindConversation {
		t.Errorf("Expected conflict on conversations, got %s", conflict.Relation.Child)
	}

	// The agent survives
	if got, _ := store.GetAgent(ctx, agent.ID); got == nil {
		t.Error("Expected agent to survive rejected delete")
	}

	// After removing the conversation the delete goes through
	if err := store.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("Failed to delete conversation: %v", err)
	}
	if err := store.DeleteAgent(ctx, agent.ID, "test-actor"); err != nil {
		t.Errorf("Expected delete to succeed after unpinning: %v", err)
	}
}

// TestCheckUserDeletable verifies the restrict policy surfaces to the auth
// collaborator
func TestCheckUserDeletable(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	agent := createTestAgent(t, store, "host")

	if err := store.CheckUserDeletable(ctx, "user-1"); err != nil {
		t.Errorf("Expected user with no conversations deletable: %v", err)
	}

	conv := &types.Conversation{AgentID: agent.ID, UserID: "user-1"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	err := store.CheckUserDeletable(ctx, "user-1")
	var conflict *relations.ReferentialConflict
	if !errors.As(err, &conflict) {
		t.Errorf("Expected ReferentialConflict, got %v", err)
	}
}

// TestConversationUserChecked verifies the user directory gates conversation
// creation when configured
func TestConversationUserChecked(t *testing.T) {
	tmp := t.TempDir()
	store, err := New(tmp+"/gated.db", WithUserDirectory(userSet{"known-user": true}))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	agent := createTestAgent(t, store, "host")

	good := &types.Conversation{AgentID: agent.ID, UserID: "known-user"}
	if err := store.CreateConversation(ctx, good); err != nil {
		t.Errorf("Expected known user accepted: %v", err)
	}

	bad := &types.Conversation{AgentID: agent.ID, UserID: "stranger"}
	err = store.CreateConversation(ctx, bad)
	var dangling *relations.DanglingReference
	if !errors.As(err, &dangling) {
		t.Errorf("Expected DanglingReference for unknown user, got %v", err)
	}
}

// userSet is a test double for the external auth collaborator
type userSet map[string]bool

func (u userSet) UserExists(ctx context.Context, id string) (bool, error) {
	return u[id], nil
}

// TestDeleteMissingEntities verifies mutations on absent rows return not found
func TestDeleteMissingEntities(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.DeleteAgent(ctx, "ghost", "test-actor"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for agent, got %v", err)
	}
	if err := store.DeleteTask(ctx, "ghost", "test-actor"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for task, got %v", err)
	}
	if err := store.DeleteMemory(ctx, "ghost"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for memory, got %v", err)
	}
	if err := store.DeleteConversation(ctx, "ghost"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for conversation, got %v", err)
	}
}
