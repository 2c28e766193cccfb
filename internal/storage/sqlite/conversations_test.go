package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/meridianlabs/agentcore/internal/relations"
	"github.com/meridianlabs/agentcore/internal/types"
)

func createTestConversation(t *testing.T, store *Store, agentID string) *types.Conversation {
	t.Helper()
	conv := &types.Conversation{AgentID: agentID, UserID: "user-1", Title: "support chat"}
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	return conv
}

// TestConversationLifecycle covers create defaults, update, and listing
func TestConversationLifecycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	agent := createTestAgent(t, store, "host")
	conv := createTestConversation(t, store, agent.ID)

	if conv.Status != types.ConversationActive {
		t.Errorf("Expected default status active, got %q", conv.Status)
	}

	got, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Failed to get conversation: %v", err)
	}
	if got == nil || got.Title != "support chat" {
		t.Errorf("Round trip mismatch: %+v", got)
	}

	err = store.UpdateConversation(ctx, conv.ID, map[string]interface{}{"status": "archived"})
	if err != nil {
		t.Fatalf("Failed to update conversation: %v", err)
	}
	got, _ = store.GetConversation(ctx, conv.ID)
	if got.Status != types.ConversationArchived {
		t.Errorf("Expected archived, got %q", got.Status)
	}

	convs, err := store.ListConversations(ctx, agent.ID)
	if err != nil {
		t.Fatalf("Failed to list conversations: %v", err)
	}
	if len(convs) != 1 {
		t.Errorf("Expected 1 conversation, got %d", len(convs))
	}
}

// TestMessageLogOrdering verifies messages come back in append order
func TestMessageLogOrdering(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	agent := createTestAgent(t, store, "host")
	conv := createTestConversation(t, store, agent.ID)

	contents := []struct {
		role types.MessageRole
		text string
	}{
		{types.RoleUser, "hello"},
		{types.RoleAssistant, "hi, how can I help?"},
		{types.RoleUser, "what is the weather"},
		{types.RoleTool, `{"temp": 21}`},
		{types.RoleAssistant, "21 degrees"},
	}
	for _, c := range contents {
		msg := &types.Message{ConversationID: conv.ID, Role: c.role, Content: c.text}
		if err := store.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}
	}

	msgs, err := store.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("Expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, msg := range msgs {
		if msg.Content != contents[i].text {
			t.Errorf("Message %d out of order: got %q, want %q", i, msg.Content, contents[i].text)
		}
		if msg.Role != contents[i].role {
			t.Errorf("Message %d role mismatch: got %q", i, msg.Role)
		}
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Errorf("Message %d timestamp decreased", i)
		}
	}
}

// TestAppendMessageRejectsDanglingConversation verifies the FK check
func TestAppendMessageRejectsDanglingConversation(t *testing.T) {
	store := setupTestDB(t)

	msg := &types.Message{ConversationID: "ghost", Role: types.RoleUser, Content: "hello?"}
	err := store.AppendMessage(context.Background(), msg)
	var dangling *relations.DanglingReference
	if !errors.As(err, &dangling) {
		t.Errorf("Expected DanglingReference, got %v", err)
	}
}

// TestDeleteConversationCascadesMessages verifies the message log goes with
// its conversation
func TestDeleteConversationCascadesMessages(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	agent := createTestAgent(t, store, "host")
	conv := createTestConversation(t, store, agent.ID)

	for i := 0; i < 3; i++ {
		msg := &types.Message{ConversationID: conv.ID, Role: types.RoleUser, Content: "ping"}
		if err := store.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}
	}

	if err := store.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("Failed to delete conversation: %v", err)
	}
	if got, _ := store.GetConversation(ctx, conv.ID); got != nil {
		t.Error("Expected conversation gone")
	}
	msgs, err := store.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected messages gone, got %d", len(msgs))
	}
}
