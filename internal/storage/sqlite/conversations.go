package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/types"
)

const conversationColumns = "id, agent_id, user_id, title, status, metadata, created_at, updated_at"

// CreateConversation creates a new conversation between a user and an agent
func (s *Store) CreateConversation(ctx context.Context, conv *types.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.Status == "" {
		conv.Status = types.ConversationActive
	}
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	conv.CreatedAt = ts
	conv.UpdatedAt = ts

	metadata, err := docJSON(conv.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, conversationRefs(conv)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO conversations (id, agent_id, user_id, title, status, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, conv.ID, conv.AgentID, conv.UserID, conv.Title, conv.Status, metadata,
			conv.CreatedAt, conv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		return nil
	})
}

func scanConversation(scan func(dest ...interface{}) error) (*types.Conversation, error) {
	var conv types.Conversation
	var metadata sql.NullString
	if err := scan(&conv.ID, &conv.AgentID, &conv.UserID, &conv.Title, &conv.Status,
		&metadata, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	doc, err := scanDoc(metadata)
	if err != nil {
		return nil, err
	}
	conv.Metadata = doc
	return &conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *Store) GetConversation(ctx context.Context, id string) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id)
	conv, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns an agent's conversations, newest first
func (s *Store) ListConversations(ctx context.Context, agentID string) ([]*types.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE agent_id = ?
		ORDER BY updated_at DESC, id
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

var allowedConversationFields = map[string]bool{
	"title":    true,
	"status":   true,
	"metadata": true,
}

// UpdateConversation updates fields on a conversation
func (s *Store) UpdateConversation(ctx context.Context, id string, updates map[string]interface{}) error {
	old, err := s.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return notFound(types.KindConversation, id)
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{now()}

	for key, value := range updates {
		if !allowedConversationFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}
		switch key {
		case "status":
			if status, ok := value.(string); ok && !types.ConversationStatus(status).IsValid() {
				return fmt.Errorf("invalid conversation status: %s", status)
			}
		case "metadata":
			if doc, ok := value.(types.Doc); ok {
				marshaled, err := docJSON(doc)
				if err != nil {
					return err
				}
				value = marshaled
			}
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, value)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// DeleteConversation deletes a conversation and its message log
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q querier) error {
		reader := s.reader(q)
		ok, err := reader.Exists(ctx, types.KindConversation, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(types.KindConversation, id)
		}

		plan, err := s.engine.PlanDelete(ctx, reader, types.KindConversation, id)
		if err != nil {
			return err
		}
		return applyDeletePlan(ctx, q, plan)
	})
}

// AppendMessage appends a message to a conversation's log. Messages are
// immutable: there is no update or single-message delete operation.
func (s *Store) AppendMessage(ctx context.Context, msg *types.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	msg.CreatedAt = now()

	metadata, err := docJSON(msg.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, messageRefs(msg)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, msg.ID, msg.ConversationID, msg.Role, msg.Content, metadata, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		// Touch the conversation so listings sort by recent activity
		_, err = q.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?",
			msg.CreatedAt, msg.ConversationID)
		return err
	})
}

// ListMessages returns a conversation's log ordered by created_at, then
// insertion order
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, metadata, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*types.Message
	for rows.Next() {
		var msg types.Message
		var metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		doc, err := scanDoc(metadata)
		if err != nil {
			return nil, err
		}
		msg.Metadata = doc
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}
