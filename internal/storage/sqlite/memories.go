package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/types"
)

// CreateMemory stores a long-term memory for an agent
func (s *Store) CreateMemory(ctx context.Context, mem *types.Memory) error {
	if mem.ID == "" {
		mem.ID = uuid.NewString()
	}
	if err := mem.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	mem.CreatedAt = now()

	metadata, err := docJSON(mem.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, memoryRefs(mem)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO memories (id, agent_id, kind, content, embedding, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, mem.ID, mem.AgentID, mem.Kind, mem.Content, mem.Embedding, metadata, mem.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert memory: %w", err)
		}
		return nil
	})
}

// RecallMemories returns an agent's most recent memories, optionally filtered
// by kind, and stamps last_accessed on the rows it returns. The stamp and the
// read happen in one transaction so a concurrent recall sees a consistent
// access time.
func (s *Store) RecallMemories(ctx context.Context, agentID, kind string, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, agent_id, kind, content, embedding, metadata, created_at, last_accessed
		FROM memories
		WHERE agent_id = ?
	`
	args := []interface{}{agentID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	var memories []*types.Memory
	err := s.withTx(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to recall memories: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var mem types.Memory
			var metadata sql.NullString
			var accessed sql.NullTime
			if err := rows.Scan(&mem.ID, &mem.AgentID, &mem.Kind, &mem.Content,
				&mem.Embedding, &metadata, &mem.CreatedAt, &accessed); err != nil {
				return fmt.Errorf("failed to scan memory: %w", err)
			}
			doc, err := scanDoc(metadata)
			if err != nil {
				return err
			}
			mem.Metadata = doc
			if accessed.Valid {
				mem.LastAccessed = &accessed.Time
			}
			memories = append(memories, &mem)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		ts := now()
		for _, mem := range memories {
			if _, err := q.ExecContext(ctx, "UPDATE memories SET last_accessed = ? WHERE id = ?",
				ts, mem.ID); err != nil {
				return fmt.Errorf("failed to stamp memory access: %w", err)
			}
			mem.LastAccessed = &ts
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return memories, nil
}

// DeleteMemory removes a single memory
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(types.KindMemory, id)
	}
	return nil
}
