package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/types"
)

// CreateKnowledgeBase creates a shared knowledge base
func (s *Store) CreateKnowledgeBase(ctx context.Context, kb *types.KnowledgeBase) error {
	if kb.ID == "" {
		kb.ID = uuid.NewString()
	}
	if err := kb.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	kb.CreatedAt = ts
	kb.UpdatedAt = ts

	config, err := docJSON(kb.Config)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_bases (id, name, description, kind, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, kb.ID, kb.Name, kb.Description, kb.Kind, config, kb.CreatedAt, kb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge base: %w", err)
	}
	return nil
}

func scanKnowledgeBase(scan func(dest ...interface{}) error) (*types.KnowledgeBase, error) {
	var kb types.KnowledgeBase
	var config sql.NullString
	if err := scan(&kb.ID, &kb.Name, &kb.Description, &kb.Kind, &config,
		&kb.CreatedAt, &kb.UpdatedAt); err != nil {
		return nil, err
	}
	doc, err := scanDoc(config)
	if err != nil {
		return nil, err
	}
	kb.Config = doc
	return &kb, nil
}

// GetKnowledgeBase retrieves a knowledge base by ID
func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (*types.KnowledgeBase, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, kind, config, created_at, updated_at
		FROM knowledge_bases WHERE id = ?
	`, id)
	kb, err := scanKnowledgeBase(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge base: %w", err)
	}
	return kb, nil
}

// ListKnowledgeBases returns all knowledge bases
func (s *Store) ListKnowledgeBases(ctx context.Context) ([]*types.KnowledgeBase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, kind, config, created_at, updated_at
		FROM knowledge_bases ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge bases: %w", err)
	}
	defer rows.Close()

	var kbs []*types.KnowledgeBase
	for rows.Next() {
		kb, err := scanKnowledgeBase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge base: %w", err)
		}
		kbs = append(kbs, kb)
	}
	return kbs, rows.Err()
}

// DeleteKnowledgeBase deletes a knowledge base and all its items
func (s *Store) DeleteKnowledgeBase(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q querier) error {
		reader := s.reader(q)
		ok, err := reader.Exists(ctx, types.KindKnowledgeBase, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(types.KindKnowledgeBase, id)
		}

		plan, err := s.engine.PlanDelete(ctx, reader, types.KindKnowledgeBase, id)
		if err != nil {
			return err
		}
		return applyDeletePlan(ctx, q, plan)
	})
}

// AddKnowledgeItem adds an item to a knowledge base
func (s *Store) AddKnowledgeItem(ctx context.Context, item *types.KnowledgeItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	item.CreatedAt = ts
	item.UpdatedAt = ts

	metadata, err := docJSON(item.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, knowledgeItemRefs(item)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO knowledge_items (id, knowledge_base_id, kind, content, embedding, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, item.ID, item.KnowledgeBaseID, item.Kind, item.Content, item.Embedding,
			metadata, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert knowledge item: %w", err)
		}
		return nil
	})
}

// ListKnowledgeItems returns a knowledge base's items, oldest first
func (s *Store) ListKnowledgeItems(ctx context.Context, knowledgeBaseID string) ([]*types.KnowledgeItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, knowledge_base_id, kind, content, embedding, metadata, created_at, updated_at
		FROM knowledge_items
		WHERE knowledge_base_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, knowledgeBaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge items: %w", err)
	}
	defer rows.Close()

	var items []*types.KnowledgeItem
	for rows.Next() {
		var item types.KnowledgeItem
		var metadata sql.NullString
		if err := rows.Scan(&item.ID, &item.KnowledgeBaseID, &item.Kind, &item.Content,
			&item.Embedding, &metadata, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge item: %w", err)
		}
		doc, err := scanDoc(metadata)
		if err != nil {
			return nil, err
		}
		item.Metadata = doc
		items = append(items, &item)
	}
	return items, rows.Err()
}

// DeleteKnowledgeItem removes a single item
func (s *Store) DeleteKnowledgeItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM knowledge_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(types.KindKnowledgeItem, id)
	}
	return nil
}
