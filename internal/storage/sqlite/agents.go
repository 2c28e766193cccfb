package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianlabs/agentcore/internal/types"
)

// CreateAgent creates a new agent
func (s *Store) CreateAgent(ctx context.Context, agent *types.Agent, actor string) error {
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	if agent.Status == "" {
		agent.Status = types.AgentCreated
	}
	if err := agent.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	agent.CreatedAt = ts
	agent.UpdatedAt = ts

	config, err := docJSON(agent.Config)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO agents (id, name, description, kind, status, config, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, agent.ID, agent.Name, agent.Description, agent.Kind, agent.Status, config,
			agent.CreatedAt, agent.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert agent: %w", err)
		}
		return recordEvent(ctx, q, types.KindAgent, agent.ID, types.EventCreated, actor, nil, agent)
	})
}

func scanAgent(scan func(dest ...interface{}) error) (*types.Agent, error) {
	var agent types.Agent
	var config sql.NullString
	if err := scan(&agent.ID, &agent.Name, &agent.Description, &agent.Kind, &agent.Status,
		&config, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
		return nil, err
	}
	doc, err := scanDoc(config)
	if err != nil {
		return nil, err
	}
	agent.Config = doc
	return &agent, nil
}

const agentColumns = "id, name, description, kind, status, config, created_at, updated_at"

// GetAgent retrieves an agent by ID
func (s *Store) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	agent, err := scanAgent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// ListAgents returns all agents, newest first
func (s *Store) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+agentColumns+" FROM agents ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*types.Agent
	for rows.Next() {
		agent, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// Allowed fields for agent updates to prevent SQL injection
var allowedAgentFields = map[string]bool{
	"name":        true,
	"description": true,
	"kind":        true,
	"status":      true,
	"config":      true,
}

// UpdateAgent updates fields on an agent
func (s *Store) UpdateAgent(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	old, err := s.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if old == nil {
		return notFound(types.KindAgent, id)
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{now()}

	for key, value := range updates {
		if !allowedAgentFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}
		switch key {
		case "name":
			if name, ok := value.(string); ok && (name == "" || len(name) > 500) {
				return fmt.Errorf("name must be 1-500 characters")
			}
		case "status":
			if status, ok := value.(string); ok && !types.AgentStatus(status).IsValid() {
				return fmt.Errorf("invalid agent status: %s", status)
			}
		case "config":
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

	return s.withTx(ctx, func(q querier) error {
		query := fmt.Sprintf("UPDATE agents SET %s WHERE id = ?", strings.Join(setClauses, ", "))
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update agent: %w", err)
		}

		eventType := types.EventUpdated
		if _, ok := updates["status"]; ok {
			eventType = types.EventStatusChanged
		}
		return recordEvent(ctx, q, types.KindAgent, id, eventType, actor, old, updates)
	})
}

// DeleteAgent deletes an agent and cascades to its capabilities, tasks (and
// their dependency edges), and memories. Fails with ReferentialConflict
// while conversations still reference the agent.
func (s *Store) DeleteAgent(ctx context.Context, id string, actor string) error {
	return s.withTx(ctx, func(q querier) error {
		reader := s.reader(q)
		ok, err := reader.Exists(ctx, types.KindAgent, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(types.KindAgent, id)
		}

		plan, err := s.engine.PlanDelete(ctx, reader, types.KindAgent, id)
		if err != nil {
			return err
		}
		if err := applyDeletePlan(ctx, q, plan); err != nil {
			return err
		}

		s.log.WithFields(map[string]interface{}{
			"agent_id": id,
			"cascaded": len(plan.Deletions) - 1,
		}).Debug("agent deleted")
		return recordEvent(ctx, q, types.KindAgent, id, types.EventDeleted, actor, plan.Deletions, nil)
	})
}

// AddCapability registers a capability on an agent
func (s *Store) AddCapability(ctx context.Context, cap *types.AgentCapability) error {
	if cap.ID == "" {
		cap.ID = uuid.NewString()
	}
	if err := cap.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	params, err := docJSON(cap.Params)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(q querier) error {
		if err := s.checkInsert(ctx, q, capabilityRefs(cap)); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO agent_capabilities (id, agent_id, name, description, params)
			VALUES (?, ?, ?, ?, ?)
		`, cap.ID, cap.AgentID, cap.Name, cap.Description, params)
		if err != nil {
			return fmt.Errorf("failed to insert capability: %w", err)
		}
		return nil
	})
}

// GetCapabilities returns an agent's capabilities
func (s *Store) GetCapabilities(ctx context.Context, agentID string) ([]*types.AgentCapability, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, name, description, params
		FROM agent_capabilities
		WHERE agent_id = ?
		ORDER BY name
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	defer rows.Close()

	var caps []*types.AgentCapability
	for rows.Next() {
		var c types.AgentCapability
		var params sql.NullString
		if err := rows.Scan(&c.ID, &c.AgentID, &c.Name, &c.Description, &params); err != nil {
			return nil, fmt.Errorf("failed to scan capability: %w", err)
		}
		doc, err := scanDoc(params)
		if err != nil {
			return nil, err
		}
		c.Params = doc
		caps = append(caps, &c)
	}
	return caps, rows.Err()
}

// RemoveCapability deletes a capability by ID
func (s *Store) RemoveCapability(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM agent_capabilities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove capability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(types.KindAgentCapability, id)
	}
	return nil
}
