// Package sqlite implements the repository facade on SQLite. Each facade
// operation runs in a single transaction; integrity and graph checks read
// through the same transaction so they see the snapshot they guard.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/meridianlabs/agentcore/internal/relations"
	"github.com/meridianlabs/agentcore/internal/types"
)

// Store implements the storage.Store interface using SQLite
type Store struct {
	db     *sql.DB
	engine *relations.Engine
	users  relations.UserDirectory
	log    *logrus.Entry
}

// Option configures a Store
type Option func(*Store)

// WithUserDirectory wires the external auth collaborator so conversation
// user links are existence-checked on insert.
func WithUserDirectory(users relations.UserDirectory) Option {
	return func(s *Store) { s.users = users }
}

// WithLogger overrides the default logger
func WithLogger(log *logrus.Logger) Option {
	return func(s *Store) { s.log = log.WithField("component", "storage") }
}

// New creates a new SQLite-backed store
func New(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for better concurrency; foreign keys on as a backstop behind
	// the integrity engine's own checks
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{
		db:     db,
		engine: relations.NewEngine(),
		log:    logrus.StandardLogger().WithField("component", "storage"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.WithField("path", path).Debug("store opened")
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB, *sql.Tx, and *sql.Conn
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside an IMMEDIATE transaction. IMMEDIATE acquires the
// write lock up front, which serializes concurrent writers: two edge inserts
// that each look acyclic cannot interleave and jointly form a cycle.
//
// We issue raw BEGIN IMMEDIATE on a dedicated connection because
// database/sql's BeginTx has no way to request a transaction mode and the
// sqlite3 driver defaults to DEFERRED.
func (s *Store) withTx(ctx context.Context, fn func(q querier) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// ROLLBACK on context.Background so cleanup happens even if ctx is canceled
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// tables maps entity kinds to their table names. KindUser is absent: users
// live with the external auth collaborator.
var tables = map[types.Kind]string{
	types.KindAgent:           "agents",
	types.KindAgentCapability: "agent_capabilities",
	types.KindTask:            "tasks",
	types.KindTaskDependency:  "task_dependencies",
	types.KindConversation:    "conversations",
	types.KindMessage:         "messages",
	types.KindMemory:          "memories",
	types.KindKnowledgeBase:   "knowledge_bases",
	types.KindKnowledgeItem:   "knowledge_items",
	types.KindLearningModel:   "learning_models",
	types.KindTrainingExample: "training_examples",
}

// txReader adapts a transaction to the integrity engine's snapshot Reader
type txReader struct {
	q     querier
	users relations.UserDirectory
}

func (r *txReader) Exists(ctx context.Context, kind types.Kind, id string) (bool, error) {
	if kind == types.KindUser {
		if r.users == nil {
			// Delegated to the auth collaborator
			return true, nil
		}
		return r.users.UserExists(ctx, id)
	}

	table, ok := tables[kind]
	if !ok {
		return false, fmt.Errorf("unknown entity kind: %s", kind)
	}
	var one int
	err := r.q.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *txReader) Children(ctx context.Context, rel relations.Relation, parentID string) ([]string, error) {
	table, ok := tables[rel.Child]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind: %s", rel.Child)
	}
	rows, err := r.q.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, rel.Field), parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) reader(q querier) *txReader {
	return &txReader{q: q, users: s.users}
}

// checkInsert runs the integrity engine's foreign-key checks inside the
// transaction about to perform the write
func (s *Store) checkInsert(ctx context.Context, q querier, refs []relations.Ref) error {
	return s.engine.CheckInsert(ctx, s.reader(q), refs)
}

// applyDeletePlan executes a cascade plan: nullify obligations first, then
// deletions children-first. Runs inside the caller's transaction.
func applyDeletePlan(ctx context.Context, q querier, plan *relations.DeletePlan) error {
	for _, n := range plan.Nullified {
		table, ok := tables[n.Kind]
		if !ok {
			return fmt.Errorf("unknown entity kind: %s", n.Kind)
		}
		if _, err := q.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = NULL WHERE id = ?", table, n.Field), n.ID); err != nil {
			return fmt.Errorf("failed to nullify %s.%s: %w", table, n.Field, err)
		}
	}
	for _, d := range plan.Deletions {
		table, ok := tables[d.Kind]
		if !ok {
			return fmt.Errorf("unknown entity kind: %s", d.Kind)
		}
		if _, err := q.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), d.ID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

// CheckUserDeletable enforces the restrict policy on the external User
// entity: deletion is rejected while conversations reference the user.
// The auth collaborator calls this before removing a user.
func (s *Store) CheckUserDeletable(ctx context.Context, userID string) error {
	_, err := s.engine.PlanDelete(ctx, s.reader(s.db), types.KindUser, userID)
	return err
}

// recordEvent appends an audit trail entry in the caller's transaction
func recordEvent(ctx context.Context, q querier, kind types.Kind, entityID string, eventType types.EventType, actor string, oldValue, newValue interface{}) error {
	marshal := func(v interface{}) (interface{}, error) {
		if v == nil {
			return nil, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event value: %w", err)
		}
		return string(data), nil
	}
	oldJSON, err := marshal(oldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshal(newValue)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO events (entity_kind, entity_id, event_type, actor, old_value, new_value)
		VALUES (?, ?, ?, ?, ?, ?)
	`, kind, entityID, eventType, actor, oldJSON, newJSON)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// GetEvents returns the audit trail for an entity, newest first
func (s *Store) GetEvents(ctx context.Context, kind types.Kind, entityID string, limit int) ([]*types.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_kind, entity_id, event_type, actor, old_value, new_value, created_at
		FROM events
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, kind, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var ev types.Event
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EntityKind, &ev.EntityID, &ev.EventType, &ev.Actor,
			&oldValue, &newValue, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if oldValue.Valid {
			ev.OldValue = &oldValue.String
		}
		if newValue.Valid {
			ev.NewValue = &newValue.String
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// GetStatistics returns aggregate metrics over the store
func (s *Store) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	stats := &types.Statistics{}
	queries := []struct {
		dst   *int
		query string
	}{
		{&stats.TotalAgents, "SELECT COUNT(*) FROM agents"},
		{&stats.TotalTasks, "SELECT COUNT(*) FROM tasks"},
		{&stats.PendingTasks, "SELECT COUNT(*) FROM tasks WHERE status = 'pending'"},
		{&stats.RunningTasks, "SELECT COUNT(*) FROM tasks WHERE status = 'running'"},
		{&stats.SucceededTasks, "SELECT COUNT(*) FROM tasks WHERE status = 'succeeded'"},
		{&stats.FailedTasks, "SELECT COUNT(*) FROM tasks WHERE status = 'failed'"},
		{&stats.ReadyTasks, "SELECT COUNT(*) FROM ready_tasks"},
		{&stats.TotalConversations, "SELECT COUNT(*) FROM conversations"},
		{&stats.TotalMemories, "SELECT COUNT(*) FROM memories"},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("failed to compute statistics: %w", err)
		}
	}
	return stats, nil
}

// docJSON marshals a Doc for storage; empty docs store as NULL
func docJSON(d types.Doc) (interface{}, error) {
	if d == nil {
		return nil, nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return string(data), nil
}

// scanDoc unmarshals a stored document column
func scanDoc(v sql.NullString) (types.Doc, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var d types.Doc
	if err := json.Unmarshal([]byte(v.String), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return d, nil
}

func notFound(kind types.Kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, types.ErrNotFound)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
