// Package relations is the referential integrity engine: a declarative
// registry of foreign-key relations with per-relation delete policies, and
// the check/plan operations every mutation path runs before writing.
package relations

import (
	"context"
	"fmt"

	"github.com/meridianlabs/agentcore/internal/types"
)

// Policy determines what happens to child rows when their parent is deleted
type Policy string

const (
	// Cascade deletes child rows in the same atomic operation as the parent
	Cascade Policy = "cascade"
	// Restrict rejects the parent deletion while children reference it
	Restrict Policy = "restrict"
	// SetNull clears the child's foreign key and keeps the row
	SetNull Policy = "set_null"
)

// Relation declares one foreign key: Child.Field references Parent's id
type Relation struct {
	Child    types.Kind
	Field    string
	Parent   types.Kind
	OnDelete Policy
}

func (r Relation) String() string {
	return fmt.Sprintf("%s.%s → %s (%s)", r.Child, r.Field, r.Parent, r.OnDelete)
}

// DefaultRegistry returns the platform's relation set. Conversation links
// are restrict: deleting an agent or user with live conversations is
// rejected, conversation history is never cascaded away. Everything else is
// owned exclusively by its parent and cascades.
func DefaultRegistry() []Relation {
	return []Relation{
		{Child: types.KindAgentCapability, Field: "agent_id", Parent: types.KindAgent, OnDelete: Cascade},
		{Child: types.KindTask, Field: "agent_id", Parent: types.KindAgent, OnDelete: Cascade},
		{Child: types.KindTaskDependency, Field: "task_id", Parent: types.KindTask, OnDelete: Cascade},
		{Child: types.KindTaskDependency, Field: "depends_on_task_id", Parent: types.KindTask, OnDelete: Cascade},
		{Child: types.KindMemory, Field: "agent_id", Parent: types.KindAgent, OnDelete: Cascade},
		{Child: types.KindMessage, Field: "conversation_id", Parent: types.KindConversation, OnDelete: Cascade},
		{Child: types.KindKnowledgeItem, Field: "knowledge_base_id", Parent: types.KindKnowledgeBase, OnDelete: Cascade},
		{Child: types.KindTrainingExample, Field: "model_id", Parent: types.KindLearningModel, OnDelete: Cascade},
		{Child: types.KindConversation, Field: "agent_id", Parent: types.KindAgent, OnDelete: Restrict},
		{Child: types.KindConversation, Field: "user_id", Parent: types.KindUser, OnDelete: Restrict},
	}
}

// Reader is the snapshot read capability the engine checks against. When the
// engine runs inside a store transaction, the Reader is backed by that same
// transaction so checks and writes see one consistent snapshot.
type Reader interface {
	// Exists reports whether a row of the given kind exists
	Exists(ctx context.Context, kind types.Kind, id string) (bool, error)
	// Children returns the ids of child rows whose rel.Field references parentID
	Children(ctx context.Context, rel Relation, parentID string) ([]string, error)
}

// UserDirectory is the external auth collaborator's view of user existence.
// Stores consult it when a relation's parent is KindUser; without one,
// user existence is the collaborator's responsibility and checks pass.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// Ref is one foreign key value on an entity about to be inserted or updated
type Ref struct {
	Field    string
	Target   types.Kind
	TargetID string
}

// DanglingReference reports a foreign key whose target row does not exist
type DanglingReference struct {
	Field    string
	Target   types.Kind
	TargetID string
}

func (e *DanglingReference) Error() string {
	return fmt.Sprintf("dangling reference: %s points at %s %q which does not exist", e.Field, e.Target, e.TargetID)
}

// ReferentialConflict reports a deletion rejected by a restrict relation
type ReferentialConflict struct {
	Relation Relation
	Count    int
}

func (e *ReferentialConflict) Error() string {
	return fmt.Sprintf("referential conflict: %d %s row(s) still reference the %s being deleted",
		e.Count, e.Relation.Child, e.Relation.Parent)
}

// Deletion is one row the cascade closure removes
type Deletion struct {
	Kind types.Kind
	ID   string
}

// Nullify is one foreign key the plan clears instead of deleting the row
type Nullify struct {
	Kind  types.Kind
	ID    string
	Field string
}

// DeletePlan is the full transitive effect of deleting one row. Deletions
// are ordered children-first; the root is always the final entry. The whole
// plan must be applied in a single transaction.
type DeletePlan struct {
	Deletions []Deletion
	Nullified []Nullify
}

// Engine evaluates insert checks and delete plans against a relation registry
type Engine struct {
	registry []Relation
}

// NewEngine creates an integrity engine. With no arguments it uses
// DefaultRegistry; passing relations overrides the registry (used by tests
// and by deployments that re-tag a relation's policy).
func NewEngine(registry ...Relation) *Engine {
	if len(registry) == 0 {
		registry = DefaultRegistry()
	}
	return &Engine{registry: registry}
}

// Registry returns the relations the engine enforces
func (e *Engine) Registry() []Relation {
	return e.registry
}

// CheckInsert verifies that every foreign key on an entity about to be
// written references an existing row. Must run in the same transaction as
// the write.
func (e *Engine) CheckInsert(ctx context.Context, r Reader, refs []Ref) error {
	for _, ref := range refs {
		if ref.TargetID == "" {
			continue // nullable FK left unset (e.g. after set-null)
		}
		ok, err := r.Exists(ctx, ref.Target, ref.TargetID)
		if err != nil {
			return fmt.Errorf("checking %s reference: %w", ref.Field, err)
		}
		if !ok {
			return &DanglingReference{Field: ref.Field, Target: ref.Target, TargetID: ref.TargetID}
		}
	}
	return nil
}

// PlanDelete computes the transitive closure of deleting one row: the
// ordered cascade set, the foreign keys to nullify, or a ReferentialConflict
// if a restrict relation still has live referents.
func (e *Engine) PlanDelete(ctx context.Context, r Reader, kind types.Kind, id string) (*DeletePlan, error) {
	plan := &DeletePlan{}
	seen := map[Deletion]bool{}
	if err := e.planDelete(ctx, r, kind, id, plan, seen); err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Engine) planDelete(ctx context.Context, r Reader, kind types.Kind, id string, plan *DeletePlan, seen map[Deletion]bool) error {
	root := Deletion{Kind: kind, ID: id}
	if seen[root] {
		return nil
	}
	seen[root] = true

	for _, rel := range e.registry {
		if rel.Parent != kind {
			continue
		}
		children, err := r.Children(ctx, rel, id)
		if err != nil {
			return fmt.Errorf("listing %s children: %w", rel.Child, err)
		}
		if len(children) == 0 {
			continue
		}
		switch rel.OnDelete {
		case Cascade:
			for _, childID := range children {
				if err := e.planDelete(ctx, r, rel.Child, childID, plan, seen); err != nil {
					return err
				}
			}
		case Restrict:
			// A child already inside the cascade set does not block the delete
			live := 0
			for _, childID := range children {
				if !seen[Deletion{Kind: rel.Child, ID: childID}] {
					live++
				}
			}
			if live > 0 {
				return &ReferentialConflict{Relation: rel, Count: live}
			}
		case SetNull:
			for _, childID := range children {
				plan.Nullified = append(plan.Nullified, Nullify{Kind: rel.Child, ID: childID, Field: rel.Field})
			}
		default:
			return fmt.Errorf("relation %s has unknown delete policy %q", rel, rel.OnDelete)
		}
	}

	// Children first, root last
	plan.Deletions = append(plan.Deletions, root)
	return nil
}
