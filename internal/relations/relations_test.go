package relations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/agentcore/internal/types"
)

// fakeReader is an in-memory snapshot: rows maps kind → set of ids,
// children maps (relation, parent id) → child ids.
type fakeReader struct {
	rows     map[types.Kind]map[string]bool
	children map[string][]string
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		rows:     map[types.Kind]map[string]bool{},
		children: map[string][]string{},
	}
}

func (f *fakeReader) addRow(kind types.Kind, id string) {
	if f.rows[kind] == nil {
		f.rows[kind] = map[string]bool{}
	}
	f.rows[kind][id] = true
}

func (f *fakeReader) addChild(rel Relation, parentID, childID string) {
	key := string(rel.Child) + "." + rel.Field + "→" + parentID
	f.children[key] = append(f.children[key], childID)
	f.addRow(rel.Child, childID)
}

func (f *fakeReader) Exists(_ context.Context, kind types.Kind, id string) (bool, error) {
	return f.rows[kind][id], nil
}

func (f *fakeReader) Children(_ context.Context, rel Relation, parentID string) ([]string, error) {
	return f.children[string(rel.Child)+"."+rel.Field+"→"+parentID], nil
}

func rel(child types.Kind, field string, parent types.Kind) Relation {
	for _, r := range DefaultRegistry() {
		if r.Child == child && r.Field == field && r.Parent == parent {
			return r
		}
	}
	panic("relation not in registry")
}

func TestCheckInsertDanglingReference(t *testing.T) {
	ctx := context.Background()
	reader := newFakeReader()
	reader.addRow(types.KindAgent, "a1")
	engine := NewEngine()

	err := engine.CheckInsert(ctx, reader, []Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: "a1"},
	})
	require.NoError(t, err)

	err = engine.CheckInsert(ctx, reader, []Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: "ghost"},
	})
	var dangling *DanglingReference
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, "agent_id", dangling.Field)
	assert.Equal(t, "ghost", dangling.TargetID)
}

func TestCheckInsertSkipsEmptyForeignKeys(t *testing.T) {
	engine := NewEngine()
	err := engine.CheckInsert(context.Background(), newFakeReader(), []Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: ""},
	})
	assert.NoError(t, err)
}

func TestPlanDeleteCascadesChildrenFirst(t *testing.T) {
	ctx := context.Background()
	reader := newFakeReader()
	reader.addRow(types.KindAgent, "a1")
	reader.addChild(rel(types.KindTask, "agent_id", types.KindAgent), "a1", "t1")
	reader.addChild(rel(types.KindTask, "agent_id", types.KindAgent), "a1", "t2")
	reader.addChild(rel(types.KindTaskDependency, "task_id", types.KindTask), "t2", "d1")
	reader.addChild(rel(types.KindMemory, "agent_id", types.KindAgent), "a1", "m1")
	reader.addChild(rel(types.KindAgentCapability, "agent_id", types.KindAgent), "a1", "c1")

	plan, err := NewEngine().PlanDelete(ctx, reader, types.KindAgent, "a1")
	require.NoError(t, err)
	require.Empty(t, plan.Nullified)

	// Root is last; every child precedes its parent
	position := map[Deletion]int{}
	for i, d := range plan.Deletions {
		position[d] = i
	}
	assert.Equal(t, Deletion{types.KindAgent, "a1"}, plan.Deletions[len(plan.Deletions)-1])
	assert.Less(t, position[Deletion{types.KindTaskDependency, "d1"}], position[Deletion{types.KindTask, "t2"}])
	assert.Less(t, position[Deletion{types.KindTask, "t1"}], position[Deletion{types.KindAgent, "a1"}])
	assert.Contains(t, plan.Deletions, Deletion{types.KindMemory, "m1"})
	assert.Contains(t, plan.Deletions, Deletion{types.KindAgentCapability, "c1"})
	assert.Len(t, plan.Deletions, 6)
}

// An edge referenced from either endpoint is deleted once
func TestPlanDeleteDeduplicatesEdgeRows(t *testing.T) {
	ctx := context.Background()
	reader := newFakeReader()
	reader.addRow(types.KindAgent, "a1")
	taskRel := rel(types.KindTask, "agent_id", types.KindAgent)
	reader.addChild(taskRel, "a1", "t1")
	reader.addChild(taskRel, "a1", "t2")
	// d1 hangs off both endpoints: t1 depends on t2
	reader.addChild(rel(types.KindTaskDependency, "task_id", types.KindTask), "t1", "d1")
	reader.addChild(rel(types.KindTaskDependency, "depends_on_task_id", types.KindTask), "t2", "d1")

	plan, err := NewEngine().PlanDelete(ctx, reader, types.KindAgent, "a1")
	require.NoError(t, err)

	count := 0
	for _, d := range plan.Deletions {
		if d == (Deletion{types.KindTaskDependency, "d1"}) {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPlanDeleteRestrictConflict(t *testing.T) {
	ctx := context.Background()
	reader := newFakeReader()
	reader.addRow(types.KindAgent, "a1")
	reader.addChild(rel(types.KindConversation, "agent_id", types.KindAgent), "a1", "conv1")

	_, err := NewEngine().PlanDelete(ctx, reader, types.KindAgent, "a1")
	var conflict *ReferentialConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, types.KindConversation, conflict.Relation.Child)
	assert.Equal(t, 1, conflict.Count)
}

func TestPlanDeleteRestrictUser(t *testing.T) {
	ctx := context.Background()
	reader := newFakeReader()
	reader.addRow(types.KindUser, "u1")
	reader.addChild(rel(types.KindConversation, "user_id", types.KindUser), "u1", "conv1")

	_, err := NewEngine().PlanDelete(ctx, reader, types.KindUser, "u1")
	var conflict *ReferentialConflict
	require.ErrorAs(t, err, &conflict)

	// A user nothing references deletes cleanly
	reader2 := newFakeReader()
	reader2.addRow(types.KindUser, "u2")
	plan, err := NewEngine().PlanDelete(ctx, reader2, types.KindUser, "u2")
	require.NoError(t, err)
	assert.Equal(t, []Deletion{{types.KindUser, "u2"}}, plan.Deletions)
}

// Re-tagging a relation to set-null yields nullify obligations instead of
// deletions or conflicts
func TestPlanDeleteSetNullPolicy(t *testing.T) {
	registry := DefaultRegistry()
	for i, r := range registry {
		if r.Child == types.KindConversation && r.Field == "agent_id" {
			registry[i].OnDelete = SetNull
		}
	}
	engine := NewEngine(registry...)

	ctx := context.Background()
	reader := newFakeReader()
	reader.addRow(types.KindAgent, "a1")
	reader.addChild(Relation{Child: types.KindConversation, Field: "agent_id", Parent: types.KindAgent, OnDelete: SetNull}, "a1", "conv1")

	plan, err := engine.PlanDelete(ctx, reader, types.KindAgent, "a1")
	require.NoError(t, err)
	assert.Equal(t, []Nullify{{Kind: types.KindConversation, ID: "conv1", Field: "agent_id"}}, plan.Nullified)
	assert.Equal(t, []Deletion{{types.KindAgent, "a1"}}, plan.Deletions)
}
