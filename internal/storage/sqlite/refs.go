package sqlite

import (
	"github.com/meridianlabs/agentcore/internal/relations"
	"github.com/meridianlabs/agentcore/internal/types"
)

// Foreign-key extraction per entity, fed to the integrity engine's insert
// check. One entry per declared relation in the registry.

func capabilityRefs(c *types.AgentCapability) []relations.Ref {
	return []relations.Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: c.AgentID},
	}
}

func taskRefs(t *types.Task) []relations.Ref {
	return []relations.Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: t.AgentID},
	}
}

func conversationRefs(c *types.Conversation) []relations.Ref {
	return []relations.Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: c.AgentID},
		{Field: "user_id", Target: types.KindUser, TargetID: c.UserID},
	}
}

func messageRefs(m *types.Message) []relations.Ref {
	return []relations.Ref{
		{Field: "conversation_id", Target: types.KindConversation, TargetID: m.ConversationID},
	}
}

func memoryRefs(m *types.Memory) []relations.Ref {
	return []relations.Ref{
		{Field: "agent_id", Target: types.KindAgent, TargetID: m.AgentID},
	}
}

func knowledgeItemRefs(k *types.KnowledgeItem) []relations.Ref {
	return []relations.Ref{
		{Field: "knowledge_base_id", Target: types.KindKnowledgeBase, TargetID: k.KnowledgeBaseID},
	}
}

func trainingExampleRefs(e *types.TrainingExample) []relations.Ref {
	return []relations.Ref{
		{Field: "model_id", Target: types.KindLearningModel, TargetID: e.ModelID},
	}
}
