package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// Agent returns the configuration this engine activated from. Exported
// for Hooks implementations in other packages (e.g. chatagent).
func (e *Engine) Agent() models.Agent {
	return e.agent
}

// Participants returns the current topic roster, as last set by
// topic_participants_updated.
func (e *Engine) Participants() []models.Participant {
	if e.state == nil {
		return nil
	}
	return e.state.Participants
}

// AgentAbilities returns the first-80-chars ability summary per peer
// agent, as maintained by actorstate.UpdateParticipants.
func (e *Engine) AgentAbilities() map[string]string {
	if e.state == nil {
		return nil
	}
	return e.state.AgentAbilities
}

// CompleteSync runs one non-streamed completion against the agent's own
// default LLM (never the §4.5.5 per-turn override chain), collecting the
// full text. Used for maintenance-style calls that are not a user-facing
// reply turn: memory summarisation, the Chat Agent intent classifier.
func (e *Engine) CompleteSync(ctx context.Context, system, user string) (string, error) {
	provider, ok := e.llmRegistry.Get(e.agent.Provider)
	if !ok {
		return "", fmt.Errorf("actor: llm provider %q not registered", e.agent.Provider)
	}
	req := &llm.Request{
		Model:  e.agent.Model,
		System: system,
		Messages: []llm.Message{
			{Role: models.RoleUser, Content: user},
		},
	}
	chunks, err := provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("actor: completion: %w", err)
	}
	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", fmt.Errorf("actor: completion stream: %w", chunk.Error)
		}
		sb.WriteString(chunk.Text)
		if chunk.Done {
			break
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
