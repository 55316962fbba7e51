package actor

import (
	"context"
	"fmt"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// LLMConfigRepository resolves stored LLM configuration rows, matching
// spec §6.2's LLMConfigRepository contract.
type LLMConfigRepository interface {
	FindByID(ctx context.Context, id string) (models.LLMConfig, bool, error)
	FindByModel(ctx context.Context, model string) (models.LLMConfig, bool, error)
}

// ResolveLLMConfig implements the spec §4.5.5 priority chain:
//  1. userSelectedLLMConfigID, if set and different from the agent's own
//     default (an explicit override signal).
//  2. userSelectedModel, looked up by model name among enabled configs.
//  3. the agent's session-default llm_config_id.
//  4. failure — no silent defaulting.
//
// Steps 1-2 are disabled outside session_type=='agent': per-agent
// personas must stay consistent in group chats and private_chat turns,
// so only an agent-only 1:1 session honours a per-turn override.
func ResolveLLMConfig(ctx context.Context, repo LLMConfigRepository, sessionType models.SessionType, agentDefaultLLMConfigID, userSelectedLLMConfigID, userSelectedModel string) (models.LLMConfig, error) {
	allowOverride := sessionType == models.SessionAgent

	if allowOverride && userSelectedLLMConfigID != "" && userSelectedLLMConfigID != agentDefaultLLMConfigID {
		cfg, ok, err := repo.FindByID(ctx, userSelectedLLMConfigID)
		if err != nil {
			return models.LLMConfig{}, fmt.Errorf("actor: resolve llm config by id: %w", err)
		}
		if ok && cfg.Enabled {
			return cfg, nil
		}
	}

	if allowOverride && userSelectedModel != "" {
		cfg, ok, err := repo.FindByModel(ctx, userSelectedModel)
		if err != nil {
			return models.LLMConfig{}, fmt.Errorf("actor: resolve llm config by model: %w", err)
		}
		if ok && cfg.Enabled {
			return cfg, nil
		}
	}

	if agentDefaultLLMConfigID != "" {
		cfg, ok, err := repo.FindByID(ctx, agentDefaultLLMConfigID)
		if err != nil {
			return models.LLMConfig{}, fmt.Errorf("actor: resolve agent default llm config: %w", err)
		}
		if ok {
			return cfg, nil
		}
	}

	return models.LLMConfig{}, fmt.Errorf("%w: session_type=%s", ErrNoLLMConfig, sessionType)
}
