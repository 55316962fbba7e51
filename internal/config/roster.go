package config

import (
	"context"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// LLMConfigRepository resolves the static LLMConfigs roster by id or
// model name, satisfying both actor.LLMConfigRepository and
// mcp.LLMConfigLookup without either package depending on config.
type LLMConfigRepository struct {
	byID    map[string]models.LLMConfig
	byModel map[string]models.LLMConfig
}

// NewLLMConfigRepository indexes configs by ID and by model for lookup.
// Later entries win ties on model name.
func NewLLMConfigRepository(configs []models.LLMConfig) *LLMConfigRepository {
	byID := make(map[string]models.LLMConfig, len(configs))
	byModel := make(map[string]models.LLMConfig, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
		if c.Model != "" {
			byModel[c.Model] = c
		}
	}
	return &LLMConfigRepository{byID: byID, byModel: byModel}
}

// FindByID implements actor.LLMConfigRepository / mcp.LLMConfigLookup.
func (r *LLMConfigRepository) FindByID(_ context.Context, id string) (models.LLMConfig, bool, error) {
	cfg, ok := r.byID[id]
	return cfg, ok, nil
}

// FindByModel implements actor.LLMConfigRepository.
func (r *LLMConfigRepository) FindByModel(_ context.Context, model string) (models.LLMConfig, bool, error) {
	cfg, ok := r.byModel[model]
	return cfg, ok, nil
}
