package config

import (
	"context"
	"testing"

	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

func TestLLMConfigRepositoryFindByID(t *testing.T) {
	repo := NewLLMConfigRepository([]models.LLMConfig{
		{ID: "default", Provider: "anthropic", Model: "claude-haiku"},
	})

	cfg, ok, err := repo.FindByID(context.Background(), "default")
	if err != nil || !ok {
		t.Fatalf("expected config to be found, err=%v ok=%v", err, ok)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("expected anthropic, got %q", cfg.Provider)
	}

	if _, ok, _ := repo.FindByID(context.Background(), "missing"); ok {
		t.Error("expected missing id to not be found")
	}

	byModel, ok, err := repo.FindByModel(context.Background(), "claude-haiku")
	if err != nil || !ok {
		t.Fatalf("expected config to be found by model, err=%v ok=%v", err, ok)
	}
	if byModel.ID != "default" {
		t.Errorf("expected default, got %q", byModel.ID)
	}

	if _, ok, _ := repo.FindByModel(context.Background(), "missing-model"); ok {
		t.Error("expected missing model to not be found")
	}
}
