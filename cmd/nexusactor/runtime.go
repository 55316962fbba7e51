package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actor"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actormanager"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/capability"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/chatagent"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/config"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm/providers"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/mcp"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/messagestore"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/metrics"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/topic"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// runtime holds every live component the server needs across its
// lifetime, so serve.go can build it once and tear it down once.
type runtime struct {
	cfg *config.Config

	bus         bus.Bus
	redisClient *redis.Client
	db          *sql.DB

	topicSvc  *topic.Service
	directory *topic.StaticDirectory
	manager   *actormanager.Manager
	sweeper   *actormanager.IdleSweeper
	mcpMgr    *mcp.Manager
	metrics   *metrics.Metrics

	engines    map[string]*actor.Engine
	registries map[string]*capability.Registry
}

// buildRuntime wires every SPEC_FULL.md component from cfg: the event
// bus, message store, MCP manager, LLM provider registry, and one
// actor.Engine per configured agent.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:        cfg,
		engines:    make(map[string]*actor.Engine),
		registries: make(map[string]*capability.Registry),
	}

	b, err := bus.NewRedisBus(ctx, bus.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect event bus: %w", err)
	}
	rt.bus = b

	rt.redisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rt.redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis for action chains: %w", err)
	}

	store, db, err := buildMessageStore(cfg)
	if err != nil {
		return nil, err
	}
	rt.db = db

	rt.directory = topic.NewStaticDirectory(nil, models.SessionTopicGeneral)
	rt.topicSvc = topic.New(rt.bus, store, rt.directory, rt.redisClient)

	rt.mcpMgr = mcp.NewManager(&cfg.MCP, logger)
	if err := rt.mcpMgr.Start(ctx); err != nil {
		logger.Warn("mcp: one or more servers failed to start", "error", err)
	}

	llmRegistry, err := buildLLMRegistry(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	llmConfigRepo := config.NewLLMConfigRepository(cfg.LLMConfigs)
	mcpExecutor := mcp.NewExecutor(rt.mcpMgr, llmRegistry, llmConfigRepo)
	chainStore := actionchain.NewRedisStore(rt.redisClient)
	rt.manager = actormanager.New(rt.bus, logger)
	rt.metrics = metrics.New()

	for _, agent := range cfg.Agents {
		registry := capability.New()
		mcp.SyncCapability(rt.mcpMgr, registry)

		engine := actor.New(actor.DefaultConfig(), agent, chatagent.New(), actor.Deps{
			Registry:   registry,
			LLM:        llmRegistry,
			MCP:        mcpExecutor,
			LLMConfigs: llmConfigRepo,
			Topic:      rt.topicSvc,
			Chains:     chainStore,
			Logger:     logger.With("agent_id", agent.AgentID),
		})
		rt.engines[agent.AgentID] = engine
		rt.registries[agent.AgentID] = registry
	}

	sweeper, err := actormanager.NewIdleSweeper(rt.manager, "*/5 * * * *", 30*time.Minute, logger)
	if err != nil {
		return nil, fmt.Errorf("build idle sweeper: %w", err)
	}
	rt.sweeper = sweeper
	rt.sweeper.Start()

	return rt, nil
}

// buildMessageStore selects the message store backend per
// config.DatabaseConfig.Driver: "postgres" and "sqlite" both open through
// database/sql (the SQL in internal/messagestore uses $N placeholders,
// which SQLite's own parameter grammar accepts natively); an empty driver
// falls back to an in-memory store.
func buildMessageStore(cfg *config.Config) (messagestore.Store, *sql.DB, error) {
	if cfg.Database.Driver == "" {
		return messagestore.NewMemoryStore(), nil, nil
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	return messagestore.NewSQLStore(db), db, nil
}

// buildLLMRegistry constructs one llm.Provider per enabled provider block
// and registers them under their Provider.Name().
func buildLLMRegistry(ctx context.Context, cfg config.LLMConfig) (*llm.Registry, error) {
	var provs []llm.Provider

	if cfg.Anthropic.Enabled {
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:           cfg.Anthropic.APIKey,
			BaseURL:          cfg.Anthropic.BaseURL,
			DefaultModel:     cfg.Anthropic.DefaultModel,
			DefaultMaxTokens: cfg.Anthropic.DefaultMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		provs = append(provs, p)
	}
	if cfg.OpenAI.Enabled {
		p, err := providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			DefaultModel: cfg.OpenAI.DefaultModel,
			MaxRetries:   cfg.OpenAI.MaxRetries,
			RetryDelay:   cfg.OpenAI.RetryDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		provs = append(provs, p)
	}
	if cfg.Gemini.Enabled {
		p, err := providers.NewGeminiProvider(ctx, providers.GeminiConfig{
			APIKey:       cfg.Gemini.APIKey,
			DefaultModel: cfg.Gemini.DefaultModel,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		provs = append(provs, p)
	}
	if cfg.Bedrock.Enabled {
		p, err := providers.NewBedrockProvider(ctx, providers.BedrockConfig{
			Region:          cfg.Bedrock.Region,
			AccessKeyID:     cfg.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.Bedrock.SecretAccessKey,
			DefaultModel:    cfg.Bedrock.DefaultModel,
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock provider: %w", err)
		}
		provs = append(provs, p)
	}

	return llm.NewRegistry(provs...), nil
}

// activateAll activates every configured agent engine against topicID.
// Activation is idempotent — an already-running engine only refreshes its
// history — so callers may invoke this on every inbound message for a
// topic without tracking which topics have already been primed.
func (rt *runtime) activateAll(ctx context.Context, topicID string) error {
	for agentID, engine := range rt.engines {
		mcp.SyncCapability(rt.mcpMgr, rt.registries[agentID])
		if err := engine.Activate(ctx, rt.manager, topicID, nil, 0); err != nil {
			return fmt.Errorf("activate agent %s: %w", agentID, err)
		}
	}
	rt.metrics.SetActiveActors(len(rt.manager.ActiveAgents()))
	return nil
}

// shutdown tears every component down in reverse dependency order.
func (rt *runtime) shutdown(ctx context.Context) {
	if rt.sweeper != nil {
		rt.sweeper.Stop()
	}
	if rt.manager != nil {
		rt.manager.Shutdown()
	}
	if rt.mcpMgr != nil {
		_ = rt.mcpMgr.Stop()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
	if rt.redisClient != nil {
		_ = rt.redisClient.Close()
	}
	if rt.bus != nil {
		_ = rt.bus.Close()
	}
}
