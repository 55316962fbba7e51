// Package actor implements the Actor Base engine: the single goroutine
// that owns one agent bound to one topic, its FIFO mailbox, the ReAct
// iteration loop, and the dispatch table for every ActionType. No
// internal locking guards ActorState or IterationContext — an actor is
// single-threaded by construction, per spec §5.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actormanager"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actorstate"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/bus"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/capability"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/iteration"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/llm"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/topic"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// Deps are the Engine's external collaborators. Registry defaults to an
// empty capability.Registry if nil; IDGen defaults to uuid.NewString;
// Logger defaults to slog.Default().
type Deps struct {
	Registry   *capability.Registry
	LLM        *llm.Registry
	MCP        MCPExecutor
	LLMConfigs LLMConfigRepository
	Topic      *topic.Service
	Chains     actionchain.Store
	IDGen      func() string
	Logger     *slog.Logger
}

// Engine is the runtime instance of one agent bound to one topic.
type Engine struct {
	cfg   Config
	agent models.Agent
	hooks Hooks

	registry    *capability.Registry
	llmRegistry *llm.Registry
	mcp         MCPExecutor
	llmConfigs  LLMConfigRepository
	topicSvc    *topic.Service
	chainStore  actionchain.Store
	idGen       func() string
	logger      *slog.Logger

	mu      sync.Mutex
	topicID string
	running bool
	state   *actorstate.State

	mailbox  chan bus.Event
	stopCh   chan struct{}
	stopOnce sync.Once

	processed  int64
	errorCount int64
}

// New constructs an Engine for agent, not yet activated against any
// topic. hooks supplies the agent type's decision policy; pass
// BaseHooks{} for the default worker behaviour.
func New(cfg Config, agent models.Agent, hooks Hooks, deps Deps) *Engine {
	_ = cfg.Validate()
	if hooks == nil {
		hooks = BaseHooks{}
	}
	if deps.IDGen == nil {
		deps.IDGen = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = capability.New()
	}
	hooks.RegisterBuiltinTools(deps.Registry)
	return &Engine{
		cfg:         cfg,
		agent:       agent,
		hooks:       hooks,
		registry:    deps.Registry,
		llmRegistry: deps.LLM,
		mcp:         deps.MCP,
		llmConfigs:  deps.LLMConfigs,
		topicSvc:    deps.Topic,
		chainStore:  deps.Chains,
		idGen:       deps.IDGen,
		logger:      deps.Logger,
		mailbox:     make(chan bus.Event, cfg.MailboxBufferSize),
		stopCh:      make(chan struct{}),
	}
}

// Activate binds the engine to topicID. If it is already running on that
// topic, only the history is refreshed and trigger (if any) is enqueued.
// Otherwise capabilities are expected to already be loaded onto the
// Registry by the caller (agent ext MCP servers, assigned skills,
// RegisterBuiltinTools having run in New); Activate loads history,
// registers with mgr, subscribes on the topic channel, and starts the
// worker goroutine.
func (e *Engine) Activate(ctx context.Context, mgr *actormanager.Manager, topicID string, trigger *models.Message, historyLimit int) error {
	if historyLimit <= 0 {
		historyLimit = e.cfg.HistoryLimit
	}

	e.mu.Lock()
	alreadyRunning := e.running && e.topicID == topicID
	e.mu.Unlock()

	loader := historyLoaderAdapter{fn: func(tID string, limit int, beforeID string) ([]models.Message, bool, error) {
		msgs, hasMore, _, err := e.topicSvc.GetMessagesPaginated(ctx, tID, limit, beforeID)
		return msgs, hasMore, err
	}}

	if alreadyRunning {
		e.state.LoadHistory(loader, topicID, historyLimit)
		if trigger != nil {
			e.OnEvent(topicID, triggerEvent(*trigger))
		}
		return nil
	}

	e.mu.Lock()
	e.topicID = topicID
	e.running = true
	e.mu.Unlock()

	e.state = actorstate.New(topicID)
	e.state.LoadHistory(loader, topicID, historyLimit)

	actorHandle := e.toActor()
	mgr.Register(actorHandle)
	if err := mgr.SubscribeForAgent(actorHandle, topicID); err != nil {
		return fmt.Errorf("actor: subscribe: %w", err)
	}

	go e.run()

	if trigger != nil {
		e.OnEvent(topicID, triggerEvent(*trigger))
	}
	return nil
}

func triggerEvent(msg models.Message) bus.Event {
	return bus.Event{
		Type:      topic.EventNewMessage,
		Timestamp: time.Now(),
		Data:      map[string]any{"data": msg},
	}
}

func (e *Engine) toActor() *actormanager.Actor {
	return &actormanager.Actor{
		AgentID:   e.agent.AgentID,
		OnEvent:   e.OnEvent,
		Stop:      e.Stop,
		IsRunning: e.IsRunning,
		TopicID:   e.TopicID,
		Status:    e.Status,
	}
}

// OnEvent delivers one bus event to the mailbox. Non-blocking: a full
// mailbox drops the event and logs a warning rather than stalling the
// manager's dispatch goroutine.
func (e *Engine) OnEvent(topicID string, ev bus.Event) {
	select {
	case e.mailbox <- ev:
	default:
		e.logger.Warn("actor: mailbox full, dropping event", "agent_id", e.agent.AgentID, "topic_id", topicID, "type", ev.Type)
	}
}

// Stop tears the actor down; safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// IsRunning reports whether the worker goroutine is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// TopicID returns the topic this engine is currently bound to.
func (e *Engine) TopicID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.topicID
}

// Status is the get_pool_status-equivalent introspection payload.
func (e *Engine) Status() map[string]any {
	e.mu.Lock()
	topicID, running := e.topicID, e.running
	e.mu.Unlock()
	return map[string]any{
		"agent_id":   e.agent.AgentID,
		"agent_name": e.agent.Name,
		"topic_id":   topicID,
		"is_running": running,
		"processed":  atomic.LoadInt64(&e.processed),
		"errors":     atomic.LoadInt64(&e.errorCount),
	}
}

// run is the actor's one dedicated worker: it drains the mailbox with a
// 1s-default timeout so Stop is responsive even when idle.
func (e *Engine) run() {
	ctx := context.Background()
	for {
		select {
		case <-e.stopCh:
			return
		case ev := <-e.mailbox:
			e.dispatchEvent(ctx, ev)
		case <-time.After(e.cfg.MailboxIdleTimeout):
		}
	}
}

func (e *Engine) dispatchEvent(ctx context.Context, ev bus.Event) {
	switch ev.Type {
	case topic.EventNewMessage:
		msg, ok := decodeMessage(ev.Data["data"])
		if !ok {
			e.logger.Warn("actor: undecodable new_message payload", "agent_id", e.agent.AgentID)
			return
		}
		e.HandleNewMessage(ctx, msg)
	case topic.EventMessagesRolledBack:
		target := stringFromAny(ev.Data["to_message_id"])
		if target == "" {
			target = stringFromAny(ev.Data["after"])
		}
		if target != "" {
			e.state.ClearAfter(target)
		}
	case topic.EventTopicParticipantsUpdated:
		if participants, ok := decodeParticipants(ev.Data["participants"]); ok {
			e.state.UpdateParticipants(participants)
		}
	}
}

// HandleNewMessage is _handle_new_message: dedup, self-filter, memory
// budget, decision, dispatch.
func (e *Engine) HandleNewMessage(ctx context.Context, msg models.Message) {
	if e.state.IsProcessed(msg.MessageID) {
		return
	}
	e.state.AppendHistory(msg)

	if msg.SenderID == e.agent.AgentID {
		autoTrigger := msg.Ext.Bool("auto_trigger")
		retry := msg.Ext.Bool("retry")
		chainAppend := msg.Ext.Bool("chain_append")
		if !(autoTrigger && (retry || chainAppend)) {
			return
		}
	}

	if e.state.CheckMemoryBudget(e.agent.Model, e.cfg.MemoryBudgetThreshold) {
		if err := e.summarize(ctx); err != nil {
			e.logger.Warn("actor: summarisation failed", "agent_id", e.agent.AgentID, "error", err)
		}
	}

	topicMeta, _, err := e.topicSvc.GetTopic(ctx, msg.TopicID)
	if err != nil {
		e.recordError(ctx, msg, fmt.Errorf("resolve topic: %w", err))
		return
	}

	decision, err := e.hooks.ShouldRespond(ctx, e, topicMeta, msg)
	if err != nil {
		decision = actionchain.ResponseDecision{Action: actionchain.ResponseSilent, Reason: "decision error: " + err.Error()}
	}

	switch decision.Action {
	case actionchain.ResponseReply:
		e.processMessage(ctx, topicMeta, msg)
	case actionchain.ResponseDelegate:
		e.handleDelegateDecision(ctx, msg, decision)
	case actionchain.ResponseLike:
		e.publishReaction(ctx, msg, "like")
	case actionchain.ResponseOppose:
		e.handleOppose(ctx, msg)
	case actionchain.ResponseAskHuman:
		e.handleAskHuman(ctx, msg)
	default:
		e.publishSilent(ctx, msg, decision.Reason)
	}
}

// processMessage runs the ReAct loop (§4.5.3) then generates the final
// response.
func (e *Engine) processMessage(ctx context.Context, topicMeta models.Topic, msg models.Message) {
	ic := iteration.New(msg, e.idGen, e.cfg.MaxIterations)
	ic.UserSelectedLLMConfigID = msg.Ext.String("user_selected_llm_config_id")
	ic.UserSelectedModel = msg.Ext.String("user_selected_model")
	e.applyInheritedChain(ctx, msg, ic)

	e.publishProcessStep(ctx, msg.TopicID, ic, iteration.ProcessStep{
		ID: e.idGen(), Type: iteration.StepThinking, Timestamp: time.Now(), Status: "started", Title: "思考中",
	})
	e.publishEvent(ctx, msg.TopicID, topic.EventAgentThinking, map[string]any{
		"agent_id": e.agent.AgentID, "agent_name": e.agent.Name, "agent_avatar": e.agent.Avatar,
		"message_id": ic.ReplyMessageID, "in_reply_to": msg.MessageID,
	})

	for ic.Iteration = 0; ic.Iteration < ic.MaxIterations; ic.Iteration++ {
		if !ic.HasPendingActions() {
			actions, err := e.hooks.PlanActions(ctx, e, ic)
			if err != nil {
				e.recordError(ctx, msg, fmt.Errorf("plan actions: %w", err))
				return
			}
			if len(actions) == 0 {
				break
			}
			ic.PlannedActions = append(ic.PlannedActions, actions...)
		}

		step := ic.NextPendingAction()
		result := e.executeAction(ctx, topicMeta, msg, ic, *step)
		ic.AppendExecutedResult(result)

		if e.cfg.InterruptPollEveryIteration {
			if interrupted, err := e.topicSvc.CheckInterrupt(ctx, msg.TopicID, e.agent.AgentID); err == nil && interrupted {
				ic.IsInterrupted = true
				_ = e.topicSvc.ClearInterrupt(ctx, msg.TopicID, e.agent.AgentID)
				break
			}
		}

		if !e.hooks.ShouldContinue(ctx, e, ic) {
			break
		}
	}

	e.generateFinalResponse(ctx, topicMeta, msg, ic)
	atomic.AddInt64(&e.processed, 1)
}

// applyInheritedChain implements §4.6 _check_inherited_chain.
func (e *Engine) applyInheritedChain(ctx context.Context, msg models.Message, ic *iteration.Context) {
	chainID := msg.Ext.String("action_chain_id")
	if chainID == "" {
		return
	}
	chain, err := e.chainStore.Load(ctx, chainID)
	if errors.Is(err, actionchain.ErrChainNotFound) {
		e.logger.Warn("actor: action chain not found, proceeding as fresh message", "chain_id", chainID)
		return
	}
	if err != nil {
		e.logger.Warn("actor: action chain load failed, proceeding as fresh message", "chain_id", chainID, "error", err)
		return
	}

	ic.ActionChainID = chainID
	ic.InheritedChain = true
	if idx, ok := msg.Ext.Get("chain_step_index").(float64); ok {
		ic.ChainStepIndex = int(idx)
	} else {
		ic.ChainStepIndex = chain.CurrentIndex
	}
	total := len(chain.Steps)
	ic.ProcessSteps = append(ic.ProcessSteps, iteration.ProcessStep{
		ID: e.idGen(), Type: iteration.StepIteration, Timestamp: time.Now(), Status: "info",
		Title: "action_chain_resumed", Content: fmt.Sprintf("%d/%d", ic.ChainStepIndex+1, total),
	})
	_ = e.topicSvc.PublishActionChainProgress(ctx, msg.TopicID, chainID, ic.ChainStepIndex, total)
}

// recordError implements §4.5.8: persist the user-visible error message
// and emit a compensating agent_stream_done.
func (e *Engine) recordError(ctx context.Context, msg models.Message, err error) {
	atomic.AddInt64(&e.errorCount, 1)
	content := fmt.Sprintf("[错误] %s 无法产生回复: %s", e.agent.Name, err.Error())
	_, sendErr := e.topicSvc.SendMessage(ctx, models.Message{
		TopicID: msg.TopicID, SenderID: e.agent.AgentID, SenderType: models.SenderAgent,
		Role: models.RoleAssistant, Content: content,
		Ext: models.Ext{"error": err.Error()},
	})
	if sendErr != nil {
		e.logger.Error("actor: failed to persist error message", "error", sendErr)
	}
	e.publishEvent(ctx, msg.TopicID, topic.EventAgentStreamDone, map[string]any{
		"agent_id": e.agent.AgentID, "message_id": msg.MessageID, "error": err.Error(),
	})
}

func (e *Engine) publishSilent(ctx context.Context, msg models.Message, reason string) {
	e.publishEvent(ctx, msg.TopicID, topic.EventAgentSilent, map[string]any{
		"agent_id": e.agent.AgentID, "in_reply_to": msg.MessageID, "reason": reason,
	})
}

func (e *Engine) publishReaction(ctx context.Context, msg models.Message, reaction string) {
	e.publishEvent(ctx, msg.TopicID, topic.EventReaction, map[string]any{
		"reaction": reaction, "message_id": msg.MessageID,
		"from_agent_id": e.agent.AgentID, "target_sender_id": msg.SenderID,
	})
}

func (e *Engine) handleOppose(ctx context.Context, msg models.Message) {
	quote := []rune(msg.Content)
	if len(quote) > 120 {
		quote = quote[:120]
	}
	content := fmt.Sprintf("> 引用：%s\n\n我不同意上述观点。", string(quote))
	if _, err := e.topicSvc.SendMessage(ctx, models.Message{
		TopicID: msg.TopicID, SenderID: e.agent.AgentID, SenderType: models.SenderAgent,
		Role: models.RoleAssistant, Content: content, Ext: models.Ext{"quotedMessage": msg.MessageID},
	}); err != nil {
		e.logger.Error("actor: failed to post oppose message", "error", err)
	}
}

func (e *Engine) handleAskHuman(ctx context.Context, msg models.Message) {
	content := fmt.Sprintf("@human 我需要你确认/执行以下事项：%s", msg.Content)
	if _, err := e.topicSvc.SendMessage(ctx, models.Message{
		TopicID: msg.TopicID, SenderID: e.agent.AgentID, SenderType: models.SenderAgent,
		Role: models.RoleAssistant, Content: content, Ext: models.Ext{"needs_human": true},
	}); err != nil {
		e.logger.Error("actor: failed to post ask_human message", "error", err)
	}
}

func (e *Engine) handleDelegateDecision(ctx context.Context, msg models.Message, decision actionchain.ResponseDecision) {
	target := decision.DelegateTo
	if target == "" {
		e.publishSilent(ctx, msg, "delegate target missing")
		return
	}
	content := fmt.Sprintf("@%s %s", target, msg.Content)
	if _, err := e.topicSvc.SendMessage(ctx, models.Message{
		TopicID: msg.TopicID, SenderID: e.agent.AgentID, SenderType: models.SenderAgent,
		Role: models.RoleUser, Content: content, Mentions: []string{target},
		Ext: models.Ext{"origin_agent_id": e.agent.AgentID, "delegated_to": target},
	}); err != nil {
		e.logger.Error("actor: failed to post delegate message", "error", err)
	}
}

func (e *Engine) publishEvent(ctx context.Context, topicID, eventType string, payload map[string]any) {
	if err := e.topicSvc.PublishEvent(ctx, topicID, eventType, payload); err != nil {
		e.logger.Warn("actor: publish failed", "type", eventType, "error", err)
	}
}

func (e *Engine) publishProcessStep(ctx context.Context, topicID string, ic *iteration.Context, step iteration.ProcessStep) {
	ic.ProcessSteps = append(ic.ProcessSteps, step)
	e.publishEvent(ctx, topicID, topic.EventTopicProcessEvent, map[string]any{
		"agent_id": e.agent.AgentID, "phase": "msg_deal", "status": step.Status, "data": step,
	})
}

func decodeMessage(v any) (models.Message, bool) {
	switch t := v.(type) {
	case models.Message:
		return t, true
	case *models.Message:
		if t == nil {
			return models.Message{}, false
		}
		return *t, true
	case map[string]any:
		return roundTripJSON[models.Message](t)
	}
	return models.Message{}, false
}

func decodeParticipants(v any) ([]models.Participant, bool) {
	switch t := v.(type) {
	case []models.Participant:
		return t, true
	case []any:
		return roundTripJSON[[]models.Participant](t)
	}
	return nil, false
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return s
}
