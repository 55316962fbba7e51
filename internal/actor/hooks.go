package actor

import (
	"context"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actorstate"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/capability"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/iteration"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// Hooks is the small set of behaviours a concrete agent type overrides.
// The Actor Base engine drives everything else (dedup, memory budget,
// action dispatch, streaming, ext envelope) identically for every agent
// type; only these four decision points vary, modelled as interfaces
// instead of the original's subclassing.
type Hooks interface {
	// ShouldRespond implements the per-message decision of whether, and
	// how, this agent engages with msg.
	ShouldRespond(ctx context.Context, e *Engine, topic models.Topic, msg models.Message) (actionchain.ResponseDecision, error)

	// PlanActions produces the action steps a ReAct iteration should
	// execute this round. An empty slice means "no tool use, go straight
	// to final-response generation".
	PlanActions(ctx context.Context, e *Engine, ic *iteration.Context) ([]actionchain.ActionStep, error)

	// ShouldContinue decides whether another ReAct iteration should run
	// after the most recently executed action.
	ShouldContinue(ctx context.Context, e *Engine, ic *iteration.Context) bool

	// RegisterBuiltinTools adds this agent type's code-defined tools to
	// reg. New calls it once, when the engine is constructed, before any
	// activation.
	RegisterBuiltinTools(reg *capability.Registry)
}

// BaseHooks is the Actor Base's default behaviour: always reply, plan no
// actions (pure LLM-only path), and apply the spec's one true
// continuation/self-repair rule. Concrete agent types embed BaseHooks and
// override only the methods they need.
type BaseHooks struct{}

// ShouldRespond always replies; worker-style agents without a social
// decision policy engage with every message addressed to their topic.
func (BaseHooks) ShouldRespond(_ context.Context, _ *Engine, _ models.Topic, _ models.Message) (actionchain.ResponseDecision, error) {
	return actionchain.ResponseDecision{Action: actionchain.ResponseReply}, nil
}

// PlanActions returns no actions: the final-response phase alone produces
// the reply.
func (BaseHooks) PlanActions(_ context.Context, _ *Engine, _ *iteration.Context) ([]actionchain.ActionStep, error) {
	return nil, nil
}

// ShouldContinue implements spec §4.5.3 step 5: continue while pending
// actions remain, or once more after an MCP parameter-error to give the
// model a chance to repair its arguments; otherwise stop.
func (BaseHooks) ShouldContinue(_ context.Context, e *Engine, ic *iteration.Context) bool {
	if ic.HasPendingActions() {
		return true
	}
	last := ic.LastResult()
	if last == nil {
		return false
	}
	if last.Success {
		return false
	}
	if last.ActionType != actionchain.ActionUseMCP {
		return false
	}
	return e.cfg.IsParameterError(last.Error)
}

// RegisterBuiltinTools is a no-op by default.
func (BaseHooks) RegisterBuiltinTools(_ *capability.Registry) {}

var _ Hooks = BaseHooks{}

// historyLoaderAdapter satisfies actorstate.HistoryLoader against the
// context-ful, cursor-returning messagestore.Store/topic.Service
// signature.
type historyLoaderAdapter struct {
	fn func(topicID string, limit int, beforeID string) ([]models.Message, bool, error)
}

func (a historyLoaderAdapter) GetMessagesPaginated(topicID string, limit int, beforeID string) ([]models.Message, bool, error) {
	return a.fn(topicID, limit, beforeID)
}

var _ actorstate.HistoryLoader = historyLoaderAdapter{}
