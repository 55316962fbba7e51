// Package chatagent implements the Chat Agent's concrete decision
// policy: the spec §4.7 ShouldRespond order and the §4.7.1 intent
// classifier. Everything else — the ReAct loop, action dispatch,
// streaming, and the decision handlers themselves (like/oppose/
// ask_human/delegate/silent) — is the Actor Base engine's job; Hooks
// embeds actor.BaseHooks and overrides only ShouldRespond.
package chatagent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/actor"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// questionKeywords is the fixed substring set that classifies a user
// message as a question for the default-action fallback in ShouldRespond
// step 5.
var questionKeywords = []string{
	"为什么", "怎么", "如何", "能否", "是否", "吗", "么", "多少", "哪", "哪里", "哪个", "？", "?",
}

// Hooks is the Chat Agent's Hooks implementation.
type Hooks struct {
	actor.BaseHooks
}

// New returns a ready-to-use Chat Agent Hooks value.
func New() Hooks {
	return Hooks{}
}

// ShouldRespond implements spec §4.7's six-step decision order.
func (Hooks) ShouldRespond(ctx context.Context, e *actor.Engine, topic models.Topic, msg models.Message) (actionchain.ResponseDecision, error) {
	agent := e.Agent()

	if msg.MentionsAgent(agent.AgentID) {
		return actionchain.ResponseDecision{Action: actionchain.ResponseReply, Reason: "被 @ 提及"}, nil
	}

	if topic.SessionType == models.SessionPrivateChat {
		return actionchain.ResponseDecision{Action: actionchain.ResponseReply, NeedsThinking: false}, nil
	}

	if topic.SessionType == models.SessionAgent && responseMode(agent) != "persona" {
		return actionchain.ResponseDecision{Action: actionchain.ResponseReply, NeedsThinking: false}, nil
	}

	if msg.SenderType == models.SenderAgent {
		reason := "来自其他 agent 的消息"
		if strings.Contains(msg.Content, "@human") {
			reason = "其他 agent 正在请求人工介入"
		}
		return actionchain.ResponseDecision{Action: actionchain.ResponseSilent, Reason: reason}, nil
	}

	defaultAction := actionchain.ResponseSilent
	if isQuestion(msg.Content) {
		defaultAction = actionchain.ResponseReply
	}

	return classifyIntent(ctx, e, agent, msg, defaultAction)
}

func responseMode(agent models.Agent) string {
	persona, ok := agent.Ext.Get("persona").(map[string]any)
	if !ok {
		return ""
	}
	mode, _ := persona["responseMode"].(string)
	return mode
}

func isQuestion(content string) bool {
	for _, kw := range questionKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// classifierResult is the strict {action, agent_id?} JSON shape the
// classifier prompt is instructed to return.
type classifierResult struct {
	Action  string `json:"action"`
	AgentID string `json:"agent_id"`
}

// classifyIntent runs the §4.7.1 non-streamed intent classifier and maps
// its verdict onto a ResponseDecision, falling back to defaultAction on
// any parse failure or an invalid delegate target.
func classifyIntent(ctx context.Context, e *actor.Engine, agent models.Agent, msg models.Message, defaultAction actionchain.ResponseAction) (actionchain.ResponseDecision, error) {
	persona := truncateRunes(agent.SystemPrompt, 800)

	abilities := e.AgentAbilities()
	var peers []string
	for _, p := range e.Participants() {
		if p.ParticipantType != "agent" || p.ParticipantID == agent.AgentID {
			continue
		}
		ability := abilities[p.ParticipantID]
		if ability == "" {
			ability = truncateRunes(p.SystemPrompt, 80)
		}
		peers = append(peers, p.ParticipantID+": "+ability)
	}

	system := "你是一个意图分类器。根据用户消息和当前 agent 的角色，判断应采取的动作。" +
		"只能输出严格 JSON，格式为 {\"action\": \"reply|like|oppose|silent|ask_human|delegate\", \"agent_id\": \"可选\"}，不要输出其他内容。"

	var sb strings.Builder
	sb.WriteString("当前 agent：" + agent.Name + "\n")
	sb.WriteString("人设（截断）：" + persona + "\n")
	if len(peers) > 0 {
		sb.WriteString("其他可委派的 agent：\n" + strings.Join(peers, "\n") + "\n")
	}
	sb.WriteString("用户消息：" + msg.Content + "\n")
	sb.WriteString("默认动作：" + string(defaultAction) + "\n")

	raw, err := e.CompleteSync(ctx, system, sb.String())
	if err != nil {
		return fallback(defaultAction, "intent classifier error: "+err.Error()), nil
	}

	result, ok := parseClassifierJSON(raw)
	if !ok {
		return fallback(defaultAction, "intent classifier returned unparsable output"), nil
	}

	switch actionchain.ResponseAction(result.Action) {
	case actionchain.ResponseReply:
		return actionchain.ResponseDecision{Action: actionchain.ResponseReply}, nil
	case actionchain.ResponseLike:
		return actionchain.ResponseDecision{Action: actionchain.ResponseLike}, nil
	case actionchain.ResponseOppose:
		return actionchain.ResponseDecision{Action: actionchain.ResponseOppose}, nil
	case actionchain.ResponseAskHuman:
		return actionchain.ResponseDecision{Action: actionchain.ResponseAskHuman}, nil
	case actionchain.ResponseDelegate:
		if !participantPresent(e.Participants(), result.AgentID) {
			return fallback(defaultAction, "delegate target not a present participant"), nil
		}
		return actionchain.ResponseDecision{Action: actionchain.ResponseDelegate, DelegateTo: result.AgentID}, nil
	case actionchain.ResponseSilent:
		return actionchain.ResponseDecision{Action: actionchain.ResponseSilent}, nil
	default:
		return fallback(defaultAction, "intent classifier returned unknown action"), nil
	}
}

func fallback(action actionchain.ResponseAction, reason string) actionchain.ResponseDecision {
	return actionchain.ResponseDecision{Action: action, Reason: reason}
}

func participantPresent(participants []models.Participant, agentID string) bool {
	if agentID == "" {
		return false
	}
	for _, p := range participants {
		if p.ParticipantID == agentID {
			return true
		}
	}
	return false
}

// parseClassifierJSON locates the first {...} substring in raw and
// strict-JSON-decodes it, per spec §4.7.1's parsing rule.
func parseClassifierJSON(raw string) (classifierResult, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return classifierResult{}, false
	}
	var result classifierResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return classifierResult{}, false
	}
	return result, true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ actor.Hooks = Hooks{}
