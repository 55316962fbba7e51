package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/internal/iteration"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// executeAction is the §4.5.4 dispatch table: one ActionStep in, one
// ActionResult out. Every branch is terminal for this iteration; looping
// is entirely Hooks.ShouldContinue's decision.
func (e *Engine) executeAction(ctx context.Context, topicMeta models.Topic, msg models.Message, ic *iteration.Context, step actionchain.ActionStep) actionchain.ActionResult {
	switch step.ActionType {
	case actionchain.ActionUseMCP:
		return e.executeMCPAction(ctx, topicMeta, msg, ic, step)
	case actionchain.ActionSelfGen:
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true}
	case actionchain.ActionCallAgent:
		return e.executeCallAgent(ctx, msg, ic, step)
	case actionchain.ActionCallHuman:
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true, Output: "waiting_for_human"}
	case actionchain.ActionAccept:
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true}
	case actionchain.ActionRefuse:
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true, Output: "refused"}
	case actionchain.ActionSelfDecision:
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true, Output: step.Description}
	default:
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: "unknown action type", ErrorType: "business"}
	}
}

// executeMCPAction runs the spec §6.5 execute_mcp_with_llm contract for
// one AG_USE_MCP step, folding its text output into ic.ToolResultsText
// for the next iteration or the final-response prompt.
func (e *Engine) executeMCPAction(ctx context.Context, topicMeta models.Topic, msg models.Message, ic *iteration.Context, step actionchain.ActionStep) actionchain.ActionResult {
	if e.mcp == nil {
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: "mcp executor not configured", ErrorType: "business"}
	}

	llmCfg, err := ResolveLLMConfig(ctx, e.llmConfigs, topicMeta.SessionType, e.agent.LLMConfigID, ic.UserSelectedLLMConfigID, ic.UserSelectedModel)
	if err != nil {
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: err.Error(), ErrorType: "business"}
	}

	input := msg.Content
	if ic.ToolResultsText != "" {
		input = msg.Content + "\n\n" + ic.ToolResultsText
	}

	toolName, _ := step.Params["tool_name"].(string)
	toolArgs, _ := step.Params["tool_args"].(map[string]any)
	if toolName == "" {
		toolName = step.MCPToolName
	}

	mctx, cancel := context.WithTimeout(ctx, e.cfg.MCPCallTimeout)
	defer cancel()

	result, err := e.mcp.ExecuteWithLLM(mctx, MCPExecuteRequest{
		MCPServerID:       step.MCPServerID,
		InputText:         input,
		LLMConfigID:       llmCfg.ID,
		AgentSystemPrompt: e.agent.SystemPrompt,
		OriginalMessage:   msg.Content,
		ForcedToolName:    toolName,
		ForcedToolArgs:    toolArgs,
		EnableToolCalling: true,
		TopicID:           msg.TopicID,
	})
	if err != nil {
		e.appendToolFailure(ic, step.MCPServerID, err.Error())
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: err.Error(), ErrorType: "network"}
	}

	if len(result.Media) > 0 {
		ic.MCPMedia = append(ic.MCPMedia, result.Media...)
	}

	errText := result.Error
	if errText == "" {
		for _, r := range result.Results {
			if r.Error != "" {
				errText = r.Error
				break
			}
		}
	}
	if errText != "" {
		e.appendToolFailure(ic, step.MCPServerID, errText)
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: errText, ErrorType: "business", Output: result.ToolText}
	}

	heading := fmt.Sprintf("[MCP:%s]\n%s", step.MCPServerID, result.ToolText)
	if ic.ToolResultsText == "" {
		ic.ToolResultsText = heading
	} else {
		ic.ToolResultsText += "\n\n" + heading
	}

	return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true, Output: result.ToolText}
}

// appendToolFailure folds a classified-repairable tool failure into
// ic.ToolResultsText, giving the next planning round the context it
// needs to repair its own arguments (spec §4.5.4's self-repair path).
func (e *Engine) appendToolFailure(ic *iteration.Context, serverID, errText string) {
	if !e.cfg.IsParameterError(errText) {
		return
	}
	block := fmt.Sprintf("【工具调用失败 - 需要修复参数】[MCP:%s] %s", serverID, errText)
	if ic.ToolResultsText == "" {
		ic.ToolResultsText = block
	} else {
		ic.ToolResultsText += "\n\n" + block
	}
}

// executeCallAgent implements AG_CALL_AG: lazily create the persisted
// ActionChain on the first hand-off step, then post the @mention message
// carrying the chain linkage the recipient's applyInheritedChain expects.
func (e *Engine) executeCallAgent(ctx context.Context, msg models.Message, ic *iteration.Context, step actionchain.ActionStep) actionchain.ActionResult {
	if step.TargetAgentID == "" {
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: "missing target_agent_id", ErrorType: "business"}
	}

	chainID := ic.ActionChainID
	if chainID == "" {
		chainID = actionchain.NewChainID()
		ic.ActionChainID = chainID
		chain := &actionchain.ActionChain{
			ChainID:       chainID,
			OriginAgentID: e.agent.AgentID,
			OriginTopicID: msg.TopicID,
			Steps:         []actionchain.ActionStep{step},
			CurrentIndex:  0,
			Status:        actionchain.ChainActive,
			CreatedAt:     time.Now(),
		}
		if err := e.chainStore.Save(ctx, chain, 0); err != nil {
			return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: err.Error(), ErrorType: "business"}
		}
	}

	text, _ := step.Params["message"].(string)
	if text == "" {
		text = msg.Content
	}
	targetTopic := step.TargetTopicID
	if targetTopic == "" {
		targetTopic = msg.TopicID
	}

	out := models.Message{
		TopicID:    targetTopic,
		SenderID:   e.agent.AgentID,
		SenderType: models.SenderAgent,
		Role:       models.RoleUser,
		Content:    fmt.Sprintf("@%s %s", step.TargetAgentID, text),
		Mentions:   []string{step.TargetAgentID},
		Ext: models.Ext{
			"action_chain_id":  chainID,
			"chain_step_index": ic.ChainStepIndex,
			"origin_agent_id":  e.agent.AgentID,
			"delegated_to":     step.TargetAgentID,
		},
	}
	if _, err := e.topicSvc.SendMessage(ctx, out); err != nil {
		return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: false, Error: err.Error(), ErrorType: "network"}
	}
	return actionchain.ActionResult{StepID: step.StepID, ActionType: step.ActionType, Success: true, Output: "handed off to " + step.TargetAgentID}
}
