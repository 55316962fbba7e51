// Package actionchain implements ActionStep/ActionChain and the
// Redis-persisted store that lets one agent create a chain of steps and a
// second agent resume it at the next index after an @mention hand-off.
package actionchain

import (
	"time"
)

// ActionType is the closed set of behaviours a planner can emit.
type ActionType string

const (
	ActionUseMCP       ActionType = "AG_USE_MCP"
	ActionSelfGen      ActionType = "AG_SELF_GEN"
	ActionCallAgent    ActionType = "AG_CALL_AG"
	ActionCallHuman    ActionType = "AG_CALL_HUMAN"
	ActionAccept       ActionType = "AG_ACCEPT"
	ActionRefuse       ActionType = "AG_REFUSE"
	ActionSelfDecision ActionType = "AG_SELF_DECISION"
)

// StepStatus tracks an ActionStep through its lifecycle: created by the
// planner, marked running by DoBefore, then completed/error by DoAfter.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// ActionStep is one planned unit of work inside an IterationContext or a
// persisted ActionChain.
type ActionStep struct {
	StepID        string         `json:"step_id"`
	ActionType    ActionType     `json:"action_type"`
	Description   string         `json:"description"`
	Params        map[string]any `json:"params,omitempty"`
	MCPServerID   string         `json:"mcp_server_id,omitempty"`
	MCPToolName   string         `json:"mcp_tool_name,omitempty"`
	TargetAgentID string         `json:"target_agent_id,omitempty"`
	TargetTopicID string         `json:"target_topic_id,omitempty"`
	Status        StepStatus     `json:"status"`
	Result        any            `json:"result,omitempty"`
	Interrupt     bool           `json:"interrupt"`
}

// ActionResult is the outcome of executing one ActionStep.
type ActionResult struct {
	StepID     string     `json:"step_id"`
	ActionType ActionType `json:"action_type"`
	Success    bool       `json:"success"`
	Output     string     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorType  string     `json:"error_type,omitempty"`
}

// ResponseAction is the closed set of decisions ShouldRespond can return.
type ResponseAction string

const (
	ResponseReply     ResponseAction = "reply"
	ResponseSilent    ResponseAction = "silent"
	ResponseDelegate  ResponseAction = "delegate"
	ResponseLike      ResponseAction = "like"
	ResponseOppose    ResponseAction = "oppose"
	ResponseAskHuman  ResponseAction = "ask_human"
)

// ResponseDecision is the outcome of ShouldRespond.
type ResponseDecision struct {
	Action        ResponseAction `json:"action"`
	Reason        string         `json:"reason"`
	DelegateTo    string         `json:"delegate_to,omitempty"`
	NeedsThinking bool           `json:"needs_thinking"`
}

// ChainStatus is the lifecycle state of an ActionChain.
type ChainStatus string

const (
	ChainActive    ChainStatus = "active"
	ChainCompleted ChainStatus = "completed"
	ChainAborted   ChainStatus = "aborted"
)

// ActionChain is the ordered, persistently-identified sequence of
// ActionSteps handed off between agents. current_index never decreases and
// never exceeds len(Steps).
type ActionChain struct {
	ChainID        string       `json:"chain_id"`
	Name           string       `json:"name"`
	OriginAgentID  string       `json:"origin_agent_id"`
	OriginTopicID  string       `json:"origin_topic_id"`
	Steps          []ActionStep `json:"steps"`
	CurrentIndex   int          `json:"current_index"`
	Status         ChainStatus  `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Advance moves CurrentIndex to the next step, clamped to len(Steps), and
// marks the chain completed once every step has been consumed. It never
// decreases the index, enforcing the chain's monotonicity invariant.
func (c *ActionChain) Advance() {
	if c.CurrentIndex < len(c.Steps) {
		c.CurrentIndex++
	}
	if c.CurrentIndex >= len(c.Steps) {
		c.Status = ChainCompleted
	}
}

// CurrentStep returns the step at CurrentIndex, or nil if the chain is
// exhausted.
func (c *ActionChain) CurrentStep() *ActionStep {
	if c.CurrentIndex < 0 || c.CurrentIndex >= len(c.Steps) {
		return nil
	}
	return &c.Steps[c.CurrentIndex]
}

// NewStep builds a pending ActionStep with a fresh step ID.
func NewStep(idGen func() string, actionType ActionType, description string, params map[string]any) ActionStep {
	return ActionStep{
		StepID:      idGen(),
		ActionType:  actionType,
		Description: description,
		Params:      params,
		Status:      StepPending,
	}
}
