// Package iteration holds IterationContext, the per-message processing
// state threaded through one ReAct pass: planned actions, executed
// results, the UI process-step trace, execution logs, and the action-plan
// cursor.
package iteration

import (
	"time"

	"github.com/TIZ36/ai-chatbotee-sub000/internal/actionchain"
	"github.com/TIZ36/ai-chatbotee-sub000/pkg/models"
)

// DefaultMaxIterations is the ReAct loop's default iteration ceiling.
const DefaultMaxIterations = 10

// ProcessStepType is the closed set of UI-facing node kinds an agent_mind
// trace can contain.
type ProcessStepType string

const (
	StepThinking     ProcessStepType = "thinking"
	StepMCPSelection ProcessStepType = "mcp_selection"
	StepIteration    ProcessStepType = "iteration"
	StepDecision     ProcessStepType = "decision"
	StepPlanning     ProcessStepType = "planning"
	StepReflection   ProcessStepType = "reflection"
)

// ProcessStep is one node in the agent_mind UI trace.
type ProcessStep struct {
	ID        string          `json:"id"`
	Type      ProcessStepType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status"`
	Title     string          `json:"title"`
	Content   string          `json:"content,omitempty"`
	Duration  *time.Duration  `json:"duration,omitempty"`
	MCP       *MCPStepInfo    `json:"mcp,omitempty"`
	Iteration *IterationInfo  `json:"iteration,omitempty"`
	Decision  *DecisionInfo   `json:"decision,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// MCPStepInfo annotates a ProcessStep of type mcp_selection.
type MCPStepInfo struct {
	Server     string         `json:"server"`
	ServerName string         `json:"serverName"`
	ToolName   string         `json:"toolName"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// IterationInfo annotates a ProcessStep of type iteration.
type IterationInfo struct {
	Round    int  `json:"round"`
	MaxRound int  `json:"maxRounds"`
	IsFinal  bool `json:"isFinal"`
}

// DecisionInfo annotates a ProcessStep of type decision.
type DecisionInfo struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// LogEntryType mirrors the execution_log event's type field.
type LogEntryType string

const (
	LogInfo     LogEntryType = "info"
	LogStep     LogEntryType = "step"
	LogTool     LogEntryType = "tool"
	LogLLM      LogEntryType = "llm"
	LogSuccess  LogEntryType = "success"
	LogError    LogEntryType = "error"
	LogThinking LogEntryType = "thinking"
)

// LogEntry is one granular execution_log event.
type LogEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      LogEntryType    `json:"type"`
	Message   string          `json:"message"`
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Detail    string          `json:"detail,omitempty"`
	Duration  *time.Duration  `json:"duration,omitempty"`
}

// Context is the per-message processing state machine. ReplyMessageID is
// fixed once, at construction, and reused for every streaming chunk and
// the final agent_stream_done event for this message.
type Context struct {
	OriginalMessage models.Message
	ReplyMessageID  string

	Iteration    int
	MaxIterations int

	PlannedActions []actionchain.ActionStep
	ExecutedResults []actionchain.ActionResult

	ProcessSteps   []ProcessStep
	ExecutionLogs  []LogEntry

	ToolResultsText string
	MCPMedia        []models.MediaItem

	ActionPlan             []actionchain.ActionStep
	PlanIndex              int
	PlanAccumulatedContent string

	UserSelectedLLMConfigID string
	UserSelectedModel       string

	ActionChainID    string
	ChainStepIndex   int
	InheritedChain   bool

	IsInterrupted bool
}

// New builds a fresh Context for processing msg, generating a reply
// message id up front via idGen.
func New(msg models.Message, idGen func() string, maxIterations int) *Context {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Context{
		OriginalMessage: msg,
		ReplyMessageID:  idGen(),
		MaxIterations:   maxIterations,
	}
}

// AppendExecutedResult records a result, enforcing the
// len(ExecutedResults) <= len(PlannedActions) invariant at the call site —
// callers must only invoke this after appending the matching planned
// action.
func (c *Context) AppendExecutedResult(r actionchain.ActionResult) {
	c.ExecutedResults = append(c.ExecutedResults, r)
}

// HasPendingActions reports whether more planned actions remain unexecuted.
func (c *Context) HasPendingActions() bool {
	return len(c.ExecutedResults) < len(c.PlannedActions)
}

// NextPendingAction returns the next planned action awaiting execution, or
// nil if none remain.
func (c *Context) NextPendingAction() *actionchain.ActionStep {
	if !c.HasPendingActions() {
		return nil
	}
	return &c.PlannedActions[len(c.ExecutedResults)]
}

// LastResult returns the most recently executed result, or nil if none.
func (c *Context) LastResult() *actionchain.ActionResult {
	if len(c.ExecutedResults) == 0 {
		return nil
	}
	return &c.ExecutedResults[len(c.ExecutedResults)-1]
}
