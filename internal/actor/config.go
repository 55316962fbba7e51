package actor

import (
	"strings"
	"time"
)

// Config tunes the Actor Base engine. Every field has a spec-mandated
// default; callers only need to set what they want to change.
type Config struct {
	// MaxIterations bounds the ReAct loop per incoming message.
	MaxIterations int

	// MemoryBudgetThreshold is the fraction of a model's max token budget
	// that triggers summarisation before processing continues.
	MemoryBudgetThreshold float64

	// ParameterErrorKeywords classifies an MCP failure as a repairable
	// parameter error. Mixed English/Chinese substrings, matched
	// case-insensitively against the error message. Kept as the
	// authoritative heuristic rather than a structured error-code channel
	// until MCP servers provide one.
	ParameterErrorKeywords []string

	// MCPCallTimeout bounds a single AG_USE_MCP execution.
	MCPCallTimeout time.Duration

	// HistoryLimit is the default number of messages loaded on activation
	// when the caller does not specify one.
	HistoryLimit int

	// RecentHistoryMaxMessages/Chars feed actorstate.GetRecentHistory when
	// assembling the final-response prompt.
	RecentHistoryMaxMessages    int
	RecentHistoryMaxTotalChars  int
	RecentHistoryMaxPerMsgChars int

	// SummaryKeepRecent is the tail length (in messages) kept verbatim
	// during summarisation; the spec allows 5 or 24 depending on caller.
	SummaryKeepRecent int

	// SummaryMaxCondense bounds how many older messages are folded into one
	// summarisation call.
	SummaryMaxCondense int

	// InterruptPollEveryIteration mirrors the spec's "polled once per ReAct
	// turn" interrupt check.
	InterruptPollEveryIteration bool

	// MailboxBufferSize bounds the per-actor mailbox before OnEvent starts
	// dropping events (logged, never blocking the dispatcher).
	MailboxBufferSize int

	// MailboxIdleTimeout is the blocking-dequeue timeout that makes
	// shutdown responsive.
	MailboxIdleTimeout time.Duration
}

// DefaultParameterErrorKeywords is the spec's authoritative, mixed
// English/Chinese substring list for classifying an MCP failure as a
// repairable parameter error.
var DefaultParameterErrorKeywords = []string{
	"required", "missing", "invalid", "parameter", "field", "validation",
	"参数", "必需", "缺少", "无效", "字段", "验证失败", "must", "should",
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:               10,
		MemoryBudgetThreshold:       0.8,
		ParameterErrorKeywords:      append([]string(nil), DefaultParameterErrorKeywords...),
		MCPCallTimeout:              120 * time.Second,
		HistoryLimit:                50,
		RecentHistoryMaxMessages:    10,
		RecentHistoryMaxTotalChars:  8000,
		RecentHistoryMaxPerMsgChars: 2400,
		SummaryKeepRecent:           5,
		SummaryMaxCondense:          80,
		InterruptPollEveryIteration: true,
		MailboxBufferSize:           256,
		MailboxIdleTimeout:          time.Second,
	}
}

// Validate fills in any zero-valued field with its default and reports an
// error for values that can never be made sensible by defaulting.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MemoryBudgetThreshold <= 0 {
		c.MemoryBudgetThreshold = d.MemoryBudgetThreshold
	}
	if len(c.ParameterErrorKeywords) == 0 {
		c.ParameterErrorKeywords = d.ParameterErrorKeywords
	}
	if c.MCPCallTimeout <= 0 {
		c.MCPCallTimeout = d.MCPCallTimeout
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.RecentHistoryMaxMessages <= 0 {
		c.RecentHistoryMaxMessages = d.RecentHistoryMaxMessages
	}
	if c.RecentHistoryMaxTotalChars <= 0 {
		c.RecentHistoryMaxTotalChars = d.RecentHistoryMaxTotalChars
	}
	if c.RecentHistoryMaxPerMsgChars <= 0 {
		c.RecentHistoryMaxPerMsgChars = d.RecentHistoryMaxPerMsgChars
	}
	if c.SummaryKeepRecent <= 0 {
		c.SummaryKeepRecent = d.SummaryKeepRecent
	}
	if c.SummaryMaxCondense <= 0 {
		c.SummaryMaxCondense = d.SummaryMaxCondense
	}
	if c.MailboxBufferSize <= 0 {
		c.MailboxBufferSize = d.MailboxBufferSize
	}
	if c.MailboxIdleTimeout <= 0 {
		c.MailboxIdleTimeout = d.MailboxIdleTimeout
	}
	return nil
}

// IsParameterError reports whether errText matches any configured
// parameter-error keyword, case-insensitively.
func (c Config) IsParameterError(errText string) bool {
	if errText == "" {
		return false
	}
	lower := strings.ToLower(errText)
	for _, kw := range c.ParameterErrorKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
