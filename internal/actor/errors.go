package actor

import "errors"

// Sentinel errors for the core's error taxonomy (spec §7). Most of these
// are not fatal: HandleNewMessage treats DedupDrop/SelfMessageDrop as a
// silent early return, and ChainNotFound as "proceed as a fresh message".
var (
	// ErrDedupDrop signals a message was already processed.
	ErrDedupDrop = errors.New("actor: message already processed")

	// ErrSelfMessageDrop signals a message from the actor's own agent
	// without the retry/chain-append escape hatch.
	ErrSelfMessageDrop = errors.New("actor: dropping own message")

	// ErrNoLLMConfig signals the §4.5.5 resolution chain found no usable
	// LLM configuration. The core never falls back to a silent default.
	ErrNoLLMConfig = errors.New("actor: no llm config resolved")

	// ErrCapabilityMissing signals a requested MCP server, skill, or tool
	// was not registered for this actor.
	ErrCapabilityMissing = errors.New("actor: capability not registered")

	// ErrInterrupted signals a user-initiated cancellation ended
	// processing at the next checkpoint.
	ErrInterrupted = errors.New("actor: interrupted")
)
