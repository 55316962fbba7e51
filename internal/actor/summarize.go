package actor

import (
	"context"
	"fmt"
	"strings"
)

// summaryPrompt is the fixed system prompt for memory summarisation
// (spec §4.5.2). It is never parameterised per agent or per topic.
const summaryPrompt = `你是一个对话摘要器。请把以下对话浓缩成可供后续继续对话的「记忆摘要」。
要求：
- 保留关键事实、用户偏好、已做决定、待办事项等。
- 去掉寒暄与重复。
- 输出中文，控制在 400~800 字。
- 只输出摘要正文，不要标题。`

// summarize condenses the older block of History into state.Summary,
// always through the agent's own default LLM regardless of any per-turn
// override in flight (spec §9 Open Question decision): summarisation is
// maintenance work, not a user-facing turn.
func (e *Engine) summarize(ctx context.Context) error {
	keepRecent := e.cfg.SummaryKeepRecent
	history := e.state.History
	if len(history) <= keepRecent {
		return nil
	}

	olderEnd := len(history) - keepRecent
	condenseStart := olderEnd - e.cfg.SummaryMaxCondense
	if condenseStart < 0 {
		condenseStart = 0
	}
	older := history[condenseStart:olderEnd]
	if len(older) < 5 {
		return nil
	}

	lines := make([]string, 0, len(older))
	for _, m := range older {
		content := m.Content
		if r := []rune(content); len(r) > 1200 {
			content = string(r[:1200])
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, content))
	}

	summary, err := e.CompleteSync(ctx, summaryPrompt, strings.Join(lines, "\n"))
	if err != nil {
		return fmt.Errorf("actor: summarise: %w", err)
	}

	e.state.Summary = summary
	e.state.SummaryUntil = older[len(older)-1].MessageID
	return nil
}
