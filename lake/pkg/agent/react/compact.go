package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const summaryPromptTemplate = `Summarize the following conversation history concisely. Keep:
- the user's questions
- the tool calls that were made and their important results
- any tables, columns or values that were discovered

Conversation history:
%s

Reply with the summary only.`

// contextSize estimates characters and tokens of the conversation at about four characters per token.
func contextSize(msgs []Message, tools []Tool) (chars, tokens int) {
	for _, m := range msgs {
		if b, err := json.Marshal(m.ToParam()); err == nil {
			chars += len(b)
		}
	}
	for _, t := range tools {
		if b, err := json.Marshal(t); err == nil {
			chars += len(b)
		}
	}
	return chars, chars / 4
}

// compact summarizes the middle of the conversation while it exceeds MaxContextTokens,
// keeping the first message and a shrinking tail of recent ones.
func (a *Agent) compact(ctx context.Context, r *run, tools []Tool, step int) {
	_, tokens := contextSize(r.msgs, tools)
	a.log.Debug("react: context size", "step", step, "tokens_est", tokens)

	for iter := 0; iter < 5 && tokens > a.cfg.MaxContextTokens; iter++ {
		keep := max(10-iter*2, 2)
		if len(r.msgs) <= keep+1 {
			continue
		}
		compacted, err := a.summarize(ctx, r.msgs, keep)
		if errors.Is(err, errNothingToSummarize) {
			continue
		}
		if err != nil {
			a.log.Warn("react: failed to summarize messages", "step", step, "error", err)
			return
		}
		before := tokens
		r.msgs = compacted
		_, tokens = contextSize(r.msgs, tools)
		a.log.Info("react: conversation compacted", "step", step, "keep_recent", keep, "tokens_before", before, "tokens_after", tokens)
		if tokens >= before {
			return
		}
	}
	if tokens > a.cfg.MaxContextTokens {
		a.log.Warn("react: context still exceeds threshold", "step", step, "tokens_est", tokens, "threshold", a.cfg.MaxContextTokens)
	}
}

var errNothingToSummarize = errors.New("no messages to summarize")

// splitPoint returns the index of the first kept message. It moves back past tool results
// so the kept tail never opens with a result whose tool call was summarized away.
func splitPoint(msgs []Message, keep int) int {
	split := len(msgs) - keep
	for split > 1 && isToolResult(msgs[split]) {
		split--
	}
	return split
}

func (a *Agent) summarize(ctx context.Context, msgs []Message, keep int) ([]Message, error) {
	split := splitPoint(msgs, keep)
	if split <= 1 {
		return nil, errNothingToSummarize
	}
	middle := msgs[1:split]
	var history strings.Builder
	for i, m := range middle {
		b, _ := json.Marshal(m.ToParam())
		fmt.Fprintf(&history, "Message %d: %s\n", i+1, b)
	}

	resp, err := a.cfg.LLM.Call(ctx, []Message{a.cfg.LLM.CreateUserMessage(fmt.Sprintf(summaryPromptTemplate, history.String()))}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	out := make([]Message, 0, len(msgs)-split+2)
	out = append(out, msgs[0], a.cfg.LLM.CreateUserMessage("[Previous conversation summary]: "+responseText(resp)))
	return append(out, msgs[split:]...), nil
}
