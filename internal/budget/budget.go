// Package budget provides token budget estimation and history trimming for
// the chatbot prompt. Because the chatbot supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/habitloop/habitloop/internal/store"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// chat messages, summing role + content for each message.
func EstimateMessages(msgs []store.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest exchanges from history until fixedTokens
// plus the history estimate fits within maxTokens. fixedTokens is the
// estimated cost of everything that cannot be trimmed (persona, retrieved
// context, habit facts, current question).
//
// History is dropped two messages at a time so a user turn is never retained
// without its model turn. If even an empty history exceeds the budget, the
// empty slice is returned; callers should warn separately when the fixed
// sections alone exceed the budget.
func TrimHistory(fixedTokens int, history []store.Message, maxTokens int) []store.Message {
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		if len(history) >= 2 && history[0].Role == store.RoleUser && history[1].Role == store.RoleModel {
			history = history[2:]
			continue
		}
		history = history[1:]
	}
	return history
}
