package chatbot

import (
	"fmt"
	"strings"

	"github.com/habitloop/habitloop/internal/rag"
	"github.com/habitloop/habitloop/internal/store"
)

// Prompt sections, in fixed order. Assemble is a pure function: identical
// inputs produce byte-identical output, which is what makes the prompt
// independently testable.
const (
	persona = "You are HabitLoop, a supportive wellness coach. You help people " +
		"build healthy habits using their own tracking data and the expert " +
		"knowledge provided below. Be encouraging, specific, and honest."

	instructionSuffix = "Answer the question above using the conversation, the " +
		"user's habits, and the expert knowledge. Keep the answer short and practical."

	historyHeader   = "Recent conversation:"
	factsHeader     = "User's habits today:"
	knowledgeHeader = "Expert knowledge:"

	// Placeholder lines keep every section present even when a source is empty.
	placeholderNoHistory   = "No previous conversation."
	placeholderNoFacts     = "No habits tracked yet."
	placeholderNoKnowledge = "No expert data found."
)

// HabitFact renders one habit as a single personalized-facts line.
func HabitFact(h *store.Habit, completedToday bool) string {
	status := "not completed today"
	if completedToday {
		status = "completed today"
	}
	if h.Description != "" {
		return fmt.Sprintf("- %s (%s): %s", h.Name, h.Description, status)
	}
	return fmt.Sprintf("- %s: %s", h.Name, status)
}

// Assemble builds the full prompt from the four context sections plus the
// verbatim user query. Empty sources degrade to placeholder lines rather
// than omitted sections. Callers are responsible for bounding each input
// (history window, facts list, top-k) before assembly.
func Assemble(query string, history []store.Message, facts []string, chunks []rag.Chunk) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n\n")

	b.WriteString(historyHeader)
	b.WriteString("\n")
	if len(history) == 0 {
		b.WriteString(placeholderNoHistory)
		b.WriteString("\n")
	} else {
		for _, m := range history {
			b.WriteString(string(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	b.WriteString(factsHeader)
	b.WriteString("\n")
	if len(facts) == 0 {
		b.WriteString(placeholderNoFacts)
		b.WriteString("\n")
	} else {
		for _, f := range facts {
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	b.WriteString(knowledgeHeader)
	b.WriteString("\n")
	if len(chunks) == 0 {
		b.WriteString(placeholderNoKnowledge)
		b.WriteString("\n")
	} else {
		for _, c := range chunks {
			b.WriteString(c.Text)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(instructionSuffix)

	return b.String()
}
