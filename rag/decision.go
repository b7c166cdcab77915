package rag

import (
	"context"
	"fmt"
	"strings"
)

// Mode controls when the retriever runs.
type Mode string

const (
	// ModeAlways retrieves context for every user turn.
	ModeAlways Mode = "always"
	// ModeDecide asks the relevance policy whether to retrieve.
	ModeDecide Mode = "decide"
	// ModeNever disables retrieval.
	ModeNever Mode = "never"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAlways, ModeDecide, ModeNever:
		return m, nil
	case "":
		return ModeAlways, nil
	}
	return "", fmt.Errorf("%w: unknown retrieval mode %q", ErrConfiguration, s)
}

// DecisionMaker performs the constrained generation call that returns a
// Decision for a prompt.
type DecisionMaker interface {
	Decide(ctx context.Context, systemPrompt, prompt string) (Decision, error)
}

const DecisionSystemPrompt = `You are a routing assistant for MasterMechanic, an HVAC/R troubleshooting assistant.
You are given a numbered list of the most recent messages of a conversation. Decide:

- needs_retrieval: true if answering the LAST user message requires technical knowledge from the
  troubleshooting knowledge base (equipment faults, error codes, diagnostics, parts, wiring, refrigerants).
  false for greetings, thanks, small talk or questions already fully answered in the conversation.
- is_follow_up: true if the LAST user message continues the same problem as the earlier messages.
- rewritten_query: a self-contained search query for the LAST user message, resolving pronouns and
  omitted details from earlier messages. An empty string if the message is already self-contained.`

// Policy decides whether a user turn needs knowledge retrieval.
type Policy struct {
	maker DecisionMaker
}

func NewPolicy(maker DecisionMaker) *Policy {
	return &Policy{maker: maker}
}

// Decide builds the decision prompt from conversation[sinceIndex:] and asks
// the decision maker for a verdict.
func (p *Policy) Decide(ctx context.Context, conversation []Turn, sinceIndex int) (d Decision, err error) {
	prompt := DecisionPrompt(conversation, sinceIndex)
	d, err = p.maker.Decide(ctx, DecisionSystemPrompt, prompt)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrDecision, err)
	}
	if d.RewrittenQuery != nil && strings.TrimSpace(*d.RewrittenQuery) == "" {
		d.RewrittenQuery = nil
	}
	return d, nil
}

// DecisionPrompt numbers the turns from sinceIndex onwards, one per line.
func DecisionPrompt(conversation []Turn, sinceIndex int) string {
	sinceIndex = clamp(sinceIndex, 0, len(conversation))
	var sb strings.Builder
	sb.WriteString("Questions:\n")
	for i, t := range conversation[sinceIndex:] {
		fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, t.Role, strings.TrimSpace(t.Content))
	}
	return sb.String()
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
