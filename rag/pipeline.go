package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type ContextRetriever interface {
	Retrieve(ctx context.Context, query, namespace string) (rendered string, matches []Match, err error)
}

type RelevancePolicy interface {
	Decide(ctx context.Context, conversation []Turn, sinceIndex int) (Decision, error)
}

// Result of running the pipeline for a single user turn.
type Result struct {
	// Context is the rendered knowledge context, empty if none was retrieved.
	Context string
	Matches []Match
	// Messages is the model-facing copy of the conversation.
	Messages []Turn
	Decision Decision
	// SinceIndex is the anchor the caller should send with the next turn.
	SinceIndex int
}

func NewPipeline(log *slog.Logger, mode Mode, policy RelevancePolicy, retriever ContextRetriever) *Pipeline {
	return &Pipeline{
		log:       log,
		mode:      mode,
		policy:    policy,
		retriever: retriever,
	}
}

// Pipeline decides whether a turn needs knowledge, retrieves it, and splices
// it into the model-facing conversation.
type Pipeline struct {
	log       *slog.Logger
	mode      Mode
	policy    RelevancePolicy
	retriever ContextRetriever
}

func (p *Pipeline) Run(ctx context.Context, conversation []Turn, sinceIndex int) (r Result, err error) {
	userIndex, ok := lastUserTurn(conversation)
	if !ok {
		return r, ErrNoUserTurn
	}
	sinceIndex = clamp(sinceIndex, 0, len(conversation)-1)

	r.Decision, err = p.decide(ctx, conversation, sinceIndex)
	if err != nil {
		return r, err
	}
	r.SinceIndex = len(conversation) - 1
	if r.Decision.IsFollowUp {
		r.SinceIndex = sinceIndex
	}

	if r.Decision.NeedsRetrieval {
		query := conversation[userIndex].Content
		if r.Decision.RewrittenQuery != nil {
			query = *r.Decision.RewrittenQuery
		}
		// Image-only turns have nothing to embed.
		if strings.TrimSpace(query) != "" {
			r.Context, r.Matches, err = p.retriever.Retrieve(ctx, query, "")
			if err != nil {
				return r, fmt.Errorf("failed to retrieve context: %w", err)
			}
		}
	}
	p.log.Info("context pipeline complete",
		slog.String("mode", string(p.mode)),
		slog.Bool("retrieval", r.Decision.NeedsRetrieval),
		slog.Bool("followUp", r.Decision.IsFollowUp),
		slog.Bool("rewritten", r.Decision.RewrittenQuery != nil),
		slog.Int("matches", len(r.Matches)),
		slog.Int("sinceIndex", r.SinceIndex))

	r.Messages = Assemble(conversation, r.Context, r.Decision.RewrittenQuery)
	return r, nil
}

func (p *Pipeline) decide(ctx context.Context, conversation []Turn, sinceIndex int) (Decision, error) {
	switch p.mode {
	case ModeNever:
		return Decision{}, nil
	case ModeDecide:
		return p.policy.Decide(ctx, conversation, sinceIndex)
	default:
		return Decision{NeedsRetrieval: true}, nil
	}
}
