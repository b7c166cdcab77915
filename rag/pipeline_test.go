package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeRetriever struct {
	rendered string
	matches  []Match
	err      error

	calls int
	query string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query, namespace string) (string, []Match, error) {
	f.calls++
	f.query = query
	return f.rendered, f.matches, f.err
}

type fakePolicy struct {
	decisions []Decision
	err       error

	sinceIndexes []int
}

func (f *fakePolicy) Decide(ctx context.Context, conversation []Turn, sinceIndex int) (Decision, error) {
	f.sinceIndexes = append(f.sinceIndexes, sinceIndex)
	if f.err != nil {
		return Decision{}, f.err
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d, nil
}

func TestPipelineModes(t *testing.T) {
	ctx := context.Background()

	t.Run("always mode retrieves without asking the policy", func(t *testing.T) {
		policy := &fakePolicy{}
		retriever := &fakeRetriever{rendered: "Problem: P\nSolution: S\n"}
		r, err := NewPipeline(discardLogger, ModeAlways, policy, retriever).Run(ctx, conversation, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(policy.sinceIndexes) != 0 {
			t.Error("expected the policy not to be called")
		}
		if retriever.query != "How do I reset it?" {
			t.Errorf("expected the latest user message to be used, got %q", retriever.query)
		}
		if r.Context != retriever.rendered {
			t.Errorf("unexpected context %q", r.Context)
		}
		if r.SinceIndex != 2 {
			t.Errorf("expected the anchor to advance to 2, got %d", r.SinceIndex)
		}
	})

	t.Run("image-only turns skip retrieval", func(t *testing.T) {
		turns := []Turn{{ID: "1", Role: RoleUser, Content: " ", Image: "https://example.com/nameplate.jpg"}}
		retriever := &fakeRetriever{rendered: "unused"}
		r, err := NewPipeline(discardLogger, ModeAlways, &fakePolicy{}, retriever).Run(ctx, turns, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retriever.calls != 0 {
			t.Errorf("expected no retrieval, got %d calls", retriever.calls)
		}
		if r.Context != "" {
			t.Errorf("expected no context, got %q", r.Context)
		}
		if diff := cmp.Diff(turns, r.Messages); diff != "" {
			t.Errorf("unexpected messages:\n%s", diff)
		}
	})

	t.Run("never mode skips retrieval", func(t *testing.T) {
		retriever := &fakeRetriever{rendered: "unused"}
		r, err := NewPipeline(discardLogger, ModeNever, &fakePolicy{}, retriever).Run(ctx, conversation, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retriever.calls != 0 {
			t.Errorf("expected no retrieval, got %d calls", retriever.calls)
		}
		if diff := cmp.Diff(conversation, r.Messages); diff != "" {
			t.Errorf("unexpected messages:\n%s", diff)
		}
	})

	t.Run("decide mode skips retrieval when not needed", func(t *testing.T) {
		retriever := &fakeRetriever{}
		policy := &fakePolicy{decisions: []Decision{{NeedsRetrieval: false}}}
		r, err := NewPipeline(discardLogger, ModeDecide, policy, retriever).Run(ctx, conversation, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retriever.calls != 0 {
			t.Errorf("expected no retrieval, got %d calls", retriever.calls)
		}
		if r.Context != "" {
			t.Errorf("expected no context, got %q", r.Context)
		}
	})

	t.Run("decide mode retrieves with the rewritten query", func(t *testing.T) {
		retriever := &fakeRetriever{rendered: "Problem: P\nSolution: S\n"}
		policy := &fakePolicy{decisions: []Decision{{NeedsRetrieval: true, RewrittenQuery: ptr("How do I reset error E5?")}}}
		r, err := NewPipeline(discardLogger, ModeDecide, policy, retriever).Run(ctx, conversation, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if retriever.query != "How do I reset error E5?" {
			t.Errorf("expected the rewritten query to be used, got %q", retriever.query)
		}
		if conversation[2].Content != "How do I reset it?" {
			t.Errorf("the conversation was mutated: %q", conversation[2].Content)
		}
		expected := "Here is the context you need to answer the question:\n\nProblem: P\nSolution: S\n\n\nPlease provide a succinct response to: How do I reset error E5?"
		if diff := cmp.Diff(expected, r.Messages[2].Content); diff != "" {
			t.Errorf("unexpected model-facing content:\n%s", diff)
		}
	})
}

func TestPipelineAnchor(t *testing.T) {
	ctx := context.Background()
	turns := []Turn{
		{ID: "1", Role: RoleUser, Content: "My unit shows E5."},
		{ID: "2", Role: RoleAssistant, Content: "E5 is a high pressure fault."},
		{ID: "3", Role: RoleUser, Content: "What causes it?"},
		{ID: "4", Role: RoleAssistant, Content: "A dirty condenser coil, usually."},
		{ID: "5", Role: RoleUser, Content: "How do I clean it?"},
		{ID: "6", Role: RoleAssistant, Content: "Use coil cleaner."},
		{ID: "7", Role: RoleUser, Content: "Unrelated: what is a TXV?"},
	}
	policy := &fakePolicy{decisions: []Decision{
		{NeedsRetrieval: true, IsFollowUp: false},
		{NeedsRetrieval: true, IsFollowUp: true},
		{NeedsRetrieval: true, IsFollowUp: true},
		{NeedsRetrieval: true, IsFollowUp: false},
	}}
	p := NewPipeline(discardLogger, ModeDecide, policy, &fakeRetriever{})

	sinceIndex := 0
	for _, n := range []int{1, 3, 5, 7} {
		r, err := p.Run(ctx, turns[:n], sinceIndex)
		if err != nil {
			t.Fatalf("turn %d: unexpected error: %v", n, err)
		}
		sinceIndex = r.SinceIndex
	}
	if diff := cmp.Diff([]int{0, 0, 0, 0}, policy.sinceIndexes); diff != "" {
		t.Errorf("unexpected anchors:\n%s", diff)
	}
	if sinceIndex != 6 {
		t.Errorf("expected the anchor to advance after a new topic, got %d", sinceIndex)
	}

	t.Run("the anchor advances when the turn is not a follow-up", func(t *testing.T) {
		policy := &fakePolicy{decisions: []Decision{
			{NeedsRetrieval: true},
			{NeedsRetrieval: true, IsFollowUp: true},
		}}
		p := NewPipeline(discardLogger, ModeDecide, policy, &fakeRetriever{})
		r, _ := p.Run(ctx, turns[:3], 0)
		_, _ = p.Run(ctx, turns[:5], r.SinceIndex)
		if diff := cmp.Diff([]int{0, 2}, policy.sinceIndexes); diff != "" {
			t.Errorf("unexpected anchors:\n%s", diff)
		}
	})
}

func TestPipelineErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("a conversation without user turns is rejected", func(t *testing.T) {
		_, err := NewPipeline(discardLogger, ModeAlways, &fakePolicy{}, &fakeRetriever{}).Run(ctx, []Turn{{Role: RoleAssistant, Content: "hi"}}, 0)
		if !errors.Is(err, ErrNoUserTurn) {
			t.Errorf("expected no user turn error, got %v", err)
		}
	})

	t.Run("retrieval errors fail the request", func(t *testing.T) {
		cause := errors.Join(ErrIndexQuery, errors.New("unavailable"))
		_, err := NewPipeline(discardLogger, ModeAlways, &fakePolicy{}, &fakeRetriever{err: cause}).Run(ctx, conversation, 0)
		if !errors.Is(err, ErrIndexQuery) {
			t.Errorf("expected index query error, got %v", err)
		}
	})

	t.Run("decision errors fail the request", func(t *testing.T) {
		retriever := &fakeRetriever{}
		policy := NewPolicy(&fakeDecisionMaker{err: errors.New("bad json")})
		_, err := NewPipeline(discardLogger, ModeDecide, policy, retriever).Run(ctx, conversation, 0)
		if !errors.Is(err, ErrDecision) {
			t.Errorf("expected decision error, got %v", err)
		}
		if retriever.calls != 0 {
			t.Error("expected retrieval not to run")
		}
	})
}
