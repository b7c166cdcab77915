package rag

import (
	"context"
	"io"
	"log/slog"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeIndex struct {
	names     []string
	dimension int
	matches   []Match

	existsErr    error
	dimensionErr error
	queryErr     error

	queried         bool
	queryNamespace  string
	queryVectorSize int
	queryTopK       int
}

func (f *fakeIndex) Exists(ctx context.Context, name string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, n := range f.names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIndex) Dimension(ctx context.Context, namespace string) (int, error) {
	return f.dimension, f.dimensionErr
}

func (f *fakeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	f.queried = true
	f.queryNamespace = namespace
	f.queryVectorSize = len(vector)
	f.queryTopK = topK
	return f.matches, f.queryErr
}

type fakeEmbedder struct {
	// size overrides the returned vector length when non-zero.
	size int
	err  error

	calls     int
	text      string
	dimension int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, dimension int) ([]float32, error) {
	f.calls++
	f.text = text
	f.dimension = dimension
	if f.err != nil {
		return nil, f.err
	}
	size := dimension
	if f.size != 0 {
		size = f.size
	}
	return make([]float32, size), nil
}

type fakeDecisionMaker struct {
	decision Decision
	err      error

	systemPrompt string
	prompt       string
}

func (f *fakeDecisionMaker) Decide(ctx context.Context, systemPrompt, prompt string) (Decision, error) {
	f.systemPrompt = systemPrompt
	f.prompt = prompt
	return f.decision, f.err
}

func ptr[T any](v T) *T {
	return &v
}
