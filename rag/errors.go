package rag

import "errors"

// Error kinds returned by the pipeline. Callers test for them with errors.Is;
// the underlying provider error is wrapped alongside.
var (
	ErrConfiguration     = errors.New("rag: configuration error")
	ErrEmbedding         = errors.New("rag: embedding failed")
	ErrIndexQuery        = errors.New("rag: index query failed")
	ErrDecision          = errors.New("rag: relevance decision failed")
	ErrDimensionMismatch = errors.New("rag: embedding dimension does not match index")
)

// ErrNoUserTurn is returned when a conversation has no user message to answer.
var ErrNoUserTurn = errors.New("rag: conversation has no user turn")
