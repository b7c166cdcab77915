package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// VectorIndex is the read side of the vector database used by the retriever.
type VectorIndex interface {
	// Exists reports whether the named index is present.
	Exists(ctx context.Context, name string) (bool, error)
	// Dimension returns the configured vector dimension of the index.
	Dimension(ctx context.Context, namespace string) (int, error)
	// Query returns the topK nearest matches in rank order.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error)
}

// Embedder turns text into a vector of the requested dimension.
type Embedder interface {
	Embed(ctx context.Context, text string, dimension int) ([]float32, error)
}

type RetrieverConfig struct {
	IndexName string
	Namespace string
	TopK      int
}

func (c RetrieverConfig) Validate() error {
	if c.IndexName == "" {
		return fmt.Errorf("%w: index name is required", ErrConfiguration)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be greater than zero, got %d", ErrConfiguration, c.TopK)
	}
	return nil
}

func NewRetriever(log *slog.Logger, index VectorIndex, embedder Embedder, config RetrieverConfig) (*Retriever, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Retriever{
		log:      log,
		index:    index,
		embedder: embedder,
		config:   config,
	}, nil
}

// Retriever gets formatted knowledge context for a piece of text.
type Retriever struct {
	log      *slog.Logger
	index    VectorIndex
	embedder Embedder
	config   RetrieverConfig
}

// Retrieve returns the rendered context for the query, along with the raw
// matches. An absent index is not an error: the context is empty.
func (r *Retriever) Retrieve(ctx context.Context, query, namespace string) (rendered string, matches []Match, err error) {
	if namespace == "" {
		namespace = r.config.Namespace
	}
	exists, err := r.index.Exists(ctx, r.config.IndexName)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to list indexes: %w", ErrIndexQuery, err)
	}
	if !exists {
		r.log.Warn("index not found, skipping retrieval", slog.String("index", r.config.IndexName))
		return "", nil, nil
	}

	dimension, err := r.index.Dimension(ctx, namespace)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to describe index stats: %w", ErrIndexQuery, err)
	}
	vector, err := r.embedder.Embed(ctx, query, dimension)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vector) != dimension {
		return "", nil, fmt.Errorf("%w: %w: expected %d, got %d", ErrEmbedding, ErrDimensionMismatch, dimension, len(vector))
	}

	matches, err = r.index.Query(ctx, namespace, vector, r.config.TopK)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrIndexQuery, err)
	}
	if dupes := FindDuplicates(matches); len(dupes) > 0 {
		r.log.Warn("duplicate vectors returned by index", slog.String("index", r.config.IndexName), slog.Any("ids", dupes))
	}
	r.log.Debug("retrieved context", slog.String("namespace", namespace), slog.Int("matches", len(matches)))

	return Format(matches), matches, nil
}

// FindDuplicates returns the ids of matches that repeat an earlier match,
// either by id or by identical metadata. The first occurrence is not included.
func FindDuplicates(matches []Match) (ids []string) {
	seenIDs := make(map[string]struct{}, len(matches))
	seenMetadata := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		// json.Marshal sorts map keys, so the encoding is stable.
		key, err := json.Marshal(lowerKeys(m.Metadata))
		_, idSeen := seenIDs[m.ID]
		_, metadataSeen := seenMetadata[string(key)]
		if idSeen || (err == nil && metadataSeen) {
			ids = append(ids, m.ID)
			continue
		}
		seenIDs[m.ID] = struct{}{}
		if err == nil {
			seenMetadata[string(key)] = struct{}{}
		}
	}
	return ids
}
