// Package pinecone adapts the Pinecone vector database to the retriever.
package pinecone

import (
	"context"
	"fmt"
	"sync"

	"github.com/mastermechanic/mmserver/rag"
	gopinecone "github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

func New(apiKey, indexName string) (*Index, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: Pinecone API key is required", rag.ErrConfiguration)
	}
	client, err := gopinecone.NewClient(gopinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: failed to create client: %w", err)
	}
	return &Index{
		client:      client,
		name:        indexName,
		connections: make(map[string]*gopinecone.IndexConnection),
	}, nil
}

// Index is a single named Pinecone index. Connections are opened per
// namespace on first use and reused.
type Index struct {
	client *gopinecone.Client
	name   string

	m           sync.Mutex
	host        string
	connections map[string]*gopinecone.IndexConnection
}

func (idx *Index) Exists(ctx context.Context, name string) (bool, error) {
	indexes, err := idx.client.ListIndexes(ctx)
	if err != nil {
		return false, fmt.Errorf("pinecone: failed to list indexes: %w", err)
	}
	for _, i := range indexes {
		if i.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (idx *Index) Dimension(ctx context.Context, namespace string) (int, error) {
	conn, err := idx.connection(ctx, namespace)
	if err != nil {
		return 0, err
	}
	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("pinecone: failed to describe index stats: %w", err)
	}
	if stats.Dimension == 0 {
		return 0, fmt.Errorf("pinecone: index %q reported no dimension", idx.name)
	}
	return int(stats.Dimension), nil
}

func (idx *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]rag.Match, error) {
	conn, err := idx.connection(ctx, namespace)
	if err != nil {
		return nil, err
	}
	res, err := conn.QueryByVectorValues(ctx, &gopinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: failed to query: %w", err)
	}
	matches := make([]rag.Match, 0, len(res.Matches))
	for _, sv := range res.Matches {
		if sv == nil || sv.Vector == nil {
			continue
		}
		matches = append(matches, toMatch(sv.Vector.Id, sv.Vector.Metadata, sv.Score))
	}
	return matches, nil
}

// Record is a vector to write to the index.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

func (idx *Index) Upsert(ctx context.Context, namespace string, records []Record) (count int, err error) {
	conn, err := idx.connection(ctx, namespace)
	if err != nil {
		return 0, err
	}
	vectors := make([]*gopinecone.Vector, len(records))
	for i, r := range records {
		metadata, err := structpb.NewStruct(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("pinecone: invalid metadata for %q: %w", r.ID, err)
		}
		vectors[i] = &gopinecone.Vector{
			Id:       r.ID,
			Values:   r.Values,
			Metadata: metadata,
		}
	}
	n, err := conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return 0, fmt.Errorf("pinecone: failed to upsert vectors: %w", err)
	}
	return int(n), nil
}

func (idx *Index) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := idx.connection(ctx, namespace)
	if err != nil {
		return err
	}
	if err = conn.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("pinecone: failed to delete vectors: %w", err)
	}
	return nil
}

func (idx *Index) Close() (err error) {
	idx.m.Lock()
	defer idx.m.Unlock()
	for ns, conn := range idx.connections {
		if closeErr := conn.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("pinecone: failed to close connection for namespace %q: %w", ns, closeErr)
		}
		delete(idx.connections, ns)
	}
	return err
}

func (idx *Index) connection(ctx context.Context, namespace string) (*gopinecone.IndexConnection, error) {
	idx.m.Lock()
	defer idx.m.Unlock()
	if conn, ok := idx.connections[namespace]; ok {
		return conn, nil
	}
	if idx.host == "" {
		desc, err := idx.client.DescribeIndex(ctx, idx.name)
		if err != nil {
			return nil, fmt.Errorf("pinecone: failed to describe index %q: %w", idx.name, err)
		}
		idx.host = desc.Host
	}
	conn, err := idx.client.Index(gopinecone.NewIndexConnParams{
		Host:      idx.host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: failed to connect to index %q: %w", idx.name, err)
	}
	idx.connections[namespace] = conn
	return conn, nil
}

func toMatch(id string, metadata *structpb.Struct, score float32) rag.Match {
	m := rag.Match{
		ID:       id,
		Metadata: map[string]any{},
		Score:    score,
	}
	if metadata != nil {
		m.Metadata = metadata.AsMap()
	}
	return m
}
