package main

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/rag"
)

type DedupeCommand struct {
	Index    IndexFlags `embed:""`
	File     string     `help:"A YAML file of knowledge records to search the index with." required:""`
	TopK     int        `help:"The number of neighbours to inspect for each record." env:"TOP_K" default:"10"`
	Delete   bool       `help:"Delete the duplicates. Without this flag the duplicates are only listed." default:"false"`
	LogLevel string     `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c DedupeCommand) Validate() error {
	return c.Index.validate()
}

func (c DedupeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)

	oc, err := c.Index.openAI("")
	if err != nil {
		return fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	idx, err := c.Index.index()
	if err != nil {
		return fmt.Errorf("failed to create index client: %w", err)
	}
	defer idx.Close()

	records, errFunc := ImportCommand{File: c.File}.records()
	if err = errFunc(); err != nil {
		return err
	}
	d := deduper{
		log:       log,
		index:     idx,
		embedder:  oc,
		namespace: c.Index.PineconeNamespace,
		topK:      c.TopK,
	}
	ids, err := d.Find(ctx, records)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	if !c.Delete || len(ids) == 0 {
		log.Info("duplicates found", slog.Int("count", len(ids)), slog.Bool("deleted", false))
		return nil
	}
	if err = idx.Delete(ctx, c.Index.PineconeNamespace, ids); err != nil {
		return err
	}
	log.Info("duplicates deleted", slog.Int("count", len(ids)))
	return nil
}

type vectorQuerier interface {
	Dimension(ctx context.Context, namespace string) (int, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]rag.Match, error)
}

type deduper struct {
	log       *slog.Logger
	index     vectorQuerier
	embedder  embedder
	namespace string
	topK      int
}

// Find queries the index with the text of each record and returns the ids of
// vectors that duplicate a neighbour, in the order they were first seen. The
// source records themselves are never reported.
func (d deduper) Find(ctx context.Context, records iter.Seq[models.KnowledgeRecord]) (ids []string, err error) {
	dimension, err := d.index.Dimension(ctx, d.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to get index dimension: %w", err)
	}
	sources := slices.Collect(records)
	seen := make(map[string]struct{}, len(sources))
	for _, kr := range sources {
		seen[kr.ID] = struct{}{}
	}
	for _, kr := range sources {
		vector, err := d.embedder.Embed(ctx, kr.Text(), dimension)
		if err != nil {
			return ids, fmt.Errorf("failed to embed record %q: %w", kr.ID, err)
		}
		matches, err := d.index.Query(ctx, d.namespace, vector, d.topK)
		if err != nil {
			return ids, fmt.Errorf("failed to query index: %w", err)
		}
		// The source record is the copy to keep.
		slices.SortStableFunc(matches, func(a, b rag.Match) int {
			return boolToInt(b.ID == kr.ID) - boolToInt(a.ID == kr.ID)
		})
		for _, id := range rag.FindDuplicates(matches) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			d.log.Debug("duplicate found", slog.String("id", id), slog.String("source", kr.ID))
		}
	}
	return slices.Clip(ids), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
