package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/pinecone"
	"github.com/pluja/pocketbase"
	"gopkg.in/yaml.v3"
)

type ImportCommand struct {
	Index         IndexFlags `embed:""`
	File          string     `help:"A YAML file containing a list of knowledge records. When empty, records are read from Pocketbase." env:"KNOWLEDGE_FILE"`
	PocketbaseURL string     `help:"The URL of the Pocketbase server." env:"POCKETBASE_URL" default:"http://localhost:8090"`
	Collection    string     `help:"The name of the Pocketbase collection to export from." env:"COLLECTION" default:"knowledge"`
	Expand        string     `help:"The fields to expand." env:"EXPAND" default:""`
	ID            string     `help:"The ID of the record to import if you just want to import a single record." env:"ID" default:""`
	BatchSize     int        `help:"The number of vectors to upsert at once." env:"BATCH_SIZE" default:"50"`
	DryRun        bool       `help:"Do not actually import the records." env:"DRY_RUN" default:"false"`
	LogLevel      string     `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ImportCommand) Validate() error {
	return c.Index.validate()
}

func (c ImportCommand) Run(ctx context.Context) (err error) {
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

	records, errFunc := c.records()
	imp := importer{
		log:       log,
		index:     idx,
		embedder:  oc,
		namespace: c.Index.PineconeNamespace,
		batchSize: c.BatchSize,
		dryRun:    c.DryRun,
	}
	count, err := imp.Import(ctx, filterByID(records, c.ID))
	if err != nil {
		return err
	}
	log.Info("import complete", slog.Int("count", count), slog.Bool("dryRun", c.DryRun))
	return errFunc()
}

func (c ImportCommand) records() (records iter.Seq[models.KnowledgeRecord], errFunc func() error) {
	if c.File != "" {
		f, err := os.Open(c.File)
		if err != nil {
			return emptyRecords, func() error { return fmt.Errorf("failed to open %s: %w", c.File, err) }
		}
		defer f.Close()
		krs, err := readYAMLRecords(f)
		if err != nil {
			return emptyRecords, func() error { return fmt.Errorf("failed to read %s: %w", c.File, err) }
		}
		return func(yield func(models.KnowledgeRecord) bool) {
			for _, kr := range krs {
				if !yield(kr) {
					return
				}
			}
		}, func() error { return nil }
	}
	pbe := NewPocketbaseExporter(pocketbase.NewClient(c.PocketbaseURL), c.Collection, c.Expand)
	return pbe.Export(), func() error { return pbe.Error }
}

func emptyRecords(yield func(models.KnowledgeRecord) bool) {}

func filterByID(records iter.Seq[models.KnowledgeRecord], id string) iter.Seq[models.KnowledgeRecord] {
	if id == "" {
		return records
	}
	return func(yield func(models.KnowledgeRecord) bool) {
		for kr := range records {
			if kr.ID == id && !yield(kr) {
				return
			}
		}
	}
}

func readYAMLRecords(r io.Reader) (records []models.KnowledgeRecord, err error) {
	if err = yaml.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

type knowledgeIndex interface {
	Dimension(ctx context.Context, namespace string) (int, error)
	Upsert(ctx context.Context, namespace string, records []pinecone.Record) (int, error)
}

type embedder interface {
	Embed(ctx context.Context, text string, dimension int) ([]float32, error)
}

type importer struct {
	log       *slog.Logger
	index     knowledgeIndex
	embedder  embedder
	namespace string
	batchSize int
	dryRun    bool
}

// Import embeds each record at the index dimension and upserts them in
// batches. Records without an ID are given a random one.
func (imp importer) Import(ctx context.Context, records iter.Seq[models.KnowledgeRecord]) (count int, err error) {
	dimension, err := imp.index.Dimension(ctx, imp.namespace)
	if err != nil {
		return 0, fmt.Errorf("failed to get index dimension: %w", err)
	}
	batchSize := max(imp.batchSize, 1)
	batch := make([]pinecone.Record, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 || imp.dryRun {
			batch = batch[:0]
			return nil
		}
		n, err := imp.index.Upsert(ctx, imp.namespace, batch)
		if err != nil {
			return fmt.Errorf("failed to upsert records: %w", err)
		}
		imp.log.Info("upserted records", slog.Int("count", n))
		batch = batch[:0]
		return nil
	}
	for kr := range records {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if strings.TrimSpace(kr.Problem) == "" || strings.TrimSpace(kr.Solution) == "" {
			imp.log.Warn("skipping record without a problem or solution", slog.String("id", kr.ID))
			continue
		}
		if kr.ID == "" {
			kr.ID = uuid.NewString()
		}
		imp.log.Info("importing record", slog.String("id", kr.ID), slog.Bool("dryRun", imp.dryRun))
		vector, err := imp.embedder.Embed(ctx, kr.Text(), dimension)
		if err != nil {
			return count, fmt.Errorf("failed to embed record %q: %w", kr.ID, err)
		}
		batch = append(batch, pinecone.Record{
			ID:       kr.ID,
			Values:   vector,
			Metadata: kr.Metadata(),
		})
		count++
		if len(batch) >= batchSize {
			if err = flush(); err != nil {
				return count, err
			}
		}
	}
	return count, flush()
}

func NewPocketbaseExporter(client *pocketbase.Client, collection, expand string) *PocketbaseExporter {
	return &PocketbaseExporter{
		client:     client,
		collection: collection,
		expand:     expand,
		PageSize:   50,
		Error:      nil,
	}
}

type PocketbaseExporter struct {
	client     *pocketbase.Client
	collection string
	expand     string
	PageSize   int
	Error      error
}

func (p *PocketbaseExporter) Export() iter.Seq[models.KnowledgeRecord] {
	var page int
	return func(yield func(models.KnowledgeRecord) bool) {
		for {
			if p.Error != nil {
				return
			}
			page++
			response, err := p.client.List(p.collection, pocketbase.ParamsList{
				Page:   page,
				Size:   p.PageSize,
				Sort:   "-created",
				Expand: p.expand,
			})
			if err != nil {
				p.Error = err
				return
			}
			if len(response.Items) == 0 {
				return
			}
			for _, item := range response.Items {
				kr, err := createRecord(item)
				if err != nil {
					p.Error = errors.Join(p.Error, err)
					continue
				}
				if !yield(kr) {
					return
				}
			}
		}
	}
}

func useItemOrDefault(item map[string]any, keys []string, defaultValue string) string {
	for _, key := range keys {
		if value, ok := item[key].(string); ok && value != "" {
			return value
		}
	}
	return defaultValue
}

var problemKeys = []string{"problem", "question", "title"}
var solutionKeys = []string{"solution", "answer"}

// createRecord maps a Pocketbase record to a knowledge record. Nested values
// are stored as YAML text, the vector index only accepts flat metadata.
func createRecord(item map[string]any) (kr models.KnowledgeRecord, err error) {
	id, ok := item["id"].(string)
	if !ok {
		return kr, fmt.Errorf("record has no id")
	}
	kr.ID = id
	applyExpandedFields(item)
	removeKeys(item, []string{"id", "collectionId", "collectionName", "created", "updated"})
	kr.Problem = useItemOrDefault(item, problemKeys, "")
	kr.Solution = useItemOrDefault(item, solutionKeys, "")
	for _, k := range slices.Concat(problemKeys, solutionKeys) {
		delete(item, k)
	}
	kr.Fields = make(map[string]any, len(item))
	for k, v := range item {
		switch v := v.(type) {
		case string, float64, bool:
			kr.Fields[k] = v
		default:
			sb := new(strings.Builder)
			if err = yaml.NewEncoder(sb).Encode(v); err != nil {
				return kr, fmt.Errorf("failed to encode field %q of %s: %w", k, id, err)
			}
			kr.Fields[k] = strings.TrimSpace(sb.String())
		}
	}
	return kr, nil
}

// applyExpandedFields replaces relation ids with the records Pocketbase put
// under "expand", at every level of nesting.
func applyExpandedFields(data map[string]any) {
	if expanded, ok := data["expand"].(map[string]any); ok {
		for k, v := range expanded {
			if _, isField := data[k]; isField {
				data[k] = v
			}
		}
		delete(data, "expand")
	}
	for _, v := range data {
		walkMaps(v, applyExpandedFields)
	}
}

// removeKeys deletes Pocketbase system keys and empty values at every level.
func removeKeys(data map[string]any, keys []string) {
	for _, k := range keys {
		delete(data, k)
	}
	for k, v := range data {
		walkMaps(v, func(m map[string]any) { removeKeys(m, keys) })
		if isEmpty(v) {
			delete(data, k)
		}
	}
}

func walkMaps(v any, f func(map[string]any)) {
	switch v := v.(type) {
	case map[string]any:
		f(v)
	case []any:
		for _, item := range v {
			walkMaps(item, f)
		}
	}
}

func isEmpty(v any) bool {
	switch v := v.(type) {
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case string:
		return v == ""
	}
	return false
}
