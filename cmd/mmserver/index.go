package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/mastermechanic/mmserver/llm"
	"github.com/mastermechanic/mmserver/pinecone"
	"github.com/mastermechanic/mmserver/rag"
)

// IndexFlags configure access to the knowledge index and the embedding model.
// They are shared by every command that talks to Pinecone directly.
type IndexFlags struct {
	PineconeAPIKey    string        `help:"The Pinecone API key." env:"PINECONE_API_KEY"`
	PineconeIndex     string        `help:"The name of the Pinecone index holding the knowledge base." env:"PINECONE_INDEX"`
	PineconeNamespace string        `help:"The default Pinecone namespace." env:"PINECONE_NAMESPACE" default:""`
	OpenAIAPIKey      string        `help:"The OpenAI API key." env:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `help:"Override the OpenAI API URL." env:"OPENAI_BASE_URL" default:""`
	EmbeddingModel    string        `help:"The model to use for embeddings." env:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	DecisionModel     string        `help:"The model used for retrieval decisions and prompt enhancement." env:"DECISION_MODEL" default:"gpt-4o-mini"`
	MaxRetries        int           `help:"How many times to retry failed embedding requests." env:"OPENAI_MAX_RETRIES" default:"3"`
	RetryDelay        time.Duration `help:"The initial delay between retries." env:"OPENAI_RETRY_DELAY" default:"500ms"`
}

func (f IndexFlags) validate() (err error) {
	var errs []error
	if f.PineconeAPIKey == "" {
		errs = append(errs, fmt.Errorf("%w: PINECONE_API_KEY is required", rag.ErrConfiguration))
	}
	if f.PineconeIndex == "" {
		errs = append(errs, fmt.Errorf("%w: PINECONE_INDEX is required", rag.ErrConfiguration))
	}
	if f.OpenAIAPIKey == "" {
		errs = append(errs, fmt.Errorf("%w: OPENAI_API_KEY is required", rag.ErrConfiguration))
	}
	return errors.Join(errs...)
}

func (f IndexFlags) openAI(transcriptionModel string) (*llm.Client, error) {
	return llm.New(llm.Config{
		APIKey:             f.OpenAIAPIKey,
		BaseURL:            f.OpenAIBaseURL,
		DecisionModel:      f.DecisionModel,
		EmbeddingModel:     f.EmbeddingModel,
		TranscriptionModel: transcriptionModel,
		MaxRetries:         f.MaxRetries,
		RetryDelay:         f.RetryDelay,
	})
}

func (f IndexFlags) index() (*pinecone.Index, error) {
	return pinecone.New(f.PineconeAPIKey, f.PineconeIndex)
}
