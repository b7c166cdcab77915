package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mastermechanic/mmserver/rag"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	DefaultDecisionModel      = "gpt-4o-mini"
	DefaultEmbeddingModel     = string(openai.SmallEmbedding3)
	DefaultTranscriptionModel = "gpt-4o-transcribe"
	DefaultSpeechModel        = string(openai.TTSModel1)
	DefaultSpeechVoice        = string(openai.VoiceAlloy)
	DefaultSpeechFormat       = string(openai.SpeechResponseFormatMp3)
)

type Config struct {
	APIKey string
	// BaseURL overrides the OpenAI API URL, e.g. for a proxy or tests.
	BaseURL            string
	DecisionModel      string
	EmbeddingModel     string
	TranscriptionModel string
	MaxRetries         int
	RetryDelay         time.Duration
}

func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", rag.ErrConfiguration)
	}
	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}
	return &Client{
		client:             openai.NewClientWithConfig(oc),
		decisionModel:      valueOrDefault(config.DecisionModel, DefaultDecisionModel),
		embeddingModel:     openai.EmbeddingModel(valueOrDefault(config.EmbeddingModel, DefaultEmbeddingModel)),
		transcriptionModel: valueOrDefault(config.TranscriptionModel, DefaultTranscriptionModel),
		maxRetries:         config.MaxRetries,
		retryDelay:         config.RetryDelay,
	}, nil
}

// Client wraps the OpenAI API for everything the server needs apart from the
// streamed chat completion.
type Client struct {
	client             *openai.Client
	decisionModel      string
	embeddingModel     openai.EmbeddingModel
	transcriptionModel string
	maxRetries         int
	retryDelay         time.Duration
}

// Embed returns an embedding of text with the requested number of dimensions.
func (c *Client) Embed(ctx context.Context, text string, dimension int) ([]float32, error) {
	return retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) ([]float32, error) {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      c.embeddingModel,
			Dimensions: dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, errors.New("no embeddings returned")
		}
		return resp.Data[0].Embedding, nil
	})
}

type decisionResponse struct {
	NeedsRetrieval bool   `json:"needs_retrieval" description:"Whether to search the knowledge base"`
	IsFollowUp     bool   `json:"is_follow_up" description:"The last question is a follow-up to the previous ones"`
	RewrittenQuery string `json:"rewritten_query" description:"Self-contained search query, or an empty string"`
}

var decisionSchema = must(jsonschema.GenerateSchemaForType(decisionResponse{}))

// Decide asks the decision model for a structured relevance decision.
func (c *Client) Decide(ctx context.Context, systemPrompt, prompt string) (d rag.Decision, err error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.decisionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   128,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "relevance_decision",
				Schema: decisionSchema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return d, fmt.Errorf("failed to create decision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return d, errors.New("no decision choices returned")
	}
	var dr decisionResponse
	if err = decisionSchema.Unmarshal(resp.Choices[0].Message.Content, &dr); err != nil {
		return d, fmt.Errorf("failed to parse decision: %w", err)
	}
	d.NeedsRetrieval = dr.NeedsRetrieval
	d.IsFollowUp = dr.IsFollowUp
	if q := strings.TrimSpace(dr.RewrittenQuery); q != "" {
		d.RewrittenQuery = &q
	}
	return d, nil
}

// Transcribe converts recorded audio to text.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: filename,
		Reader:   audio,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Text, nil
}

type SpeechRequest struct {
	Text   string
	Model  string
	Voice  string
	Format string
	Speed  float64
}

// Speech synthesises text to audio. The caller must close the returned body.
func (c *Client) Speech(ctx context.Context, req SpeechRequest) (body io.ReadCloser, contentType string, err error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(valueOrDefault(req.Model, DefaultSpeechModel)),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(valueOrDefault(req.Voice, DefaultSpeechVoice)),
		ResponseFormat: openai.SpeechResponseFormat(valueOrDefault(req.Format, DefaultSpeechFormat)),
		Speed:          valueOrDefault(req.Speed, 1.0),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create speech: %w", err)
	}
	return resp, resp.Header().Get("Content-Type"), nil
}

const enhanceSystemPrompt = `You improve questions sent to MasterMechanic, an HVAC/R troubleshooting assistant.
Rewrite the user's message into a clear, specific troubleshooting question. Keep every detail the user gave
(equipment brand, model, error codes, symptoms, measurements) and do not invent new ones.
Reply with the rewritten question only.`

// Enhance rewrites a user's draft message into a clearer question.
func (c *Client) Enhance(ctx context.Context, input string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.decisionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: enhanceSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enhance prompt: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no enhancement choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func valueOrDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
