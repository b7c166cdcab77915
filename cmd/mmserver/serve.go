package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mastermechanic/mmserver/caller"
	"github.com/mastermechanic/mmserver/db"
	"github.com/mastermechanic/mmserver/elevenlabs"
	chatpost "github.com/mastermechanic/mmserver/handlers/chat/post"
	contextpost "github.com/mastermechanic/mmserver/handlers/context/post"
	enhancepost "github.com/mastermechanic/mmserver/handlers/enhance/post"
	feedbackget "github.com/mastermechanic/mmserver/handlers/feedback/get"
	feedbackpost "github.com/mastermechanic/mmserver/handlers/feedback/post"
	healthget "github.com/mastermechanic/mmserver/handlers/health/get"
	querypost "github.com/mastermechanic/mmserver/handlers/query/post"
	transcribepost "github.com/mastermechanic/mmserver/handlers/transcribe/post"
	ttspost "github.com/mastermechanic/mmserver/handlers/tts/post"
	"github.com/mastermechanic/mmserver/rag"
	"github.com/rqlite/gorqlite"
	"github.com/rs/cors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type ServeCommand struct {
	Index              IndexFlags `embed:""`
	TopK               int        `help:"The number of knowledge matches to retrieve." env:"TOP_K"`
	RetrievalMode      string     `help:"When to retrieve knowledge: always, decide or never." env:"RETRIEVAL_MODE" default:"always"`
	ChatModel          string     `help:"The model to chat with." env:"CHAT_MODEL" default:"gpt-4.1-mini"`
	MaxTokens          int        `help:"The maximum number of tokens in a chat answer." env:"MAX_TOKENS" default:"2048"`
	Temperature        float64    `help:"The chat model temperature." env:"TEMPERATURE" default:"0.7"`
	TranscriptionModel string     `help:"The model to use for speech to text." env:"TRANSCRIPTION_MODEL" default:"gpt-4o-transcribe"`
	ElevenLabsAPIKey   string     `help:"The ElevenLabs API key, enables ElevenLabs voices." env:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsURL      string     `help:"The ElevenLabs API URL." env:"ELEVENLABS_URL" default:"https://api.elevenlabs.io/v1"`
	RqliteURL          string     `help:"The URL of the rqlite server used to store feedback, feedback is disabled when empty." env:"RQLITE_URL" default:""`
	SystemPrompt       string     `help:"A file containing the system prompt to use." env:"SYSTEM_PROMPT" default:""`
	MaxFileSize        int64      `help:"The largest accepted audio upload in bytes." env:"MAX_FILE_SIZE" default:"3145728"`
	ListenAddr         string     `help:"The address to listen on." env:"LISTEN_ADDR" default:"localhost:9020"`
	TLSCertFile        string     `help:"The TLS certificate file." env:"TLS_CERT_FILE" default:""`
	TLSKeyFile         string     `help:"The TLS key file." env:"TLS_KEY_FILE" default:""`
	LogLevel           string     `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ServeCommand) Validate() error {
	errs := []error{c.Index.validate()}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("%w: TOP_K must be a positive integer, got %d", rag.ErrConfiguration, c.TopK))
	}
	if _, err := rag.ParseMode(c.RetrievalMode); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

const systemPrompt = `You are MasterMechanic, an expert HVAC/R technician who helps field technicians troubleshoot equipment.

When you are given context from the knowledge base, use it to answer. If the context doesn't cover the question, say so and give your best general guidance, clearly marked as such. Never invent part numbers, error codes or wiring details.

Technicians are on site and busy. Be succinct, give steps in order, and call out safety hazards such as high voltage or refrigerant handling.`

func readFileOrDefault(filename, defaultContent string) (string, error) {
	if filename == "" {
		return defaultContent, nil
	}
	contents, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return string(contents), nil
}

func (c ServeCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	systemPrompt, err := readFileOrDefault(c.SystemPrompt, systemPrompt)
	if err != nil {
		return fmt.Errorf("failed to read system prompt: %w", err)
	}
	mode, err := rag.ParseMode(c.RetrievalMode)
	if err != nil {
		return err
	}

	log.Info("creating LLM clients", slog.String("chatModel", c.ChatModel))
	oc, err := c.Index.openAI(c.TranscriptionModel)
	if err != nil {
		return fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	chatOpts := []openai.Option{
		openai.WithToken(c.Index.OpenAIAPIKey),
		openai.WithModel(c.ChatModel),
	}
	if c.Index.OpenAIBaseURL != "" {
		chatOpts = append(chatOpts, openai.WithBaseURL(c.Index.OpenAIBaseURL))
	}
	llmc, err := openai.New(chatOpts...)
	if err != nil {
		return fmt.Errorf("failed to create LLM: %w", err)
	}
	callOpts := []llms.CallOption{
		llms.WithMaxTokens(c.MaxTokens),
		llms.WithTemperature(c.Temperature),
	}

	log.Info("connecting to vector index", slog.String("index", c.Index.PineconeIndex), slog.String("namespace", c.Index.PineconeNamespace))
	idx, err := c.Index.index()
	if err != nil {
		return fmt.Errorf("failed to create index client: %w", err)
	}
	defer idx.Close()
	retriever, err := rag.NewRetriever(log, idx, oc, rag.RetrieverConfig{
		IndexName: c.Index.PineconeIndex,
		Namespace: c.Index.PineconeNamespace,
		TopK:      c.TopK,
	})
	if err != nil {
		return err
	}
	pipeline := rag.NewPipeline(log, mode, rag.NewPolicy(oc), retriever)

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthget.New())
	mux.Handle("POST /chat", chatpost.New(log, pipeline, llmc, systemPrompt, callOpts...))
	mux.Handle("POST /context", contextpost.New(log, retriever))
	mux.Handle("POST /query", querypost.New(log, retriever, llmc, systemPrompt, callOpts...))
	mux.Handle("POST /transcribe", transcribepost.New(log, oc, c.MaxFileSize))
	mux.Handle("POST /enhance", enhancepost.New(log, oc))

	var voices ttspost.VoiceSynthesizer
	if c.ElevenLabsAPIKey != "" {
		voices = elevenlabs.New(c.ElevenLabsURL, c.ElevenLabsAPIKey)
	} else {
		log.Info("ElevenLabs API key not set, text to speech will use OpenAI only")
	}
	mux.Handle("POST /tts", ttspost.New(log, oc, voices))

	if c.RqliteURL != "" {
		log.Info("connecting to database", slog.String("url", c.RqliteURL))
		databaseURL, err := db.ParseRqliteURL(c.RqliteURL)
		if err != nil {
			return fmt.Errorf("failed to parse rqlite URL: %w", err)
		}
		conn, err := gorqlite.Open(databaseURL.DataSourceName())
		if err != nil {
			return fmt.Errorf("failed to open connection: %w", err)
		}
		defer conn.Close()

		version, err := db.Migrate(databaseURL)
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("database schema migrated", slog.Uint64("version", uint64(version)))
		queries := db.New(conn)
		mux.Handle("GET /feedback", feedbackget.New(log, queries))
		mux.Handle("POST /feedback", feedbackpost.New(log, queries))
	} else {
		log.Warn("RQLITE_URL not set, feedback is disabled")
	}

	withCORSCallerMux := cors.AllowAll().Handler(caller.New(mux))

	log.Info("Listening", slog.String("addr", c.ListenAddr), slog.String("retrievalMode", string(mode)))
	s := &http.Server{
		Addr:    c.ListenAddr,
		Handler: withCORSCallerMux,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		log.Info("Enabling TLS mode")
		var cert tls.Certificate
		cert, err = tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load cert: %w", err)
		}
		s.TLSConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
		return s.ListenAndServeTLS(c.TLSCertFile, c.TLSKeyFile)
	}
	return s.ListenAndServe()
}
