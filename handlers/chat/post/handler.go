package post

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/caller"
	"github.com/mastermechanic/mmserver/handlers/stream"
	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/rag"
	"github.com/tmc/langchaingo/llms"
)

type Pipeline interface {
	Run(ctx context.Context, conversation []rag.Turn, sinceIndex int) (rag.Result, error)
}

func New(log *slog.Logger, pipeline Pipeline, llm llms.Model, systemPrompt string, opts ...llms.CallOption) Handler {
	return Handler{
		log:          log,
		pipeline:     pipeline,
		llm:          llm,
		systemPrompt: systemPrompt,
		opts:         opts,
	}
}

type Handler struct {
	log          *slog.Logger
	pipeline     Pipeline
	llm          llms.Model
	systemPrompt string
	opts         []llms.CallOption
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, _ := caller.Get(r)
	log := h.log.With(slog.String("source", c.Source), slog.String("callerType", c.Type), slog.String("callerId", c.ID))

	var req models.ChatPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if msg, ok := validate(req.Messages); !ok {
		log.Warn("invalid chat request", slog.String("reason", msg))
		respond.WithError(w, msg, http.StatusBadRequest)
		return
	}

	result, err := h.pipeline.Run(r.Context(), req.Messages, req.SinceIndex)
	if err != nil {
		log.Error("failed to prepare context", slog.Any("error", err))
		if errors.Is(err, rag.ErrNoUserTurn) {
			respond.WithError(w, "conversation has no user message", http.StatusBadRequest)
			return
		}
		respond.WithError(w, "failed to retrieve context", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(models.HeaderSinceIndex, strconv.Itoa(result.SinceIndex))
	w.Header().Set(models.HeaderRetrieval, strconv.FormatBool(result.Decision.NeedsRetrieval))

	sw := stream.NewWriter(w)
	opts := append([]llms.CallOption{llms.WithStreamingFunc(sw.Chunk)}, h.opts...)
	_, err = h.llm.GenerateContent(r.Context(), stream.Messages(h.systemPrompt, result.Messages), opts...)
	if err != nil {
		log.Error("failed to generate content", slog.Any("error", err))
		if !sw.Written() {
			respond.WithError(w, "failed to generate content", http.StatusInternalServerError)
		}
		return
	}
}

func validate(turns []rag.Turn) (msg string, ok bool) {
	if len(turns) == 0 {
		return "messages are required", false
	}
	for _, t := range turns {
		if t.Role != rag.RoleUser && t.Role != rag.RoleAssistant {
			return "invalid message role", false
		}
	}
	if turns[len(turns)-1].Role != rag.RoleUser {
		return "last message must be from the user", false
	}
	return "", true
}
