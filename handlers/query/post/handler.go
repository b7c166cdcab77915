package post

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/handlers/stream"
	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/rag"
	"github.com/tmc/langchaingo/llms"
)

type Retriever interface {
	Retrieve(ctx context.Context, query, namespace string) (rendered string, matches []rag.Match, err error)
}

func New(log *slog.Logger, retriever Retriever, llm llms.Model, systemPrompt string, opts ...llms.CallOption) Handler {
	return Handler{
		log:          log,
		retriever:    retriever,
		llm:          llm,
		systemPrompt: systemPrompt,
		opts:         opts,
	}
}

// Handler answers a single question without conversation history.
type Handler struct {
	log          *slog.Logger
	retriever    Retriever
	llm          llms.Model
	systemPrompt string
	opts         []llms.CallOption
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.QueryPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.WithError(w, "text is required", http.StatusBadRequest)
		return
	}

	var rendered string
	var matches []rag.Match
	if !req.NoContext {
		rendered, matches, err = h.retriever.Retrieve(r.Context(), req.Text, "")
		if err != nil {
			h.log.Error("failed to retrieve context", slog.Any("error", err))
			respond.WithError(w, "failed to retrieve context", http.StatusBadGateway)
			return
		}
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	h.log.Info("query context", slog.Any("matches", ids))

	conversation := []rag.Turn{{Role: rag.RoleUser, Content: req.Text}}
	msgs := stream.Messages(h.systemPrompt, rag.Assemble(conversation, rendered, nil))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	sw := stream.NewWriter(w)
	opts := append([]llms.CallOption{llms.WithStreamingFunc(sw.Chunk)}, h.opts...)
	_, err = h.llm.GenerateContent(r.Context(), msgs, opts...)
	if err != nil {
		h.log.Error("failed to generate content", slog.Any("error", err))
		if !sw.Written() {
			respond.WithError(w, "failed to generate content", http.StatusInternalServerError)
		}
		return
	}
}
