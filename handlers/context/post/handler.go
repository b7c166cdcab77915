package post

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/rag"
)

type Retriever interface {
	Retrieve(ctx context.Context, query, namespace string) (rendered string, matches []rag.Match, err error)
}

func New(log *slog.Logger, retriever Retriever) Handler {
	return Handler{
		log:       log,
		retriever: retriever,
	}
}

type Handler struct {
	log       *slog.Logger
	retriever Retriever
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.ContextPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}

	resp := models.ContextPostResponse{
		Matches: []rag.Match{},
	}
	if req.Text != "" {
		var matches []rag.Match
		resp.Context, matches, err = h.retriever.Retrieve(r.Context(), req.Text, req.Namespace)
		if err != nil {
			h.log.Error("failed to retrieve context", slog.Any("error", err))
			respond.WithError(w, "failed to retrieve context", http.StatusBadGateway)
			return
		}
		if matches != nil {
			resp.Matches = matches
		}
	}

	respond.WithJSON(w, resp, http.StatusOK)
}
