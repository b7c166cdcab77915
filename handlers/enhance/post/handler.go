package post

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/models"
)

// MinWords is the shortest input worth enhancing.
const MinWords = 3

type Enhancer interface {
	Enhance(ctx context.Context, input string) (string, error)
}

func New(log *slog.Logger, enhancer Enhancer) Handler {
	return Handler{
		log:      log,
		enhancer: enhancer,
	}
}

type Handler struct {
	log      *slog.Logger
	enhancer Enhancer
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.EnhancePostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if len(strings.Fields(req.Input)) < MinWords {
		respond.WithError(w, "input is too short to enhance", http.StatusBadRequest)
		return
	}

	output, err := h.enhancer.Enhance(r.Context(), req.Input)
	if err != nil {
		h.log.Error("failed to enhance prompt", slog.Any("error", err))
		respond.WithError(w, "failed to enhance prompt", http.StatusBadGateway)
		return
	}
	respond.WithJSON(w, models.EnhancePostResponse{Output: output}, http.StatusOK)
}
