package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/db"
	"github.com/mastermechanic/mmserver/models"
)

type Store interface {
	FeedbackList(ctx context.Context, chatID string) (feedback []db.Feedback, err error)
}

func New(log *slog.Logger, store Store) Handler {
	return Handler{
		log:   log,
		store: store,
	}
}

// Handler lists the votes recorded for a chat, oldest first.
type Handler struct {
	log   *slog.Logger
	store Store
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		respond.WithError(w, "chatId is required", http.StatusBadRequest)
		return
	}
	feedback, err := h.store.FeedbackList(r.Context(), chatID)
	if err != nil {
		h.log.Error("failed to list feedback", slog.String("chatId", chatID), slog.Any("error", err))
		respond.WithError(w, "failed to list feedback", http.StatusInternalServerError)
		return
	}
	resp := models.FeedbackGetResponse{
		Feedback: make([]models.Feedback, len(feedback)),
	}
	for i, f := range feedback {
		resp.Feedback[i] = models.Feedback{
			ID:         f.ID,
			ChatID:     f.ChatID,
			MessageID:  f.MessageID,
			Vote:       string(f.Vote),
			Feedback:   f.Feedback,
			Source:     f.Source,
			CallerType: f.CallerType,
			CallerID:   f.CallerID,
			CreatedAt:  f.CreatedAt,
		}
	}
	respond.WithJSON(w, resp, http.StatusOK)
}
