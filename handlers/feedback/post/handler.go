package post

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/caller"
	"github.com/mastermechanic/mmserver/db"
	"github.com/mastermechanic/mmserver/models"
)

type Store interface {
	FeedbackPut(ctx context.Context, f db.Feedback) (id int64, err error)
}

func New(log *slog.Logger, store Store) Handler {
	return Handler{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

type Handler struct {
	log   *slog.Logger
	store Store
	now   func() time.Time
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackPostRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if req.ChatID == "" || req.MessageID == "" {
		respond.WithError(w, "chatId and messageId are required", http.StatusBadRequest)
		return
	}
	vote := db.Vote(req.Vote)
	if !vote.Valid() {
		respond.WithError(w, "vote must be upvote or downvote", http.StatusBadRequest)
		return
	}

	c, _ := caller.Get(r)
	id, err := h.store.FeedbackPut(r.Context(), db.Feedback{
		ChatID:     req.ChatID,
		MessageID:  req.MessageID,
		Vote:       vote,
		Feedback:   req.Feedback,
		Source:     c.Source,
		CallerType: c.Type,
		CallerID:   c.ID,
		CreatedAt:  h.now().UTC(),
	})
	if err != nil {
		h.log.Error("failed to store feedback", slog.Any("error", err))
		respond.WithError(w, "failed to store feedback", http.StatusInternalServerError)
		return
	}
	h.log.Info("feedback stored", slog.Int64("id", id), slog.String("chatId", req.ChatID), slog.String("vote", req.Vote))
	respond.WithJSON(w, models.FeedbackPostResponse{ID: id}, http.StatusCreated)
}
