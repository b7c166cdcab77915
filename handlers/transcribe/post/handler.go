package post

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/models"
)

// DefaultMaxFileSize is the largest accepted audio upload.
const DefaultMaxFileSize = 3 << 20

type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

func New(log *slog.Logger, transcriber Transcriber, maxFileSize int64) Handler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return Handler{
		log:         log,
		transcriber: transcriber,
		maxFileSize: maxFileSize,
	}
}

type Handler struct {
	log         *slog.Logger
	transcriber Transcriber
	maxFileSize int64
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Allow room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+(64<<10))
	f, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			respond.WithError(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.log.Warn("no audio file provided", slog.Any("error", err))
		respond.WithError(w, "no audio file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()
	if header.Size > h.maxFileSize {
		respond.WithError(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	text, err := h.transcriber.Transcribe(r.Context(), header.Filename, f)
	if err != nil {
		h.log.Error("failed to transcribe audio", slog.Any("error", err))
		respond.WithError(w, "failed to transcribe audio", http.StatusBadGateway)
		return
	}
	respond.WithJSON(w, models.TranscribePostResponse{Text: text}, http.StatusOK)
}
