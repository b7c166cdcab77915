package post

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/respond"
	"github.com/mastermechanic/mmserver/elevenlabs"
	"github.com/mastermechanic/mmserver/llm"
	"github.com/mastermechanic/mmserver/models"
)

type Speaker interface {
	Speech(ctx context.Context, req llm.SpeechRequest) (body io.ReadCloser, contentType string, err error)
}

type VoiceSynthesizer interface {
	TextToSpeech(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) (io.ReadCloser, error)
}

// New creates the text-to-speech handler. elevenLabs may be nil, in which case
// every request is served by OpenAI.
func New(log *slog.Logger, openAI Speaker, elevenLabs VoiceSynthesizer) Handler {
	return Handler{
		log:        log,
		openAI:     openAI,
		elevenLabs: elevenLabs,
	}
}

type Handler struct {
	log        *slog.Logger
	openAI     Speaker
	elevenLabs VoiceSynthesizer
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.TTSPostRequest
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

	// Clients send voice names rather than ElevenLabs voice ids, so the
	// configured voice and model are always used for that provider.
	if req.Provider == models.TTSProviderElevenLabs && h.elevenLabs != nil {
		body, err := h.elevenLabs.TextToSpeech(r.Context(), elevenlabs.DefaultVoiceID, elevenlabs.TextToSpeechRequest{
			Text:          req.Text,
			ModelID:       elevenlabs.DefaultModelID,
			VoiceSettings: elevenlabs.DefaultVoiceSettings,
		})
		if err == nil {
			h.write(w, body, "audio/mpeg", models.TTSProviderElevenLabs)
			return
		}
		h.log.Warn("ElevenLabs speech failed, falling back to OpenAI", slog.Any("error", err))
		// The requested voice was meant for ElevenLabs.
		req.Voice = ""
		req.VoiceModel = ""
	}

	body, contentType, err := h.openAI.Speech(r.Context(), llm.SpeechRequest{
		Text:   req.Text,
		Model:  req.VoiceModel,
		Voice:  req.Voice,
		Format: req.OutputFormat,
		Speed:  req.Speed,
	})
	if err != nil {
		h.log.Error("failed to generate speech", slog.Any("error", err))
		respond.WithError(w, "failed to generate speech", http.StatusBadGateway)
		return
	}
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	h.write(w, body, contentType, models.TTSProviderOpenAI)
}

func (h Handler) write(w http.ResponseWriter, body io.ReadCloser, contentType string, provider models.TTSProvider) {
	defer body.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-TTS-Provider", string(provider))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.Error("failed to write speech", slog.Any("error", err))
	}
}
