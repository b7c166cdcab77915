package post

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mastermechanic/mmserver/elevenlabs"
	"github.com/mastermechanic/mmserver/llm"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSpeaker struct {
	err   error
	req   llm.SpeechRequest
	calls int
}

func (fs *fakeSpeaker) Speech(ctx context.Context, req llm.SpeechRequest) (io.ReadCloser, string, error) {
	fs.calls++
	fs.req = req
	if fs.err != nil {
		return nil, "", fs.err
	}
	return io.NopCloser(bytes.NewBufferString("openai-audio")), "audio/mpeg", nil
}

type fakeSynthesizer struct {
	err     error
	voiceID string
	req     elevenlabs.TextToSpeechRequest
	calls   int
}

func (fs *fakeSynthesizer) TextToSpeech(ctx context.Context, voiceID string, req elevenlabs.TextToSpeechRequest) (io.ReadCloser, error) {
	fs.calls++
	fs.voiceID, fs.req = voiceID, req
	if fs.err != nil {
		return nil, fs.err
	}
	return io.NopCloser(bytes.NewBufferString("elevenlabs-audio")), nil
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tts", bytes.NewBufferString(body)))
	return w
}

func TestHandler(t *testing.T) {
	t.Run("OpenAI is used by default", func(t *testing.T) {
		openAI := &fakeSpeaker{}
		w := post(New(discardLogger, openAI, &fakeSynthesizer{}), `{"text":"Check the fuse.","voice":"nova","speed":1.25}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "openai-audio" {
			t.Errorf("unexpected body %q", w.Body.String())
		}
		expected := llm.SpeechRequest{Text: "Check the fuse.", Voice: "nova", Speed: 1.25}
		if diff := cmp.Diff(expected, openAI.req); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("ElevenLabs is used when requested", func(t *testing.T) {
		openAI := &fakeSpeaker{}
		el := &fakeSynthesizer{}
		w := post(New(discardLogger, openAI, el), `{"text":"Check the fuse.","provider":"elevenlabs"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "elevenlabs-audio" {
			t.Errorf("unexpected body %q", w.Body.String())
		}
		if w.Header().Get("X-TTS-Provider") != "elevenlabs" {
			t.Errorf("unexpected provider %q", w.Header().Get("X-TTS-Provider"))
		}
		if openAI.calls != 0 {
			t.Error("expected OpenAI not to be called")
		}
		if diff := cmp.Diff(elevenlabs.DefaultVoiceSettings, el.req.VoiceSettings); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("ElevenLabs ignores the requested voice and model", func(t *testing.T) {
		el := &fakeSynthesizer{}
		w := post(New(discardLogger, &fakeSpeaker{}, el), `{"text":"Check the fuse.","provider":"elevenlabs","voice":"rachel","voiceModel":"tts-1"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if el.voiceID != elevenlabs.DefaultVoiceID {
			t.Errorf("expected voice %q, got %q", elevenlabs.DefaultVoiceID, el.voiceID)
		}
		expected := elevenlabs.TextToSpeechRequest{
			Text:          "Check the fuse.",
			ModelID:       elevenlabs.DefaultModelID,
			VoiceSettings: elevenlabs.DefaultVoiceSettings,
		}
		if diff := cmp.Diff(expected, el.req); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("ElevenLabs failures fall back to OpenAI", func(t *testing.T) {
		openAI := &fakeSpeaker{}
		el := &fakeSynthesizer{err: errors.New("quota exceeded")}
		w := post(New(discardLogger, openAI, el), `{"text":"Check the fuse.","provider":"elevenlabs","voice":"rachel"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "openai-audio" {
			t.Errorf("unexpected body %q", w.Body.String())
		}
		if el.calls != 1 || openAI.calls != 1 {
			t.Errorf("expected one call to each provider, got %d and %d", el.calls, openAI.calls)
		}
		if openAI.req.Voice != "" {
			t.Errorf("expected the ElevenLabs voice to be dropped, got %q", openAI.req.Voice)
		}
	})
	t.Run("ElevenLabs requests without a key use OpenAI", func(t *testing.T) {
		openAI := &fakeSpeaker{}
		w := post(New(discardLogger, openAI, nil), `{"text":"Check the fuse.","provider":"elevenlabs"}`)
		if w.Code != http.StatusOK || openAI.calls != 1 {
			t.Errorf("expected OpenAI to serve the request, got status %d", w.Code)
		}
	})
	t.Run("empty text returns 400", func(t *testing.T) {
		w := post(New(discardLogger, &fakeSpeaker{}, nil), `{"text":""}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
	t.Run("OpenAI failures return 502", func(t *testing.T) {
		w := post(New(discardLogger, &fakeSpeaker{err: errors.New("boom")}, nil), `{"text":"Check the fuse."}`)
		if w.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", w.Code)
		}
	})
}
