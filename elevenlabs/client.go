package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/jsonapi"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID = "CeNX9CMwmxDxUF5Q2Inm"
	DefaultModelID = "eleven_multilingual_v2"
)

func New(baseURL, apiKey string) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Client{
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type Client struct {
	baseURL string
	apiKey  string
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.5,
	Style:           0.0,
	UseSpeakerBoost: true,
}

type TextToSpeechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// TextToSpeech returns MP3 audio for the request. The caller must close the
// returned body.
func (c Client) TextToSpeech(ctx context.Context, voiceID string, req TextToSpeechRequest) (body io.ReadCloser, err error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	if req.ModelID == "" {
		req.ModelID = DefaultModelID
	}
	url, err := jsonapi.URL(c.baseURL).Path("text-to-speech", voiceID).String()
	if err != nil {
		return nil, err
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	res, err := jsonapi.Raw(httpReq,
		jsonapi.WithRequestHeader("Accept", "audio/mpeg"),
		jsonapi.WithRequestHeader("Content-Type", "application/json"),
		jsonapi.WithRequestHeader("xi-api-key", c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		b, _ := io.ReadAll(res.Body)
		return nil, jsonapi.InvalidStatusError{
			Status: res.StatusCode,
			Body:   string(b),
		}
	}
	return res.Body, nil
}
