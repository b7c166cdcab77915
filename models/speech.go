package models

type TranscribePostResponse struct {
	Text string `json:"text"`
}

type TTSProvider string

const (
	TTSProviderOpenAI     TTSProvider = "openai"
	TTSProviderElevenLabs TTSProvider = "elevenlabs"
)

type TTSPostRequest struct {
	Text         string      `json:"text"`
	Voice        string      `json:"voice,omitempty"`
	OutputFormat string      `json:"outputFormat,omitempty"`
	Speed        float64     `json:"speed,omitempty"`
	VoiceModel   string      `json:"voiceModel,omitempty"`
	Provider     TTSProvider `json:"provider,omitempty"`
}
