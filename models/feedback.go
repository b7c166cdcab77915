package models

import "time"

type FeedbackPostRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	// Vote is "upvote" or "downvote".
	Vote     string `json:"vote"`
	Feedback string `json:"feedback,omitempty"`
}

type FeedbackPostResponse struct {
	ID int64 `json:"id"`
}

type FeedbackGetResponse struct {
	Feedback []Feedback `json:"feedback"`
}

type Feedback struct {
	ID         int64     `json:"id"`
	ChatID     string    `json:"chatId"`
	MessageID  string    `json:"messageId"`
	Vote       string    `json:"vote"`
	Feedback   string    `json:"feedback,omitempty"`
	Source     string    `json:"source,omitempty"`
	CallerType string    `json:"callerType,omitempty"`
	CallerID   string    `json:"callerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
