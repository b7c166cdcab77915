package models

import "github.com/mastermechanic/mmserver/rag"

type ChatPostRequest struct {
	Messages []rag.Turn `json:"messages"`

	// SinceIndex is the anchor returned by the previous response in the
	// X-Since-Index header. Zero on the first request.
	SinceIndex int `json:"sinceIndex"`
}

const (
	HeaderSinceIndex = "X-Since-Index"
	HeaderRetrieval  = "X-Retrieval"
)
