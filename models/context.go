package models

import "github.com/mastermechanic/mmserver/rag"

type ContextPostRequest struct {
	Text string `json:"text"`

	// Namespace overrides the default index namespace.
	Namespace string `json:"namespace,omitempty"`
}

type ContextPostResponse struct {
	Context string      `json:"context"`
	Matches []rag.Match `json:"matches"`
}
