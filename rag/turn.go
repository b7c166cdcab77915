package rag

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation. Turns are never modified once
// created, functions that need a different copy return a new slice.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Decision is the outcome of the relevance policy for one user turn.
type Decision struct {
	NeedsRetrieval bool
	IsFollowUp     bool
	RewrittenQuery *string
}

// Match is a single result returned by the vector index.
type Match struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

func lastUserTurn(conversation []Turn) (index int, ok bool) {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == RoleUser {
			return i, true
		}
	}
	return -1, false
}
