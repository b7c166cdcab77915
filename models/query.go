package models

type QueryPostRequest struct {
	// Text of the query.
	Text string `json:"text"`

	// NoContext skips knowledge retrieval and sends the question to the
	// chat model on its own.
	NoContext bool `json:"no-context"`
}
