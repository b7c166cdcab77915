package rag

import (
	"fmt"
	"slices"
)

const contextPrompt = `Here is the context you need to answer the question:

%s

Please provide a succinct response to: %s`

// Assemble returns the model-facing copy of the conversation. The latest user
// turn is replaced by a copy carrying the rewritten query and the rendered
// context; the input slice and its turns are left untouched.
func Assemble(conversation []Turn, renderedContext string, rewrittenQuery *string) []Turn {
	messages := slices.Clone(conversation)
	i, ok := lastUserTurn(messages)
	if !ok {
		return messages
	}
	turn := messages[i]
	if rewrittenQuery != nil {
		turn.Content = *rewrittenQuery
	}
	if renderedContext != "" {
		turn.Content = fmt.Sprintf(contextPrompt, renderedContext, turn.Content)
	}
	messages[i] = turn
	return messages
}
