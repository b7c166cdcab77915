package stream

import (
	"context"
	"net/http"

	"github.com/mastermechanic/mmserver/rag"
	"github.com/tmc/langchaingo/llms"
)

// Messages converts a model-facing conversation into chat model messages,
// prefixed with the system prompt when one is set.
func Messages(systemPrompt string, turns []rag.Turn) (msgs []llms.MessageContent) {
	msgs = make([]llms.MessageContent, 0, len(turns)+1)
	if systemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, t := range turns {
		mc := llms.MessageContent{
			Role:  messageType(t.Role),
			Parts: []llms.ContentPart{llms.TextPart(t.Content)},
		}
		if t.Image != "" {
			mc.Parts = append(mc.Parts, llms.ImageURLPart(t.Image))
		}
		msgs = append(msgs, mc)
	}
	return msgs
}

func messageType(r rag.Role) llms.ChatMessageType {
	if r == rag.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}

func NewWriter(w http.ResponseWriter) *Writer {
	return &Writer{w: w}
}

// Writer copies streamed model output to the response, flushing after each
// chunk.
type Writer struct {
	w       http.ResponseWriter
	written bool
}

// Written reports whether any chunk reached the client. Once it has, the
// status code can no longer be changed.
func (sw *Writer) Written() bool {
	return sw.written
}

func (sw *Writer) Chunk(ctx context.Context, chunk []byte) error {
	select {
	case <-ctx.Done():
		return nil
	default:
		if _, err := sw.w.Write(chunk); err != nil {
			return err
		}
		sw.written = true
		if flusher, canFlush := sw.w.(http.Flusher); canFlush {
			flusher.Flush()
		}
		return nil
	}
}
