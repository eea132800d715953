package ai

import (
	"context"
)

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat-completion call. SessionID scopes backend-side
// conversation context; Restart asks for that context to be discarded first.
type Request struct {
	SessionID    string
	SystemPrompt string
	UserPrompt   string
	Restart      bool
	History      []Message // prior turns, oldest first
}

// Completer produces a model response for a request
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// messages lays out system prompt, history and the user prompt in order
func (r Request) messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.SystemPrompt})
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, Message{Role: "user", Content: r.UserPrompt})
	return msgs
}
