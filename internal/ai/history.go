package ai

import (
	"context"
	"sync"
)

// HistoryCompleter keeps the model replies of each session and replays them on
// later requests for the same session. A Restart request drops the stored
// turns. User prompts are not kept: map prompts carry whole chunks, and
// replaying them would push the final request past the model context.
type HistoryCompleter struct {
	next Completer

	mu       sync.Mutex
	sessions map[string][]Message
}

// WithHistory decorates next with per-session conversation memory
func WithHistory(next Completer) *HistoryCompleter {
	return &HistoryCompleter{
		next:     next,
		sessions: make(map[string][]Message),
	}
}

// Complete forwards req with the session's prior turns attached
func (h *HistoryCompleter) Complete(ctx context.Context, req Request) (string, error) {
	if req.SessionID == "" {
		return h.next.Complete(ctx, req)
	}

	h.mu.Lock()
	if req.Restart {
		delete(h.sessions, req.SessionID)
	}
	history := append([]Message(nil), h.sessions[req.SessionID]...)
	h.mu.Unlock()

	req.History = append(history, req.History...)
	out, err := h.next.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.sessions[req.SessionID] = append(h.sessions[req.SessionID], Message{Role: "assistant", Content: out})
	h.mu.Unlock()

	return out, nil
}

// Turns returns a copy of the stored turns for a session
func (h *HistoryCompleter) Turns(sessionID string) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Message(nil), h.sessions[sessionID]...)
}
