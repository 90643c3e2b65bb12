package llm

import (
	"context"
	"errors"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable is returned when the model backend cannot produce a
// response (unreachable endpoint, invalid credentials, empty completion).
// Callers never receive partial output.
var ErrUnavailable = errors.New("model unavailable")

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a transcript to a chat-completion backend and returns the
// response text. The hosted and local implementations are interchangeable;
// which one is used is a configuration-time choice.
type Completer interface {
	Complete(ctx context.Context, transcript []Message) (string, error)
	Name() string
}
