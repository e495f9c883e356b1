package ai

import (
	"context"

	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
)

// Completer produces one assistant reply for a system instruction, the prior
// transcript and the new user message.
type Completer interface {
	Complete(ctx context.Context, system string, history []chat.Message, query string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system string, history []chat.Message, query string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system string, history []chat.Message, query string) (string, error) {
	return f(ctx, system, history, query)
}
