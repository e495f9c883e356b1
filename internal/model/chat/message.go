package chat

import (
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two conversation roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one immutable entry of a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-authored message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-authored message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ValidateHistory rejects transcripts carrying an unknown role.
func ValidateHistory(history []Message) error {
	for i, msg := range history {
		if !msg.Role.Valid() {
			return failure.Validation("conversationHistory[%d]: unknown role %q", i, msg.Role)
		}
	}
	return nil
}

// LastAssistant returns the most recent assistant message, if any.
func LastAssistant(history []Message) (Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleAssistant {
			return history[i], true
		}
	}
	return Message{}, false
}

// Compact drops entries whose content is blank. Completion providers reject
// empty turns, and a blank entry carries nothing for the model anyway.
func Compact(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, msg)
	}
	return out
}
