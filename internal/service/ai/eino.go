package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
)

// EinoCompleter runs a system/history/query prompt template through an eino
// chat model chain.
type EinoCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewEinoCompleter compiles the chain around chatModel.
func NewEinoCompleter(ctx context.Context, chatModel model.ChatModel) (*EinoCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &EinoCompleter{chain: runnable}, nil
}

// Complete implements Completer.
func (c *EinoCompleter) Complete(ctx context.Context, system string, history []chat.Message, query string) (string, error) {
	response, err := c.chain.Invoke(ctx, map[string]any{
		"system":  system,
		"history": toSchemaMessages(history),
		"query":   query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", nil
	}
	return response.Content, nil
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
