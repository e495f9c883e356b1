package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// Service generates practitioner-styled replies through a Completer.
type Service struct {
	completer Completer
	timeout   time.Duration
	log       *zap.Logger
}

// NewService creates the completer selected by cfg.Provider.
func NewService(ctx context.Context, cfg config.AIConfig, log *zap.Logger) (*Service, error) {
	var completer Completer
	switch cfg.Provider {
	case config.ProviderOpenAI:
		completer = NewOpenAICompleter(cfg.OpenAIKey, cfg.OpenAIURL, cfg.OpenAIModel, cfg.MaxTokens)
	default:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		completer, err = NewEinoCompleter(ctx, chatModel)
		if err != nil {
			return nil, err
		}
	}
	return NewServiceWithCompleter(completer, cfg.Timeout, log), nil
}

// NewServiceWithCompleter wraps an existing completer. A zero timeout
// disables the per-call deadline.
func NewServiceWithCompleter(completer Completer, timeout time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		completer: completer,
		timeout:   timeout,
		log:       log.With(zap.String("component", "ai")),
	}
}

// GenerateResponse produces the reply of profile to userMessage given the
// prior transcript. Provider failures and blank replies are upstream errors.
func (s *Service) GenerateResponse(ctx context.Context, profile *therapist.Profile, history []chat.Message, userMessage string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := s.completer.Complete(ctx, BuildSystemPrompt(profile), chat.Compact(history), userMessage)
	if err != nil {
		return "", failure.Upstream(err, "completion")
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", failure.Upstream(nil, "completion returned an empty reply")
	}

	s.log.Info("generated response",
		zap.String("therapist", profile.ID),
		zap.Int("history", len(history)),
		zap.Int("length", len(reply)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return reply, nil
}
